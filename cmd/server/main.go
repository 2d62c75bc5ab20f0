package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/ethflow-bot/internal/api"
	"github.com/kjannette/ethflow-bot/internal/config"
	"github.com/kjannette/ethflow-bot/internal/db"
	"github.com/kjannette/ethflow-bot/internal/external"
	"github.com/kjannette/ethflow-bot/internal/farside"
	"github.com/kjannette/ethflow-bot/internal/logging"
	"github.com/kjannette/ethflow-bot/internal/notifications"
	"github.com/kjannette/ethflow-bot/internal/report"
	"github.com/kjannette/ethflow-bot/internal/repository"
	"github.com/kjannette/ethflow-bot/internal/scheduler"
	"github.com/kjannette/ethflow-bot/internal/scraper"
	"github.com/kjannette/ethflow-bot/internal/telegram"
)

const banner = `
╔══════════════════════════════════════╗
║        ETH Flow Report Bot           ║
║                                      ║
╚══════════════════════════════════════╝
`

const (
	priceTimeout  = 20 * time.Second
	pageTimeout   = 25 * time.Second
	reportTimeout = report.DefaultTimeout
)

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	warnings, err := cfg.Validate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range warnings {
		log.Warn(w)
	}
	cfg.Print()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional flow archive
	var (
		archive report.Archive
		flows   api.FlowStore
		pinger  api.Pinger
	)
	if cfg.ArchiveEnabled() {
		pool, err := db.Connect(ctx, cfg.DSN())
		if err != nil {
			log.WithError(err).Fatal("database connection failed")
		}
		defer func() {
			pool.Close()
			log.Info("database pool closed")
		}()

		at, err := db.TestConnection(ctx, pool)
		if err != nil {
			log.WithError(err).Fatal("database test query failed")
		}
		log.WithField("server_time", at.Format(time.RFC3339)).Info("database connected")

		if err := db.EnsureSchema(ctx, pool); err != nil {
			log.WithError(err).Fatal("database schema setup failed")
		}

		repo := repository.NewFlowRepo(pool)
		archive, flows, pinger = repo, repo, pool
	}

	// Report sources
	prices := external.NewCoinGeckoClient(external.CoinGeckoOptions{
		BaseURL:  cfg.CoinGeckoBaseURL,
		APIKey:   cfg.CoinGeckoAPIKey,
		Asset:    cfg.AssetID,
		CacheTTL: cfg.PriceCacheTTL,
		Timeout:  priceTimeout,
		Logger:   log,
	})
	pages := scraper.New(scraper.Options{
		Fetchers: buildFetchers(cfg, log),
		CacheTTL: cfg.PageCacheTTL,
		Logger:   log,
	})
	builder := report.NewBuilder(report.Options{
		Prices:   prices,
		Pages:    pages,
		Parser:   farside.NewParser(cfg.FarsideAnchor),
		FlowsURL: cfg.FarsideURL,
		Archive:  archive,
		Timeout:  reportTimeout,
		Logger:   log,
	})

	// Telegram
	tg, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.WithError(err).Fatal("telegram authorization failed")
	}
	log.WithField("username", tg.Self.UserName).Info("authorized on telegram")

	bot := telegram.NewBot(telegram.Options{
		Sender:   tg,
		Reporter: builder,
		Workers:  int64(cfg.WebhookWorkers),
		Logger:   log,
	})

	var updates api.UpdateDispatcher
	if cfg.BaseURL != "" {
		if err := telegram.RegisterWebhook(tg, cfg.BaseURL); err != nil {
			log.WithError(err).Fatal("webhook registration failed")
		}
		log.WithField("url", telegram.WebhookURL(cfg.BaseURL)).Info("webhook registered")
		updates = bot
	} else {
		go func() {
			if err := bot.Poll(ctx, tg); err != nil {
				log.WithError(err).Error("long polling stopped")
			}
		}()
	}

	// 1. HTTP server
	srv := api.NewServer(api.Options{
		Port:          cfg.Port,
		APIKey:        cfg.APIKey,
		CORSOrigin:    cfg.CORSAllowOrigin,
		Reporter:      builder,
		Updates:       updates,
		Flows:         flows,
		DB:            pinger,
		ReportTimeout: reportTimeout,
		BaseContext:   ctx,
		Logger:        log,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	// 2. Daily report
	notify := notifications.NewSender(cfg.NotifyWebhook, cfg.BotName, log)
	var daily *scheduler.DailyScheduler
	if cfg.ReportDailyAt != "" {
		daily, err = scheduler.NewDailyScheduler(builder, bot, notify, scheduler.DailyConfig{
			At:      cfg.ReportDailyAt,
			ChatIDs: cfg.ReportChatIDs,
			Logger:  log,
		})
		if err != nil {
			log.WithError(err).Fatal("daily scheduler setup failed")
		}
		daily.Start()
	} else {
		log.Info("daily report disabled (REPORT_DAILY_AT not set)")
	}

	log.Info("all services started")

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("shutting down gracefully")

	if daily != nil {
		daily.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}
	bot.Wait()
	log.Info("shutdown complete")
}

// buildFetchers orders the page fetchers from most to least browser-like.
func buildFetchers(cfg *config.Config, log logrus.FieldLogger) []scraper.Fetcher {
	var fetchers []scraper.Fetcher
	if cfg.UseChrome {
		fetchers = append(fetchers, scraper.NewChromeFetcher(pageTimeout))
	}
	if tls, err := scraper.NewTLSFetcher(cfg.TLSProfile, pageTimeout); err != nil {
		log.WithError(err).Warn("tls-client unavailable, using plain HTTP only")
	} else {
		fetchers = append(fetchers, tls)
	}
	return append(fetchers, scraper.NewPlainFetcher(pageTimeout))
}
