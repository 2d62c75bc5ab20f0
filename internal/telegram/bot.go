// Package telegram wires the report into Telegram bot commands.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/kjannette/ethflow-bot/internal/logging"
)

const (
	CmdStart = "start"
	CmdNow   = "now"
	CmdHelp  = "help"
)

// Sender is the part of *tgbotapi.BotAPI the bot needs to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Reporter interface {
	Build(ctx context.Context) string
}

type Options struct {
	Sender   Sender
	Reporter Reporter
	Workers  int64
	Logger   logrus.FieldLogger
}

type Bot struct {
	api      Sender
	reporter Reporter
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	log      *logrus.Entry
}

func NewBot(opts Options) *Bot {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Bot{
		api:      opts.Sender,
		reporter: opts.Reporter,
		sem:      semaphore.NewWeighted(opts.Workers),
		log:      logging.Component(opts.Logger, "telegram"),
	}
}

// Commands lists the commands registered with Telegram.
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: CmdNow, Description: "ETH звіт зараз"},
		{Command: CmdStart, Description: "ETH звіт зараз"},
		{Command: CmdHelp, Description: "Список команд"},
	}
}

// Dispatch handles u in the background. At most Workers updates are handled
// at once; the rest wait for a free slot.
func (b *Bot) Dispatch(ctx context.Context, u tgbotapi.Update) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.sem.Acquire(ctx, 1); err != nil {
			b.log.WithError(err).Warn("update dropped")
			return
		}
		defer b.sem.Release(1)
		b.HandleUpdate(ctx, u)
	}()
}

// Wait blocks until every dispatched update has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleUpdate runs the command carried by u, if any.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	log := b.log.WithFields(logrus.Fields{
		"chat_id": msg.Chat.ID,
		"command": msg.Command(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("command handler panicked")
			b.replyError(msg, fmt.Errorf("%v", r))
		}
	}()

	switch msg.Command() {
	case CmdStart, CmdNow:
		log.Info("report requested")
		text := b.reporter.Build(ctx)
		if err := b.reply(msg, text); err != nil {
			log.WithError(err).Error("send report failed")
			b.replyError(msg, err)
		}
	case CmdHelp:
		if err := b.reply(msg, helpText()); err != nil {
			log.WithError(err).Warn("send help failed")
		}
	default:
		log.Debug("unknown command ignored")
	}
}

// SendReport builds a report and posts it to chatID.
func (b *Bot) SendReport(ctx context.Context, chatID int64) error {
	return b.SendText(chatID, b.reporter.Build(ctx))
}

// SendText posts an already built report to chatID.
func (b *Bot) SendText(chatID int64, text string) error {
	cfg := tgbotapi.NewMessage(chatID, text)
	cfg.DisableWebPagePreview = true
	if _, err := b.api.Send(cfg); err != nil {
		return fmt.Errorf("send report to %d: %w", chatID, err)
	}
	return nil
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) error {
	cfg := tgbotapi.NewMessage(msg.Chat.ID, text)
	cfg.DisableWebPagePreview = true
	cfg.ReplyToMessageID = msg.MessageID
	_, err := b.api.Send(cfg)
	return err
}

func (b *Bot) replyError(msg *tgbotapi.Message, err error) {
	if sendErr := b.reply(msg, fmt.Sprintf("Помилка: %v", err)); sendErr != nil {
		b.log.WithError(sendErr).Error("send error reply failed")
	}
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("Команди:")
	for _, c := range Commands() {
		fmt.Fprintf(&sb, "\n/%s — %s", c.Command, c.Description)
	}
	return sb.String()
}
