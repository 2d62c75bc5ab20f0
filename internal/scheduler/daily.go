// Package scheduler pushes the report once a day at a fixed local time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/ethflow-bot/internal/format"
	"github.com/kjannette/ethflow-bot/internal/logging"
)

type Reporter interface {
	Build(ctx context.Context) string
}

// ChatSender posts a built report to one Telegram chat.
type ChatSender interface {
	SendText(chatID int64, text string) error
}

// Notifier posts a built report to the outbound chat webhook.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, msg string) error
}

type DailyConfig struct {
	At       string // "HH:MM"
	Location *time.Location
	ChatIDs  []int64
	// RunTimeout bounds a single delivery run.
	RunTimeout time.Duration
	Now        func() time.Time
	Logger     logrus.FieldLogger
}

type DailyScheduler struct {
	reporter Reporter
	chats    ChatSender
	notify   Notifier
	cfg      DailyConfig
	hour     int
	minute   int
	log      *logrus.Entry

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func NewDailyScheduler(reporter Reporter, chats ChatSender, notify Notifier, cfg DailyConfig) (*DailyScheduler, error) {
	at, err := time.Parse("15:04", cfg.At)
	if err != nil {
		return nil, fmt.Errorf("daily time %q: %w", cfg.At, err)
	}
	if cfg.Location == nil {
		cfg.Location = format.Kyiv()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 90 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &DailyScheduler{
		reporter: reporter,
		chats:    chats,
		notify:   notify,
		cfg:      cfg,
		hour:     at.Hour(),
		minute:   at.Minute(),
		log:      logging.Component(cfg.Logger, "scheduler"),
	}, nil
}

// NextRun returns the first hour:minute in loc strictly after now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

func (s *DailyScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			next := NextRun(s.cfg.Now(), s.hour, s.minute, s.cfg.Location)
			s.log.WithField("next_run", next.Format(time.RFC3339)).Info("daily report scheduled")

			timer := time.NewTimer(next.Sub(s.cfg.Now()))
			select {
			case <-stopCh:
				timer.Stop()
				return
			case <-timer.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
				if err := s.RunNow(ctx); err != nil {
					s.log.WithError(err).Error("daily report delivery failed")
				}
				cancel()
			}
		}
	}()
}

func (s *DailyScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("stopped")
}

func (s *DailyScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow builds one report and delivers it to every chat and the notifier.
// A failed target does not stop delivery to the rest; all failures are
// returned joined.
func (s *DailyScheduler) RunNow(ctx context.Context) error {
	text := s.reporter.Build(ctx)

	var errs []error
	for _, id := range s.cfg.ChatIDs {
		if err := s.chats.SendText(id, text); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.WithField("chat_id", id).Info("daily report sent")
	}
	if s.notify != nil && s.notify.Enabled() {
		if err := s.notify.Send(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
