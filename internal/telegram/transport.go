package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const WebhookPath = "/webhook"

// WebhookURL joins the public base URL with the webhook path.
func WebhookURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + WebhookPath
}

// RegisterWebhook points Telegram at {baseURL}/webhook and publishes the
// command list.
func RegisterWebhook(api *tgbotapi.BotAPI, baseURL string) error {
	wh, err := tgbotapi.NewWebhook(WebhookURL(baseURL))
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return registerCommands(api)
}

// Poll long-polls for updates until ctx is done. Any webhook is removed first
// since Telegram refuses getUpdates while one is set.
func (b *Bot) Poll(ctx context.Context, api *tgbotapi.BotAPI) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if err := registerCommands(api); err != nil {
		b.log.WithError(err).Warn("register commands failed")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	b.log.Info("long polling for updates")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.Dispatch(ctx, upd)
		}
	}
}

func registerCommands(api *tgbotapi.BotAPI) error {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(Commands()...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}
