package notifier

import (
	"context"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
)

// telegramNotifier sends messages to the admin chat via the Telegram Bot API.
type telegramNotifier struct {
	bot         *tgbot.Bot
	adminChatID int64
	sendTimeout time.Duration
	logger      *slog.Logger
}

// unconfiguredNotifier is the notifier used when no token or destination was
// provided. Every send reports ErrNotConfigured.
type unconfiguredNotifier struct {
	logger *slog.Logger
}

// NewTelegramNotifier creates a Notifier delivering to the given admin chat.
// When token or adminChatID is empty the returned notifier is permanently
// unconfigured; this is decided here so the "not configured" path does not
// depend on per-call environment state.
func NewTelegramNotifier(token string, adminChatID int64, sendTimeout time.Duration, logger *slog.Logger) (Notifier, error) {
	log := logger.With("component", "notifier")

	if token == "" || adminChatID == 0 {
		log.Warn("Telegram notifier not configured; interest notifications will fail until token and admin chat are set")
		return &unconfiguredNotifier{logger: log}, nil
	}

	b, err := tgbot.New(token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, err
	}

	return &telegramNotifier{
		bot:         b,
		adminChatID: adminChatID,
		sendTimeout: sendTimeout,
		logger:      log,
	}, nil
}

func (n *telegramNotifier) Send(ctx context.Context, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	_, err := n.bot.SendMessage(sendCtx, &tgbot.SendMessageParams{
		ChatID: n.adminChatID,
		Text:   text,
	})
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to send admin notification", "error", err)
		return &DeliveryError{Err: err}
	}

	n.logger.DebugContext(ctx, "Admin notification sent", "chat_id", n.adminChatID)
	return nil
}

func (n *unconfiguredNotifier) Send(ctx context.Context, _ string) error {
	n.logger.WarnContext(ctx, "Dropping admin notification: notifier not configured")
	return ErrNotConfigured
}
