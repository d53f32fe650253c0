// Package notify tells clinic staff about booking changes over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dentaldesk/internal/events"
	"dentaldesk/internal/metrics"
	"dentaldesk/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TelegramSender is the part of tgbotapi.BotAPI the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ProviderLookup resolves provider names for messages.
type ProviderLookup interface {
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
}

// Notifier reacts to appointment events.
type Notifier interface {
	HandleEvent(ctx context.Context, event events.Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) HandleEvent(context.Context, events.Event) error { return nil }

// NewBotSender connects to the Telegram Bot API.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// TelegramNotifier posts booking changes to staff chats.
type TelegramNotifier struct {
	sender     TelegramSender
	chatIDs    []int64
	providers  ProviderLookup
	limiter    *rate.Limiter
	maxRetries int
	logger     zerolog.Logger
}

func NewTelegramNotifier(sender TelegramSender, chatIDs []int64, providers ProviderLookup, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:     sender,
		chatIDs:    chatIDs,
		providers:  providers,
		limiter:    rate.NewLimiter(rate.Limit(20), 30),
		maxRetries: 2,
		logger:     logger.With().Str("component", "notify").Logger(),
	}
}

// HandleEvent sends a message for booked and canceled appointments and ignores other events.
func (n *TelegramNotifier) HandleEvent(ctx context.Context, event events.Event) error {
	var headline string
	switch event.Type {
	case events.AppointmentBooked:
		headline = "New appointment"
	case events.AppointmentCanceled:
		headline = "Appointment canceled"
	default:
		return nil
	}

	var appt models.Appointment
	if err := event.Decode(&appt); err != nil {
		return err
	}
	return n.Broadcast(ctx, n.format(ctx, headline, &appt))
}

func (n *TelegramNotifier) format(ctx context.Context, headline string, a *models.Appointment) string {
	provider := fmt.Sprintf("provider #%d", a.ProviderID)
	if n.providers != nil {
		if p, err := n.providers.GetProvider(ctx, a.ProviderID); err == nil {
			provider = p.Name
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s, %s %s", headline, provider, a.Date, a.Time)
	if a.PatientName != "" {
		fmt.Fprintf(&b, "\nPatient: %s", a.PatientName)
		if a.PatientPhone != "" {
			fmt.Fprintf(&b, " (%s)", a.PatientPhone)
		}
	}
	if a.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", a.Notes)
	}
	return b.String()
}

// Broadcast sends text to every staff chat. Failures for one chat do not stop the others.
func (n *TelegramNotifier) Broadcast(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.chatIDs {
		err := n.send(ctx, chatID, text)
		metrics.IncNotification(err)
		if err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("staff notification failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	for attempt := 0; ; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		_, err := n.sender.Send(msg)
		if err == nil {
			return nil
		}

		var tgErr *tgbotapi.Error
		if !errors.As(err, &tgErr) || tgErr.Code != 429 || attempt >= n.maxRetries {
			return err
		}

		wait := time.Duration(tgErr.RetryAfter) * time.Second
		n.logger.Info().Dur("retry_after", wait).Int64("chat_id", chatID).Msg("rate limited by telegram, waiting")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
