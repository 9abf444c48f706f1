package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// messageCreator is the slice of the Twilio API used to send messages.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// WhatsApp delivers reminders as WhatsApp messages through Twilio.
// A chat message cannot be replaced, so an identical re-present for a key is dropped.
type WhatsApp struct {
	api    messageCreator
	from   string
	to     string
	logger *zap.Logger

	mu   sync.Mutex
	sent map[int64]string
}

// NewWhatsApp creates a presenter sending from the configured Twilio WhatsApp number to recipient.
func NewWhatsApp(accountSID, authToken, fromWhatsApp, recipient string, logger *zap.Logger) *WhatsApp {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return newWhatsApp(client.Api, fromWhatsApp, recipient, logger)
}

func newWhatsApp(api messageCreator, from, to string, logger *zap.Logger) *WhatsApp {
	return &WhatsApp{
		api:    api,
		from:   normalizeWhatsAppAddress(from),
		to:     normalizeWhatsAppAddress(to),
		logger: logger,
		sent:   make(map[int64]string),
	}
}

// Present sends "title: body" unless the same text was already sent for key.
func (w *WhatsApp) Present(_ context.Context, key int64, title, body string) error {
	if w.from == "" {
		return fmt.Errorf("twilio sender WhatsApp number is not configured")
	}
	if w.to == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	text := messageText(title, body)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sent[key] == text {
		w.logger.Debug("whatsapp: duplicate reminder dropped", zap.Int64("key", key))
		return nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(w.to)
	params.SetFrom(w.from)
	params.SetBody(text)

	resp, err := w.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send message error: %w", err)
	}
	w.sent[key] = text

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	w.logger.Info("whatsapp: reminder sent", zap.Int64("key", key), zap.String("sid", sid))
	return nil
}

func messageText(title, body string) string {
	if body == "" || body == title {
		return "Reminder: " + title
	}
	return fmt.Sprintf("Reminder: %s\n%s", title, body)
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}
