package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OpenHaul/ProfileFlow/internal/models"
	"github.com/OpenHaul/ProfileFlow/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService wraps a WhatsApp client and emits receipt and response
// events on channels consumed by the response handler.
type WhatsAppService struct {
	client    whatsapp.Sender
	receiptCh chan models.Receipt
	respCh    chan models.Response
}

// NewWhatsAppService creates a WhatsAppService around the given client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{
		client:    client,
		receiptCh: make(chan models.Receipt, DefaultChannelBufferSize),
		respCh:    make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// recipient to its bare phone number.
func (w *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage sends a message through the underlying WhatsApp client.
func (w *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Debug("WhatsAppService SendMessage", "to", to, "body_length", len(body))
	return w.client.SendMessage(ctx, to, body)
}

// Start registers the whatsmeow event handler when a real client is in use.
// Mock clients have no event stream, so there is nothing to hook up.
func (w *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService starting")
	realClient, ok := w.client.(*whatsapp.Client)
	if !ok {
		slog.Debug("WhatsAppService using non-event client, skipping event handler registration")
		return nil
	}
	waClient := realClient.GetClient()
	if waClient == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	waClient.AddEventHandler(w.handleWhatsAppEvent)
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop closes the event channels.
func (w *WhatsAppService) Stop() error {
	slog.Debug("WhatsAppService stopping")
	close(w.receiptCh)
	close(w.respCh)
	return nil
}

// Receipts returns the channel of receipt events.
func (w *WhatsAppService) Receipts() <-chan models.Receipt {
	return w.receiptCh
}

// Responses returns the channel of incoming user answers.
func (w *WhatsAppService) Responses() <-chan models.Response {
	return w.respCh
}

// handleWhatsAppEvent translates whatsmeow events into receipts and responses.
func (w *WhatsAppService) handleWhatsAppEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		if v.Info.IsFromMe {
			return
		}
		body := v.Message.GetConversation()
		if body == "" && v.Message.GetExtendedTextMessage() != nil {
			body = v.Message.GetExtendedTextMessage().GetText()
		}
		if body == "" {
			slog.Debug("WhatsAppService ignoring non-text message", "from", v.Info.Sender.User)
			return
		}
		resp := models.Response{
			From: v.Info.Sender.User,
			Body: body,
			Time: v.Info.Timestamp.Unix(),
		}
		select {
		case w.respCh <- resp:
			slog.Debug("WhatsAppService response enqueued", "from", resp.From)
		case <-time.After(DefaultChannelTimeout):
			slog.Warn("WhatsAppService response channel full, dropping response", "from", resp.From)
		}
	case *events.Receipt:
		var status models.StatusType
		switch v.Type {
		case events.ReceiptTypeDelivered:
			status = models.StatusTypeDelivered
		case events.ReceiptTypeRead:
			status = models.StatusTypeRead
		default:
			return
		}
		receipt := models.Receipt{
			To:     v.Sender.User,
			Status: status,
			Time:   v.Timestamp.Unix(),
		}
		select {
		case w.receiptCh <- receipt:
		case <-time.After(DefaultChannelTimeout):
			slog.Warn("WhatsAppService receipt channel full, dropping receipt", "to", receipt.To)
		}
	}
}
