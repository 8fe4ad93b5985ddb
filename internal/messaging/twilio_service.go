package messaging

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/OpenHaul/ProfileFlow/internal/models"
	"github.com/OpenHaul/ProfileFlow/internal/twilio"
)

// TwilioService delivers messages through the Twilio Business API and turns
// incoming webhook posts into response events.
type TwilioService struct {
	client    twilio.Sender
	receiptCh chan models.Receipt
	respCh    chan models.Response

	mu      sync.Mutex
	stopped bool
}

// NewTwilioService creates a TwilioService around the given client.
func NewTwilioService(client twilio.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		receiptCh: make(chan models.Receipt, DefaultChannelBufferSize),
		respCh:    make(chan models.Response, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a Twilio
// recipient to its bare phone number. Twilio addresses arrive with the
// "whatsapp:+" scheme prefix, which canonicalization strips.
func (t *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage sends a message through the underlying Twilio client.
func (t *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return ErrServiceStopped
	}
	slog.Debug("TwilioService SendMessage", "to", to, "body_length", len(body))
	if err := t.client.SendMessage(ctx, to, body); err != nil {
		return err
	}
	t.safeEmitReceipt(models.Receipt{To: to, Status: models.StatusTypeSent, Time: time.Now().Unix()})
	return nil
}

// Start begins background processing. Twilio pushes events via webhook, so
// there is nothing to poll.
func (t *TwilioService) Start(ctx context.Context) error {
	slog.Debug("TwilioService starting")
	return nil
}

// Stop marks the service stopped and closes the event channels.
func (t *TwilioService) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	close(t.receiptCh)
	close(t.respCh)
	slog.Debug("TwilioService stopped")
	return nil
}

// Receipts returns the channel of receipt events.
func (t *TwilioService) Receipts() <-chan models.Receipt {
	return t.receiptCh
}

// Responses returns the channel of incoming user answers.
func (t *TwilioService) Responses() <-chan models.Response {
	return t.respCh
}

// WebhookHandler returns an HTTP handler for Twilio inbound message webhooks.
// Twilio posts form-encoded From and Body values for each incoming message.
func (t *TwilioService) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			slog.Warn("TwilioService webhook form parse failed", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		from := r.FormValue("From")
		body := r.FormValue("Body")
		if from == "" || body == "" {
			slog.Warn("TwilioService webhook missing From or Body")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		t.safeEmitResponse(models.Response{From: from, Body: body, Time: time.Now().Unix()})
		w.WriteHeader(http.StatusOK)
	}
}

// safeEmitReceipt emits a receipt without blocking or panicking on a stopped
// service.
func (t *TwilioService) safeEmitReceipt(receipt models.Receipt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.receiptCh <- receipt:
	default:
		slog.Warn("TwilioService receipt channel full, dropping receipt", "to", receipt.To)
	}
}

// safeEmitResponse emits a response without blocking or panicking on a
// stopped service.
func (t *TwilioService) safeEmitResponse(resp models.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.respCh <- resp:
		slog.Debug("TwilioService response enqueued", "from", resp.From)
	default:
		slog.Warn("TwilioService response channel full, dropping response", "from", resp.From)
	}
}
