package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// mockTwilioSender counts outbound sends.
type mockTwilioSender struct {
	sent int
}

func (m *mockTwilioSender) SendMessage(ctx context.Context, to string, body string) error {
	m.sent++
	return nil
}

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "+380671234567", want: "380671234567"},
		{input: "whatsapp:+380671234567", want: "380671234567"},
		{input: "380 67 123 45 67", want: "380671234567"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "12345", wantErr: true},
	}
	for _, tt := range tests {
		got, err := canonicalizePhone(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("canonicalizePhone(%q) = %q, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("canonicalizePhone(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("canonicalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTwilioWebhookEmitsResponse(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})
	handler := svc.WebhookHandler()

	form := url.Values{}
	form.Set("From", "whatsapp:+380671234567")
	form.Set("Body", "hello")
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want %d", rec.Code, http.StatusOK)
	}

	select {
	case resp := <-svc.Responses():
		if resp.From != "whatsapp:+380671234567" || resp.Body != "hello" {
			t.Errorf("emitted response = %+v", resp)
		}
	default:
		t.Fatal("webhook did not emit a response event")
	}
}

func TestTwilioWebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(&mockTwilioSender{})
	handler := svc.WebhookHandler()

	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader("Body=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	handler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("webhook status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTwilioServiceStop(t *testing.T) {
	sender := &mockTwilioSender{}
	svc := NewTwilioService(sender)

	if err := svc.SendMessage(context.Background(), "380671234567", "hi"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if sender.sent != 1 {
		t.Errorf("sent = %d, want 1", sender.sent)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stopping twice is safe.
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	if err := svc.SendMessage(context.Background(), "380671234567", "hi"); err != ErrServiceStopped {
		t.Errorf("send after stop error = %v, want ErrServiceStopped", err)
	}

	// Webhook posts after stop must not panic on closed channels.
	handler := svc.WebhookHandler()
	form := url.Values{}
	form.Set("From", "whatsapp:+380671234567")
	form.Set("Body", "late")
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	handler(httptest.NewRecorder(), req)
}
