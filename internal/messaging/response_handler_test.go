package messaging

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OpenHaul/ProfileFlow/internal/flow"
	"github.com/OpenHaul/ProfileFlow/internal/models"
	"github.com/OpenHaul/ProfileFlow/internal/schema"
	"github.com/OpenHaul/ProfileFlow/internal/store"
)

// mockService records sent messages and lets tests inject responses.
type mockService struct {
	mu        sync.Mutex
	sent      []sentMessage
	receiptCh chan models.Receipt
	respCh    chan models.Response
}

type sentMessage struct {
	to   string
	body string
}

func newMockService() *mockService {
	return &mockService{
		receiptCh: make(chan models.Receipt, DefaultChannelBufferSize),
		respCh:    make(chan models.Response, DefaultChannelBufferSize),
	}
}

func (m *mockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (m *mockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: to, body: body})
	return nil
}

func (m *mockService) Start(ctx context.Context) error { return nil }
func (m *mockService) Stop() error                     { return nil }

func (m *mockService) Receipts() <-chan models.Receipt   { return m.receiptCh }
func (m *mockService) Responses() <-chan models.Response { return m.respCh }

func newTestHandler(t *testing.T) (*ResponseHandler, *mockService) {
	t.Helper()
	s, err := schema.Default()
	if err != nil {
		t.Fatalf("failed to load default schema: %v", err)
	}
	engine := flow.NewEngine(s, store.NewInMemoryStore())
	svc := newMockService()
	return NewResponseHandler(engine, svc), svc
}

func TestHandleSendsFirstPrompt(t *testing.T) {
	handler, svc := newTestHandler(t)

	err := handler.Handle(context.Background(), models.Response{From: "+380671234567", Body: "hi"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(svc.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(svc.sent))
	}
	if svc.sent[0].to != "380671234567" {
		t.Errorf("sent to %s, want canonicalized 380671234567", svc.sent[0].to)
	}
	if !strings.Contains(svc.sent[0].body, fieldPrompts["full_name"]) {
		t.Errorf("first prompt = %q, want the full_name question", svc.sent[0].body)
	}
}

func TestHandleAdvancesThroughAnswers(t *testing.T) {
	handler, svc := newTestHandler(t)
	ctx := context.Background()
	from := "+380671234567"

	for _, body := range []string{"hi", "Ivan Petrenko", "+380671234567"} {
		if err := handler.Handle(ctx, models.Response{From: from, Body: body}); err != nil {
			t.Fatalf("Handle(%q) failed: %v", body, err)
		}
	}
	last := svc.sent[len(svc.sent)-1]
	if !strings.Contains(last.body, fieldPrompts["age"]) {
		t.Errorf("after name and phone expected the age question, got %q", last.body)
	}
}

func TestHandleDropsInvalidSender(t *testing.T) {
	handler, svc := newTestHandler(t)

	err := handler.Handle(context.Background(), models.Response{From: "not-a-number", Body: "hi"})
	if err != nil {
		t.Fatalf("Handle returned error for invalid sender: %v", err)
	}
	if len(svc.sent) != 0 {
		t.Errorf("message sent to invalid sender: %+v", svc.sent)
	}
}

func TestHandleRendersRejection(t *testing.T) {
	handler, svc := newTestHandler(t)
	ctx := context.Background()
	from := "+380671234567"

	for _, body := range []string{"hi", "Ivan Petrenko", "+380671234567", "17"} {
		if err := handler.Handle(ctx, models.Response{From: from, Body: body}); err != nil {
			t.Fatalf("Handle(%q) failed: %v", body, err)
		}
	}
	last := svc.sent[len(svc.sent)-1]
	if !strings.HasPrefix(last.body, rejectionMessages[models.RejectionOutOfRange]) {
		t.Errorf("rejection not surfaced to user: %q", last.body)
	}
	if !strings.Contains(last.body, fieldPrompts["age"]) {
		t.Errorf("field not re-asked after rejection: %q", last.body)
	}
}

func TestStartConsumesResponseChannel(t *testing.T) {
	handler, svc := newTestHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler.Start(ctx)
	svc.respCh <- models.Response{From: "+380671234567", Body: "hi"}

	deadline := time.Now().Add(5 * time.Second)
	for {
		svc.mu.Lock()
		sent := len(svc.sent)
		svc.mu.Unlock()
		if sent > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no prompt sent for channel-delivered response")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
