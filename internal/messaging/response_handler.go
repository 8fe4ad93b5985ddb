// Package messaging provides response handling for the conversational form.
package messaging

import (
	"context"
	"log/slog"

	"github.com/OpenHaul/ProfileFlow/internal/flow"
	"github.com/OpenHaul/ProfileFlow/internal/models"
)

// ResponseHandler routes incoming transport responses into the flow engine
// and renders the resulting prompt instructions back onto the transport.
type ResponseHandler struct {
	engine     *flow.Engine
	msgService Service
}

// NewResponseHandler creates a ResponseHandler bridging the given engine and
// messaging service.
func NewResponseHandler(engine *flow.Engine, msgService Service) *ResponseHandler {
	return &ResponseHandler{engine: engine, msgService: msgService}
}

// Start consumes the transport's response channel until the context ends.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Debug("ResponseHandler starting")
	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Debug("ResponseHandler stopping due to context cancellation")
				return
			case resp, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler response channel closed")
					return
				}
				if err := rh.Handle(ctx, resp); err != nil {
					slog.Error("ResponseHandler failed to handle response", "error", err, "from", resp.From)
				}
			}
		}
	}()
}

// Handle processes one inbound answer: it canonicalizes the sender, advances
// the form state machine and sends the next prompt.
//
// Only validation rejections and terminated-session notices reach the user as
// messages; operational failures are logged and surfaced to the caller.
func (rh *ResponseHandler) Handle(ctx context.Context, resp models.Response) error {
	userID, err := rh.msgService.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Warn("ResponseHandler dropping response with invalid sender", "error", err, "from", resp.From)
		return nil
	}

	instruction, err := rh.engine.OnUserInput(ctx, userID, resp.Body)
	if err != nil {
		// A pending persistence failure still carries a complete, retryable
		// submission; tell the user their form is done and leave the retry to
		// the operator.
		if instruction.Kind != models.PromptSubmissionComplete {
			slog.Error("ResponseHandler engine error", "error", err, "userID", userID)
			return err
		}
		slog.Warn("ResponseHandler submission persistence pending", "error", err, "userID", userID)
	}

	body := RenderInstruction(instruction)
	if body == "" {
		return nil
	}
	if sendErr := rh.msgService.SendMessage(ctx, userID, body); sendErr != nil {
		slog.Error("ResponseHandler failed to send prompt", "error", sendErr, "userID", userID)
		return sendErr
	}
	slog.Debug("ResponseHandler prompt sent", "userID", userID, "kind", instruction.Kind)
	return err
}
