// Package messaging provides response handling functionality for stateful interactions.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// ResponseAction defines a hook function that processes an influencer's response.
// It receives the influencer's canonical phone number, response text, and timestamp.
// It should return true if the response was handled, false otherwise.
type ResponseAction func(ctx context.Context, from, responseText string, timestamp int64) (handled bool, err error)

// ReplySubmitter feeds an inbound reply into the workflow engine. Defined here
// rather than importing the flow package to avoid a circular dependency.
type ReplySubmitter interface {
	SubmitReply(ctx context.Context, conversationID, replyText string) error
}

// ResponseRecorder persists inbound responses for auditing.
type ResponseRecorder interface {
	AddResponse(ctx context.Context, r models.Response) error
}

// ResponseHandler manages stateful response processing by maintaining a map of
// recipient -> action hooks and routing incoming responses appropriately.
type ResponseHandler struct {
	// hooks maps canonicalized phone numbers to response action functions
	hooks map[string]ResponseAction
	// mu protects concurrent access to the hooks map
	mu sync.RWMutex
	// msgService is used to send default responses when no hook is registered
	msgService Service
	// recorder persists every inbound response; may be nil
	recorder ResponseRecorder
	// defaultMessage is sent when no hook handles a response
	defaultMessage string
}

// NewResponseHandler creates a new ResponseHandler with the given messaging
// service and optional response recorder.
func NewResponseHandler(msgService Service, recorder ResponseRecorder) *ResponseHandler {
	return &ResponseHandler{
		hooks:          make(map[string]ResponseAction),
		msgService:     msgService,
		recorder:       recorder,
		defaultMessage: "Thanks for your message! We'll be in touch shortly.",
	}
}

// RegisterHook registers a response action for a specific influencer.
// The recipient should be a canonicalized phone number (e.g., "1234567890").
func (rh *ResponseHandler) RegisterHook(recipient string, action ResponseAction) error {
	canonicalRecipient, err := rh.msgService.ValidateAndCanonicalizeRecipient(recipient)
	if err != nil {
		slog.Error("ResponseHandler RegisterHook validation failed", "error", err, "recipient", recipient)
		return fmt.Errorf("invalid recipient: %w", err)
	}

	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.hooks[canonicalRecipient] = action

	slog.Debug("ResponseHandler hook registered", "recipient", canonicalRecipient)
	return nil
}

// UnregisterHook removes a response action for a specific influencer.
func (rh *ResponseHandler) UnregisterHook(recipient string) error {
	canonicalRecipient, err := rh.msgService.ValidateAndCanonicalizeRecipient(recipient)
	if err != nil {
		slog.Error("ResponseHandler UnregisterHook validation failed", "error", err, "recipient", recipient)
		return fmt.Errorf("invalid recipient: %w", err)
	}

	rh.mu.Lock()
	defer rh.mu.Unlock()
	delete(rh.hooks, canonicalRecipient)

	slog.Debug("ResponseHandler hook unregistered", "recipient", canonicalRecipient)
	return nil
}

// IsHookRegistered checks if a hook is registered for the given recipient.
func (rh *ResponseHandler) IsHookRegistered(recipient string) bool {
	canonicalRecipient, err := rh.msgService.ValidateAndCanonicalizeRecipient(recipient)
	if err != nil {
		slog.Debug("ResponseHandler IsHookRegistered validation failed", "error", err, "recipient", recipient)
		return false
	}

	rh.mu.RLock()
	defer rh.mu.RUnlock()
	_, exists := rh.hooks[canonicalRecipient]
	return exists
}

// GetHookCount returns the number of currently registered hooks.
func (rh *ResponseHandler) GetHookCount() int {
	rh.mu.RLock()
	defer rh.mu.RUnlock()
	return len(rh.hooks)
}

// ListRegisteredRecipients returns a slice of all recipients with registered hooks.
func (rh *ResponseHandler) ListRegisteredRecipients() []string {
	rh.mu.RLock()
	defer rh.mu.RUnlock()

	recipients := make([]string, 0, len(rh.hooks))
	for recipient := range rh.hooks {
		recipients = append(recipients, recipient)
	}
	return recipients
}

// SetDefaultMessage sets the default message sent when no hook handles a response.
func (rh *ResponseHandler) SetDefaultMessage(message string) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.defaultMessage = message
}

// ProcessResponse processes an incoming response by checking for registered hooks
// and executing them, or sending a default response if no hook is found.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	canonicalFrom, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("ResponseHandler ProcessResponse validation failed", "error", err, "from", response.From)
		return fmt.Errorf("invalid sender: %w", err)
	}

	if rh.recorder != nil {
		if err := rh.recorder.AddResponse(ctx, models.Response{
			From: canonicalFrom, Body: response.Body, Time: response.Time,
		}); err != nil {
			slog.Error("ResponseHandler failed to record response", "error", err, "from", canonicalFrom)
		}
	}

	slog.Debug("ResponseHandler processing response", "from", canonicalFrom, "body_length", len(response.Body))

	rh.mu.RLock()
	action, hasHook := rh.hooks[canonicalFrom]
	rh.mu.RUnlock()

	if hasHook {
		handled, err := action(ctx, canonicalFrom, response.Body, response.Time)
		if err != nil {
			slog.Error("ResponseHandler hook execution failed", "error", err, "from", canonicalFrom)
			return fmt.Errorf("hook execution failed: %w", err)
		}
		if handled {
			slog.Info("ResponseHandler response handled by hook", "from", canonicalFrom)
			return nil
		}
		slog.Debug("ResponseHandler hook did not handle response", "from", canonicalFrom)
	}

	rh.mu.RLock()
	defaultMsg := rh.defaultMessage
	rh.mu.RUnlock()
	if err := rh.msgService.SendMessage(ctx, canonicalFrom, defaultMsg); err != nil {
		slog.Error("ResponseHandler failed to send default response", "error", err, "from", canonicalFrom)
		return fmt.Errorf("failed to send default response: %w", err)
	}

	slog.Info("ResponseHandler sent default response", "from", canonicalFrom)
	return nil
}

// Start begins processing responses from the messaging service.
// This should be called once to start the response processing loop.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting response processing")

	go func() {
		defer slog.Info("ResponseHandler stopped response processing")

		for {
			select {
			case response, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler responses channel closed")
					return
				}
				if err := rh.ProcessResponse(ctx, response); err != nil {
					slog.Error("ResponseHandler failed to process response", "error", err, "from", response.From)
				}
			case <-ctx.Done():
				slog.Debug("ResponseHandler stopping due to context cancellation")
				return
			}
		}
	}()
}

// CreateWorkflowHook creates the hook for an active outreach conversation: it
// feeds replies into the workflow driver and translates engine refusals into
// polite holding messages.
func CreateWorkflowHook(conversationID string, driver ReplySubmitter, msgService Service) ResponseAction {
	return func(ctx context.Context, from, responseText string, timestamp int64) (bool, error) {
		slog.Debug("WorkflowHook processing response", "conversationID", conversationID, "from", from)

		err := driver.SubmitReply(ctx, conversationID, responseText)
		if err == nil {
			return true, nil
		}

		switch {
		case errors.Is(err, models.ErrConversationBusy):
			// A cycle is mid-flight; the reply was not consumed. Ask the
			// influencer to resend rather than silently dropping it.
			holdMsg := "One moment please, we're still processing your last message."
			if sendErr := msgService.SendMessage(ctx, from, holdMsg); sendErr != nil {
				slog.Error("WorkflowHook failed to send busy notice", "error", sendErr, "from", from)
			}
			return true, nil
		case errors.Is(err, models.ErrConversationSuspended):
			reviewMsg := "Thanks! A member of our team is reviewing the conversation and will reply personally."
			if sendErr := msgService.SendMessage(ctx, from, reviewMsg); sendErr != nil {
				slog.Error("WorkflowHook failed to send review notice", "error", sendErr, "from", from)
			}
			return true, nil
		case errors.Is(err, models.ErrConversationTerminal):
			slog.Debug("WorkflowHook reply for terminal conversation ignored", "conversationID", conversationID)
			return false, nil
		default:
			return false, fmt.Errorf("submitting reply for conversation %s: %w", conversationID, err)
		}
	}
}
