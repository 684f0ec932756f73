// Package flow implements the stage-progression workflow engine for KOL
// outreach conversations: the stage registry, handler dispatch, reply
// classification, routing, advancement, and the top-level driver loop.
package flow

import (
	"context"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// ContentSource generates draft text for a stage from the relevant subset of
// collected facts. The core treats its output as an opaque string.
type ContentSource interface {
	StageDraft(ctx context.Context, stage models.Stage, facts map[models.FactKey]string) (string, error)
}

// Polisher refines an outgoing message before sending. Refinement must be
// idempotent enough to be safely skipped or retried; on error the caller
// sends the unpolished draft.
type Polisher interface {
	Polish(ctx context.Context, draft string) (string, error)
}

// Classifier parses a raw reply into a decoded structure and assigns an
// intent. Implementations must be stage-aware and must default ambiguous
// text to IntentUnclear, never silently to IntentAccept.
type Classifier interface {
	Classify(ctx context.Context, rawReply string, state *models.ConversationState) (models.DecodedReply, models.Intent, error)
}

// QuestionAnswerer resolves an influencer question from a knowledge base and
// returns the answer text to send back within the same stage.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string, stage models.Stage, facts map[models.FactKey]string) (string, error)
}

// EscalationNotifier receives a snapshot of the full conversation state when
// a conversation enters the escalated phase.
type EscalationNotifier interface {
	Escalated(ctx context.Context, snapshot *models.ConversationState)
}

// MessagingService is the subset of the messaging transport the driver needs.
type MessagingService interface {
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)
	SendMessage(ctx context.Context, to string, body string) error
}

// StateManager persists and retrieves conversation state.
type StateManager interface {
	SaveConversation(ctx context.Context, state *models.ConversationState) error
	GetConversation(ctx context.Context, conversationID string) (*models.ConversationState, error)
	GetConversationByPhone(ctx context.Context, phoneNumber string) (*models.ConversationState, error)
	ListConversations(ctx context.Context) ([]*models.ConversationState, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}
