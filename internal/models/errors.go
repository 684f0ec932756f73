package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components.
var (
	// ErrClassificationFailure indicates intake could not produce any intent
	// (e.g. an empty reply). Routing treats it identically to an unclear
	// intent.
	ErrClassificationFailure = errors.New("classification produced no intent")

	// ErrConversationNotFound indicates the referenced conversation does not
	// exist in the store.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationBusy indicates a reply was submitted while the
	// conversation's stage-handler cycle is still in flight. At most one
	// cycle may run per conversation.
	ErrConversationBusy = errors.New("conversation has a cycle in flight")

	// ErrConversationTerminal indicates an operation was attempted on a
	// terminated or cancelled conversation.
	ErrConversationTerminal = errors.New("conversation is in a terminal phase")

	// ErrConversationSuspended indicates automatic processing was attempted
	// on a conversation awaiting human review.
	ErrConversationSuspended = errors.New("conversation is suspended pending human review")
)

// UnknownStageError indicates the registry was asked to resolve a stage that
// is not in the catalog. This is a programming/config error; the driver
// converts it into an escalation rather than crashing.
type UnknownStageError struct {
	Stage Stage
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", string(e.Stage))
}

// ExitConditionUnmetError indicates advancement was invoked while the stage's
// structural requirement is not satisfied. This is a contract violation by
// the routing decision and must surface loudly rather than be silently
// corrected.
type ExitConditionUnmetError struct {
	Stage   Stage
	Missing FactKey
}

func (e *ExitConditionUnmetError) Error() string {
	return fmt.Sprintf("exit condition unmet for stage %q: missing fact %q", string(e.Stage), string(e.Missing))
}

// StaleStateError indicates a conversation's stored stage index no longer
// matches the registry's resolution of its current stage. Fatal for that
// conversation; forces manual review.
type StaleStateError struct {
	Stage         Stage
	StoredIndex   int
	ResolvedIndex int
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale conversation state: stage %q stored at index %d but resolves to %d",
		string(e.Stage), e.StoredIndex, e.ResolvedIndex)
}
