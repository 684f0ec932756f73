package flow

import (
	"log/slog"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// Advancer moves a conversation to its successor stage. Advancement is
// strictly monotonic: one step forward, never backward, never skipping except
// through the explicit operator skip.
type Advancer struct {
	registry   *Registry
	dispatcher *Dispatcher
}

// NewAdvancer creates an advancer over the registry and dispatcher.
func NewAdvancer(registry *Registry, dispatcher *Dispatcher) *Advancer {
	return &Advancer{registry: registry, dispatcher: dispatcher}
}

// Advance re-verifies the current stage's exit condition and, if it holds,
// moves the conversation one stage forward. Advancing past the last stage
// marks the workflow complete. An unmet exit condition is a routing contract
// violation and fails loudly with ExitConditionUnmetError.
func (a *Advancer) Advance(state *models.ConversationState) error {
	ok, missing, err := a.dispatcher.ExitSatisfied(state)
	if err != nil {
		return err
	}
	if !ok {
		return &models.ExitConditionUnmetError{Stage: state.CurrentStage, Missing: missing}
	}
	return a.step(state)
}

// Skip moves the conversation forward without checking the exit condition.
// Reserved for the operator skip resolution on an escalated conversation.
func (a *Advancer) Skip(state *models.ConversationState) error {
	slog.Warn("Advancer.Skip: bypassing exit condition",
		"conversationID", state.ID, "stage", state.CurrentStage)
	return a.step(state)
}

func (a *Advancer) step(state *models.ConversationState) error {
	if err := a.registry.CheckConsistency(state); err != nil {
		return err
	}
	next, hasNext, err := a.registry.Next(state.CurrentStage)
	if err != nil {
		return err
	}

	state.StageCompleted = true
	state.UnclearStreak = 0
	state.Intent = ""
	state.Route = ""
	state.Decoded = nil
	state.PendingIncoming = ""

	if !hasNext {
		state.WorkflowComplete = true
		state.Phase = models.PhaseTerminated
		slog.Info("Advancer.step: workflow complete",
			"conversationID", state.ID, "finalStage", state.CurrentStage)
		return nil
	}

	idx, err := a.registry.IndexOf(next)
	if err != nil {
		return err
	}
	prev := state.CurrentStage
	state.CurrentStage = next
	state.CurrentStageIndex = idx
	state.StageCompleted = false
	slog.Info("Advancer.step: stage advanced",
		"conversationID", state.ID, "from", prev, "to", next)
	return nil
}
