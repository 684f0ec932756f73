package flow

import (
	"fmt"
	"log/slog"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// Dispatcher resolves a conversation's current stage to its handler, runs the
// pure draft step, and validates any resulting state patch. It performs no
// I/O; sending and generation happen in the driver afterwards.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch produces the draft for the conversation's current stage and applies
// any handler patch to the state. It fails with StaleStateError when the
// stored stage index disagrees with the registry, and with UnknownStageError
// when the stage is not in the catalog.
func (d *Dispatcher) Dispatch(state *models.ConversationState) (DraftMessage, error) {
	if err := d.registry.CheckConsistency(state); err != nil {
		return DraftMessage{}, err
	}
	handler, err := d.registry.Handler(state.CurrentStage)
	if err != nil {
		return DraftMessage{}, err
	}

	draft, patch, err := handler.BuildDraft(state)
	if err != nil {
		return DraftMessage{}, fmt.Errorf("building draft for stage %s: %w", state.CurrentStage, err)
	}
	if patch != nil {
		if err := d.applyPatch(state, handler, patch); err != nil {
			return DraftMessage{}, err
		}
	}
	slog.Debug("Dispatcher.Dispatch: draft built", "conversationID", state.ID, "stage", state.CurrentStage)
	return draft, nil
}

// Collect runs the current stage's fact collection over a decoded reply and
// commits the validated patch to state. Facts are write-once: a key already
// present is left untouched.
func (d *Dispatcher) Collect(state *models.ConversationState, decoded *models.DecodedReply) error {
	handler, err := d.registry.Handler(state.CurrentStage)
	if err != nil {
		return err
	}
	patch := handler.CollectFacts(decoded)
	if patch == nil {
		return nil
	}
	return d.applyPatch(state, handler, patch)
}

// ExitSatisfied evaluates the current stage's exit condition over committed
// facts.
func (d *Dispatcher) ExitSatisfied(state *models.ConversationState) (bool, models.FactKey, error) {
	handler, err := d.registry.Handler(state.CurrentStage)
	if err != nil {
		return false, "", err
	}
	ok, missing := handler.ExitSatisfied(state.Facts)
	return ok, missing, nil
}

// applyPatch commits a handler patch, rejecting writes to keys the stage does
// not own and ignoring re-writes of already-collected facts.
func (d *Dispatcher) applyPatch(state *models.ConversationState, handler Handler, patch *models.StatePatch) error {
	owned := make(map[models.FactKey]bool)
	for _, key := range handler.OwnedFacts() {
		owned[key] = true
	}
	for key, value := range patch.Facts {
		if !owned[key] {
			return fmt.Errorf("stage %s attempted to write foreign fact %q", handler.Stage(), key)
		}
		if _, exists := state.Facts[key]; exists {
			slog.Debug("Dispatcher.applyPatch: fact already collected, keeping original",
				"conversationID", state.ID, "stage", handler.Stage(), "fact", key)
			continue
		}
		state.Facts[key] = value
		slog.Info("Dispatcher.applyPatch: fact collected",
			"conversationID", state.ID, "stage", handler.Stage(), "fact", key)
	}
	return nil
}
