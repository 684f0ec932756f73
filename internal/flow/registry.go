package flow

import (
	"log/slog"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// Registry is the ordered catalog of stages with per-stage handler lookup.
// It is built once at startup and read-only afterwards, so it is safely
// shared by all conversations.
type Registry struct {
	order    []models.Stage
	index    map[models.Stage]int
	handlers map[models.Stage]Handler
}

// NewRegistry builds the registry with the default stage catalog and
// handlers, each drawing openers from the given content pool.
func NewRegistry(pool *ContentPool) *Registry {
	r := &Registry{
		index:    make(map[models.Stage]int),
		handlers: make(map[models.Stage]Handler),
	}
	for _, h := range defaultHandlers(pool) {
		r.register(h)
	}
	slog.Debug("Registry initialized", "stages", len(r.order))
	return r
}

// register appends a stage to the catalog order. Adding a stage means
// registering a new handler entry, never branching on stage name in shared
// logic.
func (r *Registry) register(h Handler) {
	stage := h.Stage()
	if _, exists := r.index[stage]; exists {
		// The catalog is total and fixed; a duplicate registration is a
		// programming error caught at startup.
		panic("flow: duplicate stage registration: " + string(stage))
	}
	r.index[stage] = len(r.order)
	r.order = append(r.order, stage)
	r.handlers[stage] = h
}

// Stages returns a copy of the catalog order.
func (r *Registry) Stages() []models.Stage {
	out := make([]models.Stage, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of stages in the catalog.
func (r *Registry) Len() int {
	return len(r.order)
}

// IndexOf returns the ordinal position of a stage in the catalog.
func (r *Registry) IndexOf(stage models.Stage) (int, error) {
	idx, ok := r.index[stage]
	if !ok {
		return 0, &models.UnknownStageError{Stage: stage}
	}
	return idx, nil
}

// StageAt returns the stage at the given ordinal position.
func (r *Registry) StageAt(idx int) (models.Stage, error) {
	if idx < 0 || idx >= len(r.order) {
		return "", &models.UnknownStageError{Stage: models.Stage("")}
	}
	return r.order[idx], nil
}

// Next returns the unique successor of a stage in catalog order. The second
// return value is false when the stage is the last one (no next stage).
func (r *Registry) Next(stage models.Stage) (models.Stage, bool, error) {
	idx, err := r.IndexOf(stage)
	if err != nil {
		return "", false, err
	}
	if idx+1 >= len(r.order) {
		return "", false, nil
	}
	return r.order[idx+1], true, nil
}

// Handler returns the handler for a stage.
func (r *Registry) Handler(stage models.Stage) (Handler, error) {
	h, ok := r.handlers[stage]
	if !ok {
		return nil, &models.UnknownStageError{Stage: stage}
	}
	return h, nil
}

// CheckConsistency verifies that a conversation's stored stage index matches
// the registry's resolution of its current stage. A mismatch is corruption
// and is fatal for that conversation.
func (r *Registry) CheckConsistency(state *models.ConversationState) error {
	idx, err := r.IndexOf(state.CurrentStage)
	if err != nil {
		return err
	}
	if idx != state.CurrentStageIndex {
		return &models.StaleStateError{
			Stage:         state.CurrentStage,
			StoredIndex:   state.CurrentStageIndex,
			ResolvedIndex: idx,
		}
	}
	return nil
}
