package flow

import (
	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// DraftMessage is a stage handler's pure output: the opener text and the fact
// subset the content source may use to generate the rest of the message. No
// network or model calls happen while building it.
type DraftMessage struct {
	Stage models.Stage
	Body  string
	Facts map[models.FactKey]string
}

// StateView is the read-only window a handler gets into conversation state.
type StateView interface {
	Fact(key models.FactKey) (string, bool)
}

// Handler owns one stage: its draft, the fact keys it may write, and its exit
// condition. Handlers are pure and stateless; all conversation data flows in
// through the view or the decoded reply.
type Handler interface {
	Stage() models.Stage

	// OwnedFacts lists the fact keys this stage is allowed to write. The
	// dispatcher rejects patches touching any other key.
	OwnedFacts() []models.FactKey

	// BuildDraft produces the stage's outgoing draft and an optional state
	// patch derivable from current state alone.
	BuildDraft(view StateView) (DraftMessage, *models.StatePatch, error)

	// CollectFacts maps a decoded reply's entities onto this stage's owned
	// facts. Returns nil when the reply carries nothing for this stage.
	CollectFacts(decoded *models.DecodedReply) *models.StatePatch

	// ExitSatisfied reports whether the stage's structural requirement holds
	// over the committed facts. When it does not, the second return names the
	// missing fact.
	ExitSatisfied(facts map[models.FactKey]string) (bool, models.FactKey)
}

// stageHandler is the table-driven handler implementation every catalog stage
// uses. Stage-specific behavior lives entirely in the configuration, so adding
// a stage means adding one entry to defaultHandlers.
type stageHandler struct {
	stage models.Stage
	owned []models.FactKey

	// exitFact is the fact whose presence satisfies the exit condition.
	// Empty means the stage is always satisfied (terminal stage).
	exitFact models.FactKey
	// exitBool requires the exit fact to equal models.FactTrue rather than
	// merely be present.
	exitBool bool

	pool *ContentPool
}

func (h *stageHandler) Stage() models.Stage { return h.stage }

func (h *stageHandler) OwnedFacts() []models.FactKey {
	out := make([]models.FactKey, len(h.owned))
	copy(out, h.owned)
	return out
}

func (h *stageHandler) BuildDraft(view StateView) (DraftMessage, *models.StatePatch, error) {
	facts := make(map[models.FactKey]string)
	for _, key := range factContext(h.stage) {
		if v, ok := view.Fact(key); ok {
			facts[key] = v
		}
	}
	return DraftMessage{
		Stage: h.stage,
		Body:  h.pool.Opener(h.stage),
		Facts: facts,
	}, nil, nil
}

func (h *stageHandler) CollectFacts(decoded *models.DecodedReply) *models.StatePatch {
	if decoded == nil {
		return nil
	}
	var patch *models.StatePatch
	for _, key := range h.owned {
		v := decoded.Entity(string(key))
		if v == "" {
			continue
		}
		if patch == nil {
			patch = &models.StatePatch{Facts: make(map[models.FactKey]string)}
		}
		patch.Facts[key] = v
	}
	return patch
}

func (h *stageHandler) ExitSatisfied(facts map[models.FactKey]string) (bool, models.FactKey) {
	if h.exitFact == "" {
		return true, ""
	}
	v, ok := facts[h.exitFact]
	if !ok {
		return false, h.exitFact
	}
	if h.exitBool && v != models.FactTrue {
		return false, h.exitFact
	}
	return true, ""
}

// factContext lists the earlier-collected facts a stage's draft may reference.
// Kept minimal so generated content cannot leak facts a stage has no use for.
func factContext(stage models.Stage) []models.FactKey {
	switch stage {
	case models.StageBrief:
		return []models.FactKey{models.FactCollaborationType, models.FactProductType}
	case models.StageSchedule:
		return []models.FactKey{models.FactCollaborationType}
	case models.StageProduct:
		return []models.FactKey{models.FactProductType}
	case models.StageAddress:
		return []models.FactKey{models.FactProductChoice}
	case models.StageReminder:
		return []models.FactKey{models.FactProductChoice, models.FactShippingAddress}
	case models.StageScriptReminder:
		return []models.FactKey{models.FactScheduleConfirmed}
	default:
		return nil
	}
}

// defaultHandlers builds the catalog's handler set, in stage order.
func defaultHandlers(pool *ContentPool) []Handler {
	return []Handler{
		&stageHandler{
			stage:    models.StageGreet,
			owned:    []models.FactKey{models.FactPlatformLinks},
			exitFact: models.FactPlatformLinks,
			pool:     pool,
		},
		&stageHandler{
			stage: models.StageConfirmType,
			owned: []models.FactKey{
				models.FactCollaborationType,
				models.FactPriceRange,
				models.FactProductType,
			},
			exitFact: models.FactCollaborationType,
			pool:     pool,
		},
		&stageHandler{
			stage:    models.StageBrief,
			owned:    []models.FactKey{models.FactBriefAcknowledged},
			exitFact: models.FactBriefAcknowledged,
			exitBool: true,
			pool:     pool,
		},
		&stageHandler{
			stage:    models.StageSchedule,
			owned:    []models.FactKey{models.FactScheduleConfirmed},
			exitFact: models.FactScheduleConfirmed,
			exitBool: true,
			pool:     pool,
		},
		&stageHandler{
			stage:    models.StageProduct,
			owned:    []models.FactKey{models.FactProductChoice},
			exitFact: models.FactProductChoice,
			pool:     pool,
		},
		&stageHandler{
			stage:    models.StageAddress,
			owned:    []models.FactKey{models.FactShippingAddress},
			exitFact: models.FactShippingAddress,
			pool:     pool,
		},
		&stageHandler{
			stage:    models.StageReminder,
			owned:    []models.FactKey{models.FactReceiptConfirmed},
			exitFact: models.FactReceiptConfirmed,
			exitBool: true,
			pool:     pool,
		},
		&stageHandler{
			stage:    models.StageScriptReminder,
			owned:    []models.FactKey{models.FactScriptAcknowledged},
			exitFact: models.FactScriptAcknowledged,
			exitBool: true,
			pool:     pool,
		},
		&stageHandler{
			stage: models.StageFinal,
			pool:  pool,
		},
	}
}
