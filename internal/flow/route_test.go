package flow

import (
	"testing"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

func newTestRouter() *Router {
	return NewRouter(newTestDispatcher())
}

func TestRouteDecisionTable(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name   string
		intent models.Intent
		setup  func(*models.ConversationState)
		want   models.Route
	}{
		{"decline escalates", models.IntentDecline, nil, models.RouteEscalation},
		{"negotiate escalates", models.IntentNegotiate, nil, models.RouteEscalation},
		{"question routes to question", models.IntentQuestion, nil, models.RouteQuestion},
		{"timeout escalates", models.IntentTimeout, nil, models.RouteEscalation},
		{"internal error escalates", models.IntentInternalError, nil, models.RouteEscalation},
		{"first unclear re-asks", models.IntentUnclear, func(s *models.ConversationState) {
			s.UnclearStreak = 1
		}, models.RouteQuestion},
		{"second unclear escalates", models.IntentUnclear, func(s *models.ConversationState) {
			s.UnclearStreak = 2
		}, models.RouteEscalation},
		{"accept without exit fact re-asks", models.IntentAccept, nil, models.RouteQuestion},
		{"accept with exit fact continues", models.IntentAccept, func(s *models.ConversationState) {
			s.Facts[models.FactPlatformLinks] = "https://example.com/me"
		}, models.RouteContinue},
		{"unknown intent escalates", models.Intent("mystery"), nil, models.RouteEscalation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := models.NewConversationState("conv-1", "inf-1", "1234567890")
			if tc.setup != nil {
				tc.setup(state)
			}
			got := router.Decide(tc.intent, state)
			if got != tc.want {
				t.Errorf("Decide(%s): expected %s, got %s", tc.intent, tc.want, got)
			}
		})
	}
}

func TestRouteSuspendedConversationAlwaysEscalates(t *testing.T) {
	router := newTestRouter()
	state := models.NewConversationState("conv-1", "inf-1", "1234567890")
	state.NeedsHumanReview = true
	state.Facts[models.FactPlatformLinks] = "https://example.com/me"

	for _, intent := range []models.Intent{
		models.IntentAccept, models.IntentQuestion, models.IntentUnclear,
	} {
		if got := router.Decide(intent, state); got != models.RouteEscalation {
			t.Errorf("suspended conversation routed %s for intent %s", got, intent)
		}
	}
}

func TestRouteUnknownStageEscalates(t *testing.T) {
	router := newTestRouter()
	state := models.NewConversationState("conv-1", "inf-1", "1234567890")
	state.CurrentStage = "warmup"

	if got := router.Decide(models.IntentAccept, state); got != models.RouteEscalation {
		t.Errorf("expected escalation when exit condition cannot be evaluated, got %s", got)
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	router := newTestRouter()
	state := models.NewConversationState("conv-1", "inf-1", "1234567890")
	state.UnclearStreak = 1

	first := router.Decide(models.IntentUnclear, state)
	for i := 0; i < 5; i++ {
		if got := router.Decide(models.IntentUnclear, state); got != first {
			t.Fatalf("route changed between identical calls: %s vs %s", first, got)
		}
	}
}
