package flow

import (
	"log/slog"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// unclearEscalationThreshold is the number of consecutive unclear replies in
// one stage after which routing stops re-asking and hands off to a human.
const unclearEscalationThreshold = 2

// Router maps a classified intent plus conversation state to the next route.
// The decision is pure and total: every intent yields exactly one route, and
// the same inputs always yield the same output.
type Router struct {
	dispatcher *Dispatcher
}

// NewRouter creates a router that consults the dispatcher for exit conditions.
func NewRouter(dispatcher *Dispatcher) *Router {
	return &Router{dispatcher: dispatcher}
}

// Decide returns the route for the given intent and state. Facts must already
// be committed; Decide never mutates state.
func (r *Router) Decide(intent models.Intent, state *models.ConversationState) models.Route {
	route := r.decide(intent, state)
	slog.Info("Router.Decide: route selected",
		"conversationID", state.ID, "stage", state.CurrentStage,
		"intent", intent, "route", route)
	return route
}

func (r *Router) decide(intent models.Intent, state *models.ConversationState) models.Route {
	// A suspended conversation never routes automatically, whatever the
	// intent says.
	if state.NeedsHumanReview {
		return models.RouteEscalation
	}

	switch intent {
	case models.IntentTimeout, models.IntentInternalError:
		return models.RouteEscalation
	case models.IntentDecline, models.IntentNegotiate:
		return models.RouteEscalation
	case models.IntentQuestion:
		return models.RouteQuestion
	case models.IntentUnclear:
		if state.UnclearStreak >= unclearEscalationThreshold {
			return models.RouteEscalation
		}
		return models.RouteQuestion
	case models.IntentAccept:
		ok, _, err := r.dispatcher.ExitSatisfied(state)
		if err != nil {
			return models.RouteEscalation
		}
		if ok {
			return models.RouteContinue
		}
		// Agreement without the required fact: re-ask within the stage
		// rather than advance on vibes.
		return models.RouteQuestion
	default:
		return models.RouteEscalation
	}
}
