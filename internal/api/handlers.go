// Package api provides HTTP handlers for the outreach workflow endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/FelixNg1022/agent-workflow/internal/messaging"
	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// startConversationHandler handles POST /conversations: it enrolls the
// influencer, opens the conversation, and registers the reply hook.
func (s *Server) startConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.startConversationHandler: processing enrollment", "method", r.Method, "path", r.URL.Path)

	var req models.StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.startConversationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.startConversationHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	canonicalPhone, err := s.msgService.ValidateAndCanonicalizeRecipient(req.PhoneNumber)
	if err != nil {
		slog.Warn("Server.startConversationHandler: phone validation failed", "error", err, "phone", req.PhoneNumber)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone number: "+err.Error()))
		return
	}

	now := time.Now()
	influencer := models.Influencer{
		ID:          uuid.NewString(),
		PhoneNumber: canonicalPhone,
		Nickname:    req.Nickname,
		ProfileURL:  req.ProfileURL,
		Bio:         req.Bio,
		Followers:   req.Followers,
		ContentType: req.ContentType,
		Platform:    req.Platform,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.st.SaveInfluencer(r.Context(), &influencer); err != nil {
		slog.Error("Server.startConversationHandler: influencer save failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save influencer"))
		return
	}

	state, err := s.driver.StartConversation(r.Context(), influencer)
	if err != nil {
		slog.Error("Server.startConversationHandler: start failed", "error", err, "phone", canonicalPhone)
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
		return
	}

	hook := messaging.CreateWorkflowHook(state.ID, s.driver, s.msgService)
	if err := s.respHandler.RegisterHook(canonicalPhone, hook); err != nil {
		// Enrollment stands; inbound replies can still arrive over the API.
		slog.Error("Server.startConversationHandler: hook registration failed", "error", err, "conversationID", state.ID)
	}

	slog.Info("Server.startConversationHandler: conversation started", "conversationID", state.ID, "phone", canonicalPhone)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Conversation started", state))
}

// listConversationsHandler handles GET /conversations.
func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.st.ListConversations(r.Context())
	if err != nil {
		slog.Error("Server.listConversationsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}
	slog.Debug("Server.listConversationsHandler: succeeded", "count", len(conversations))
	writeJSONResponse(w, http.StatusOK, models.Success(conversations))
}

// getConversationHandler handles GET /conversations/{id}.
func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	state, err := s.st.GetConversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.getConversationHandler: get failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// replyHandler handles POST /conversations/{id}/reply: it submits an
// influencer reply directly, bypassing the messaging webhook. Useful for
// testing and for channels without inbound webhooks.
func (s *Server) replyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	conversationID := r.PathValue("id")
	slog.Debug("Server.replyHandler: processing reply", "conversationID", conversationID)

	var req models.ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.replyHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	err := s.driver.SubmitReply(r.Context(), conversationID, req.ReplyText)
	switch {
	case err == nil:
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Reply processed", nil))
	case errors.Is(err, models.ErrConversationNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
	case errors.Is(err, models.ErrConversationBusy):
		writeJSONResponse(w, http.StatusConflict, models.Error("Conversation is processing a previous reply"))
	case errors.Is(err, models.ErrConversationSuspended):
		writeJSONResponse(w, http.StatusConflict, models.Error("Conversation is awaiting human review"))
	case errors.Is(err, models.ErrConversationTerminal):
		writeJSONResponse(w, http.StatusGone, models.Error("Conversation has ended"))
	default:
		slog.Error("Server.replyHandler: submit failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process reply"))
	}
}

// resolveHandler handles POST /conversations/{id}/resolve: a human operator
// resolves an escalated conversation with retry, skip, or cancel.
func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	conversationID := r.PathValue("id")
	slog.Debug("Server.resolveHandler: processing resolution", "conversationID", conversationID)

	var req models.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.resolveHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	err := s.driver.Resume(r.Context(), conversationID, req.Action)
	switch {
	case err == nil:
		slog.Info("Server.resolveHandler: conversation resolved", "conversationID", conversationID, "action", req.Action, "note", req.Note)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation resolved", nil))
	case errors.Is(err, models.ErrConversationNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
	case errors.Is(err, models.ErrConversationTerminal):
		writeJSONResponse(w, http.StatusGone, models.Error("Conversation has ended"))
	default:
		slog.Error("Server.resolveHandler: resolve failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	}
}

// cancelConversationHandler handles DELETE /conversations/{id}: it terminates
// the conversation and unregisters its reply hook. The record is kept for
// auditing.
func (s *Server) cancelConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	slog.Debug("Server.cancelConversationHandler: cancelling", "conversationID", conversationID)

	state, err := s.st.GetConversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.cancelConversationHandler: lookup failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get conversation"))
		return
	}

	if err := s.driver.Cancel(r.Context(), conversationID); err != nil {
		slog.Error("Server.cancelConversationHandler: cancel failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to cancel conversation"))
		return
	}

	if err := s.respHandler.UnregisterHook(state.PhoneNumber); err != nil {
		slog.Warn("Server.cancelConversationHandler: hook unregistration failed", "error", err, "conversationID", conversationID)
	}

	slog.Info("Server.cancelConversationHandler: conversation cancelled", "conversationID", conversationID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation cancelled", nil))
}

// escalationsHandler handles GET /escalations: conversations suspended for
// human review.
func (s *Server) escalationsHandler(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.st.ListConversations(r.Context())
	if err != nil {
		slog.Error("Server.escalationsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}

	escalated := make([]*models.ConversationState, 0)
	for _, state := range conversations {
		if state.NeedsHumanReview && state.Phase == models.PhaseEscalated {
			escalated = append(escalated, state)
		}
	}

	slog.Debug("Server.escalationsHandler: succeeded", "count", len(escalated))
	writeJSONResponse(w, http.StatusOK, models.Success(escalated))
}

// listInfluencersHandler handles GET /influencers.
func (s *Server) listInfluencersHandler(w http.ResponseWriter, r *http.Request) {
	influencers, err := s.st.ListInfluencers(r.Context())
	if err != nil {
		slog.Error("Server.listInfluencersHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list influencers"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(influencers))
}

// stagesHandler handles GET /stages: the stage catalog in order.
func (s *Server) stagesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.driver.Registry().Stages()))
}

// receiptsHandler handles GET /receipts.
func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.st.GetReceipts(r.Context())
	if err != nil {
		slog.Error("Server.receiptsHandler: fetch failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch receipts"))
		return
	}
	slog.Debug("Server.receiptsHandler: receipts fetched", "count", len(receipts))
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// responsesHandler handles GET /responses: all recorded inbound messages.
func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	responses, err := s.st.GetResponses(r.Context())
	if err != nil {
		slog.Error("Server.responsesHandler: fetch failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch responses"))
		return
	}
	slog.Debug("Server.responsesHandler: responses fetched", "count", len(responses))
	writeJSONResponse(w, http.StatusOK, models.Success(responses))
}

// statsHandler handles GET /stats: conversation phase counts plus inbound
// response metrics.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	phases, err := s.driver.Stats(r.Context())
	if err != nil {
		slog.Error("Server.statsHandler: phase stats failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}

	responses, err := s.st.GetResponses(r.Context())
	if err != nil {
		slog.Error("Server.statsHandler: fetch responses failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch responses"))
		return
	}
	perSender := make(map[string]int)
	var sumLen int
	for _, resp := range responses {
		perSender[resp.From]++
		sumLen += len(resp.Body)
	}
	avgLen := 0.0
	if len(responses) > 0 {
		avgLen = float64(sumLen) / float64(len(responses))
	}

	stats := map[string]interface{}{
		"conversations_by_phase": phases,
		"total_responses":        len(responses),
		"responses_per_sender":   perSender,
		"avg_response_length":    avgLen,
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// healthHandler provides a health check endpoint for monitoring and load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if s.respHandler != nil {
		healthData["registered_hooks"] = s.respHandler.GetHookCount()
	}

	if _, err := s.st.ListConversations(r.Context()); err != nil {
		slog.Warn("Server.healthHandler: store check failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach conversation store"
		writeJSONResponse(w, http.StatusServiceUnavailable, healthData)
		return
	}

	writeJSONResponse(w, http.StatusOK, healthData)
}
