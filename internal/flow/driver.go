package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// Driver runs the per-conversation workflow loop: dispatch a stage message,
// park awaiting the reply, then classify, collect facts, route, and either
// advance, answer a question, or escalate. At most one cycle runs per
// conversation at any instant.
type Driver struct {
	registry   *Registry
	dispatcher *Dispatcher
	router     *Router
	advancer   *Advancer

	classifier Classifier
	content    ContentSource
	polisher   Polisher
	answerer   QuestionAnswerer
	notifier   EscalationNotifier

	messaging MessagingService
	states    StateManager
	pool      *ContentPool

	// locks holds one *sync.Mutex per conversation ID.
	locks sync.Map
}

// DriverOption customizes a Driver's collaborators.
type DriverOption func(*Driver)

// WithClassifier overrides the default rule-based classifier.
func WithClassifier(c Classifier) DriverOption {
	return func(d *Driver) { d.classifier = c }
}

// WithContentSource overrides the default static content source.
func WithContentSource(c ContentSource) DriverOption {
	return func(d *Driver) { d.content = c }
}

// WithPolisher overrides the default no-op polisher.
func WithPolisher(p Polisher) DriverOption {
	return func(d *Driver) { d.polisher = p }
}

// WithQuestionAnswerer sets the question-answering backend. Without one,
// questions escalate.
func WithQuestionAnswerer(q QuestionAnswerer) DriverOption {
	return func(d *Driver) { d.answerer = q }
}

// WithEscalationNotifier sets the notifier invoked when a conversation
// escalates.
func WithEscalationNotifier(n EscalationNotifier) DriverOption {
	return func(d *Driver) { d.notifier = n }
}

// NewDriver creates the workflow driver. Messaging and state storage are
// required; everything else defaults to the deterministic built-ins.
func NewDriver(states StateManager, messaging MessagingService, opts ...DriverOption) *Driver {
	pool := DefaultContentPool()
	registry := NewRegistry(pool)
	dispatcher := NewDispatcher(registry)
	d := &Driver{
		registry:   registry,
		dispatcher: dispatcher,
		router:     NewRouter(dispatcher),
		advancer:   NewAdvancer(registry, dispatcher),
		classifier: NewRuleClassifier(),
		content:    NewStaticContentSource(pool),
		polisher:   NoopPolisher{},
		messaging:  messaging,
		states:     states,
		pool:       pool,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry exposes the stage catalog, primarily for the API layer.
func (d *Driver) Registry() *Registry { return d.registry }

func (d *Driver) lock(conversationID string) *sync.Mutex {
	mu, _ := d.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// StartConversation enrolls an influencer and dispatches the first stage
// message. A non-terminal conversation already open for the phone number is
// an error.
func (d *Driver) StartConversation(ctx context.Context, influencer models.Influencer) (*models.ConversationState, error) {
	canonical, err := d.messaging.ValidateAndCanonicalizeRecipient(influencer.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("invalid phone number: %w", err)
	}

	existing, err := d.states.GetConversationByPhone(ctx, canonical)
	if err != nil && !errors.Is(err, models.ErrConversationNotFound) {
		return nil, fmt.Errorf("checking existing conversation: %w", err)
	}
	if existing != nil && !existing.Phase.Terminal() {
		return nil, fmt.Errorf("conversation %s already active for %s", existing.ID, canonical)
	}

	state := models.NewConversationState(uuid.NewString(), influencer.ID, canonical)
	mu := d.lock(state.ID)
	mu.Lock()
	defer mu.Unlock()

	slog.Info("Driver.StartConversation: enrolling influencer",
		"conversationID", state.ID, "phone", canonical)
	d.runDispatchCycle(ctx, state)
	if err := d.states.SaveConversation(ctx, state); err != nil {
		return nil, fmt.Errorf("saving conversation: %w", err)
	}
	return state, nil
}

// SubmitReply feeds an inbound reply into the conversation's workflow cycle.
// It rejects replies while a cycle is in flight, after termination, and while
// the conversation is suspended for human review.
func (d *Driver) SubmitReply(ctx context.Context, conversationID, replyText string) error {
	mu := d.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	state, err := d.states.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	switch {
	case state.Phase.Terminal():
		return models.ErrConversationTerminal
	case state.Phase == models.PhaseEscalated:
		return models.ErrConversationSuspended
	case state.Phase.InFlight():
		return models.ErrConversationBusy
	}

	state.AppendMessage(models.DirectionInbound, replyText)
	state.PendingIncoming = replyText
	state.Phase = models.PhaseClassifying
	state.Touch()

	decoded, intent, err := d.classifier.Classify(ctx, replyText, state)
	if err != nil {
		if !errors.Is(err, models.ErrClassificationFailure) {
			slog.Error("Driver.SubmitReply: classifier error, degrading to unclear",
				"conversationID", conversationID, "error", err)
		}
		intent = models.IntentUnclear
	}
	state.Decoded = &decoded
	state.Intent = intent
	if intent == models.IntentUnclear {
		state.UnclearStreak++
	} else {
		state.UnclearStreak = 0
	}

	if err := d.dispatcher.Collect(state, state.Decoded); err != nil {
		d.escalateInternal(ctx, state, err)
		return d.states.SaveConversation(ctx, state)
	}

	state.Phase = models.PhaseRouting
	route := d.router.Decide(intent, state)
	state.Route = route

	switch route {
	case models.RouteContinue:
		state.Phase = models.PhaseAdvancing
		if err := d.advancer.Advance(state); err != nil {
			d.escalateInternal(ctx, state, err)
			break
		}
		if state.WorkflowComplete {
			slog.Info("Driver.SubmitReply: workflow finished", "conversationID", conversationID)
			break
		}
		d.runDispatchCycle(ctx, state)
	case models.RouteQuestion:
		if intent == models.IntentQuestion {
			d.handleQuestion(ctx, state)
		} else {
			d.reAsk(ctx, state)
		}
	case models.RouteEscalation:
		d.escalate(ctx, state)
	}

	return d.states.SaveConversation(ctx, state)
}

// Resume applies a human operator's resolution to an escalated conversation.
func (d *Driver) Resume(ctx context.Context, conversationID string, action models.ResumeAction) error {
	mu := d.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	state, err := d.states.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if state.Phase.Terminal() {
		return models.ErrConversationTerminal
	}
	if state.Phase != models.PhaseEscalated {
		return fmt.Errorf("conversation %s is not escalated (phase %s)", conversationID, state.Phase)
	}

	slog.Info("Driver.Resume: operator resolution", "conversationID", conversationID, "action", action)
	switch action {
	case models.ResumeRetry:
		state.NeedsHumanReview = false
		state.UnclearStreak = 0
		d.runDispatchCycle(ctx, state)
	case models.ResumeSkip:
		state.NeedsHumanReview = false
		state.UnclearStreak = 0
		if err := d.advancer.Skip(state); err != nil {
			d.escalateInternal(ctx, state, err)
			break
		}
		if !state.WorkflowComplete {
			d.runDispatchCycle(ctx, state)
		}
	case models.ResumeCancel:
		d.markCancelled(state)
	default:
		return fmt.Errorf("unsupported resume action %q", action)
	}
	return d.states.SaveConversation(ctx, state)
}

// Cancel terminates a conversation regardless of phase. Idempotent on
// already-terminal conversations.
func (d *Driver) Cancel(ctx context.Context, conversationID string) error {
	mu := d.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	state, err := d.states.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if state.Phase.Terminal() {
		return nil
	}
	d.markCancelled(state)
	return d.states.SaveConversation(ctx, state)
}

// ForceTimeout escalates a conversation that has been awaiting a reply past
// the inactivity threshold. No-op for conversations in any other phase.
func (d *Driver) ForceTimeout(ctx context.Context, conversationID string) error {
	mu := d.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	state, err := d.states.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if state.Phase != models.PhaseAwaitingReply {
		return nil
	}
	slog.Warn("Driver.ForceTimeout: inactivity escalation",
		"conversationID", conversationID, "stage", state.CurrentStage,
		"lastActivity", state.LastActivityAt)
	state.Intent = models.IntentTimeout
	state.Route = models.RouteEscalation
	d.escalate(ctx, state)
	return d.states.SaveConversation(ctx, state)
}

// RecoverInterrupted escalates every conversation found mid-cycle, which can
// only happen after a crash. Called once at startup before new traffic.
func (d *Driver) RecoverInterrupted(ctx context.Context) error {
	all, err := d.states.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations for recovery: %w", err)
	}
	for _, state := range all {
		if !state.Phase.InFlight() {
			continue
		}
		mu := d.lock(state.ID)
		mu.Lock()
		slog.Warn("Driver.RecoverInterrupted: conversation found mid-cycle",
			"conversationID", state.ID, "phase", state.Phase)
		d.escalateInternal(ctx, state, fmt.Errorf("interrupted in phase %s", state.Phase))
		if err := d.states.SaveConversation(ctx, state); err != nil {
			mu.Unlock()
			return fmt.Errorf("saving recovered conversation %s: %w", state.ID, err)
		}
		mu.Unlock()
	}
	return nil
}

// runDispatchCycle builds, generates, polishes, and sends the current stage's
// message, leaving the conversation parked awaiting the reply. Generation and
// polishing degrade gracefully; registry failures and send failures escalate.
func (d *Driver) runDispatchCycle(ctx context.Context, state *models.ConversationState) {
	state.Phase = models.PhaseDispatching
	draft, err := d.dispatcher.Dispatch(state)
	if err != nil {
		d.escalateInternal(ctx, state, err)
		return
	}

	body := draft.Body
	generated, err := d.content.StageDraft(ctx, draft.Stage, draft.Facts)
	if err != nil {
		slog.Warn("Driver.runDispatchCycle: content generation failed, using canned ask",
			"conversationID", state.ID, "stage", draft.Stage, "error", err)
		generated = d.pool.Ask(draft.Stage)
	}
	if generated != "" {
		body = body + "\n\n" + generated
	}

	state.Phase = models.PhaseAwaitingPolish
	polished, err := d.polisher.Polish(ctx, body)
	if err != nil {
		slog.Warn("Driver.runDispatchCycle: polish failed, sending unpolished draft",
			"conversationID", state.ID, "stage", draft.Stage, "error", err)
		polished = body
	}

	d.sendAndPark(ctx, state, polished)
}

// reAsk re-sends the current stage's ask and re-parks the conversation. Used
// when a reply routes back to the stage without being a question: a first
// unclear strike, or an accept that left the exit fact uncollected.
func (d *Driver) reAsk(ctx context.Context, state *models.ConversationState) {
	state.Phase = models.PhaseQuestionHandling
	slog.Debug("Driver.reAsk: re-sending stage ask",
		"conversationID", state.ID, "stage", state.CurrentStage, "intent", state.Intent)
	d.sendAndPark(ctx, state, d.pool.Ask(state.CurrentStage))
}

// handleQuestion answers within the current stage and re-parks the
// conversation. Without an answering backend, or when answering fails, the
// question escalates.
func (d *Driver) handleQuestion(ctx context.Context, state *models.ConversationState) {
	state.Phase = models.PhaseQuestionHandling
	if d.answerer == nil {
		slog.Info("Driver.handleQuestion: no answering backend, escalating",
			"conversationID", state.ID, "stage", state.CurrentStage)
		d.escalate(ctx, state)
		return
	}

	answer, err := d.answerer.Answer(ctx, state.PendingIncoming, state.CurrentStage, state.Facts)
	if err != nil {
		slog.Warn("Driver.handleQuestion: answering failed, escalating",
			"conversationID", state.ID, "stage", state.CurrentStage, "error", err)
		d.escalate(ctx, state)
		return
	}

	polished, err := d.polisher.Polish(ctx, answer)
	if err != nil {
		polished = answer
	}
	d.sendAndPark(ctx, state, polished)
}

// sendAndPark delivers an outgoing message, records it, and parks the
// conversation awaiting the next reply.
func (d *Driver) sendAndPark(ctx context.Context, state *models.ConversationState, body string) {
	state.PendingOutgoing = body
	if err := d.messaging.SendMessage(ctx, state.PhoneNumber, body); err != nil {
		slog.Error("Driver.sendAndPark: send failed",
			"conversationID", state.ID, "stage", state.CurrentStage, "error", err)
		d.escalateInternal(ctx, state, err)
		return
	}
	state.AppendMessage(models.DirectionOutbound, body)
	state.PendingOutgoing = ""
	state.Phase = models.PhaseAwaitingReply
	state.Touch()
	slog.Debug("Driver.sendAndPark: message sent, awaiting reply",
		"conversationID", state.ID, "stage", state.CurrentStage)
}

// markCancelled terminates the conversation and drops any partially-applied
// cycle state. No further messages go out.
func (d *Driver) markCancelled(state *models.ConversationState) {
	state.Phase = models.PhaseCancelled
	state.PendingIncoming = ""
	state.PendingOutgoing = ""
	state.Decoded = nil
	state.Touch()
	slog.Info("Driver.markCancelled: conversation cancelled",
		"conversationID", state.ID, "stage", state.CurrentStage)
}

// escalate suspends the conversation for human review and notifies the
// operator channel with a snapshot.
func (d *Driver) escalate(ctx context.Context, state *models.ConversationState) {
	state.NeedsHumanReview = true
	state.Route = models.RouteEscalation
	state.Phase = models.PhaseEscalated
	state.Touch()
	slog.Warn("Driver.escalate: conversation suspended for review",
		"conversationID", state.ID, "stage", state.CurrentStage, "intent", state.Intent)
	if d.notifier != nil {
		d.notifier.Escalated(ctx, state.Clone())
	}
}

// escalateInternal records an engine failure (unknown stage, stale state,
// contract violation, transport failure) as an auditable escalation.
func (d *Driver) escalateInternal(ctx context.Context, state *models.ConversationState, cause error) {
	slog.Error("Driver.escalateInternal: engine failure",
		"conversationID", state.ID, "stage", state.CurrentStage, "error", cause)
	state.Intent = models.IntentInternalError
	d.escalate(ctx, state)
}

// LogNotifier is the default escalation sink: it writes the snapshot's key
// fields to the operator log. The API's escalation endpoints read the same
// suspended conversations from the store.
type LogNotifier struct{}

// Escalated implements EscalationNotifier.
func (LogNotifier) Escalated(ctx context.Context, snapshot *models.ConversationState) {
	slog.Warn("LogNotifier.Escalated: conversation needs human review",
		"conversationID", snapshot.ID,
		"phone", snapshot.PhoneNumber,
		"stage", snapshot.CurrentStage,
		"intent", snapshot.Intent,
		"unclearStreak", snapshot.UnclearStreak,
		"lastReply", snapshot.PendingIncoming)
}

// Stats summarizes conversations by phase for the status endpoint.
func (d *Driver) Stats(ctx context.Context) (map[string]int, error) {
	all, err := d.states.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	for _, state := range all {
		out[string(state.Phase)]++
	}
	out["total"] = len(all)
	return out, nil
}

// StaleSince returns conversations that have been awaiting a reply with no
// activity since the cutoff. Used by the inactivity sweeper.
func (d *Driver) StaleSince(ctx context.Context, cutoff time.Time) ([]*models.ConversationState, error) {
	all, err := d.states.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	var stale []*models.ConversationState
	for _, state := range all {
		if state.Phase == models.PhaseAwaitingReply && state.LastActivityAt.Before(cutoff) {
			stale = append(stale, state)
		}
	}
	return stale, nil
}
