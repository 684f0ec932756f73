package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// mockStateManager is an in-memory StateManager for driver tests.
type mockStateManager struct {
	conversations map[string]*models.ConversationState
	saveErr       error
}

func newMockStateManager() *mockStateManager {
	return &mockStateManager{conversations: make(map[string]*models.ConversationState)}
}

func (m *mockStateManager) SaveConversation(ctx context.Context, state *models.ConversationState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.conversations[state.ID] = state
	return nil
}

func (m *mockStateManager) GetConversation(ctx context.Context, id string) (*models.ConversationState, error) {
	state, ok := m.conversations[id]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	return state, nil
}

func (m *mockStateManager) GetConversationByPhone(ctx context.Context, phone string) (*models.ConversationState, error) {
	for _, state := range m.conversations {
		if state.PhoneNumber == phone {
			return state, nil
		}
	}
	return nil, models.ErrConversationNotFound
}

func (m *mockStateManager) ListConversations(ctx context.Context) ([]*models.ConversationState, error) {
	out := make([]*models.ConversationState, 0, len(m.conversations))
	for _, state := range m.conversations {
		out = append(out, state)
	}
	return out, nil
}

func (m *mockStateManager) DeleteConversation(ctx context.Context, id string) error {
	if _, ok := m.conversations[id]; !ok {
		return models.ErrConversationNotFound
	}
	delete(m.conversations, id)
	return nil
}

// mockMessaging records sent messages and can be told to fail.
type mockMessaging struct {
	sent    []string
	sendErr error
}

func (m *mockMessaging) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, recipient)
	if len(cleaned) < 6 {
		return "", fmt.Errorf("invalid phone number: %s", recipient)
	}
	return cleaned, nil
}

func (m *mockMessaging) SendMessage(ctx context.Context, to, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, body)
	return nil
}

// mockNotifier records escalation snapshots.
type mockNotifier struct {
	snapshots []*models.ConversationState
}

func (m *mockNotifier) Escalated(ctx context.Context, snapshot *models.ConversationState) {
	m.snapshots = append(m.snapshots, snapshot)
}

// mockAnswerer returns a fixed answer or an error.
type mockAnswerer struct {
	answer string
	err    error
}

func (m *mockAnswerer) Answer(ctx context.Context, question string, stage models.Stage, facts map[models.FactKey]string) (string, error) {
	return m.answer, m.err
}

func newTestDriver(opts ...DriverOption) (*Driver, *mockStateManager, *mockMessaging) {
	states := newMockStateManager()
	msg := &mockMessaging{}
	return NewDriver(states, msg, opts...), states, msg
}

func startTestConversation(t *testing.T, d *Driver) *models.ConversationState {
	t.Helper()
	state, err := d.StartConversation(context.Background(), models.Influencer{
		ID:          "inf-1",
		PhoneNumber: "+1 (234) 567-8900",
	})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	return state
}

func TestStartConversationDispatchesGreeting(t *testing.T) {
	d, states, msg := newTestDriver()
	state := startTestConversation(t, d)

	if state.CurrentStage != models.StageGreet {
		t.Errorf("expected greet stage, got %s", state.CurrentStage)
	}
	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("expected awaiting_reply, got %s", state.Phase)
	}
	if state.PhoneNumber != "12345678900" {
		t.Errorf("expected canonical phone, got %s", state.PhoneNumber)
	}
	if len(msg.sent) != 1 {
		t.Fatalf("expected one outgoing message, got %d", len(msg.sent))
	}
	if len(state.MessageLog) != 1 || state.MessageLog[0].Direction != models.DirectionOutbound {
		t.Errorf("expected one outbound log entry, got %v", state.MessageLog)
	}
	if _, ok := states.conversations[state.ID]; !ok {
		t.Error("conversation was not persisted")
	}
}

func TestStartConversationRejectsDuplicatePhone(t *testing.T) {
	d, _, _ := newTestDriver()
	startTestConversation(t, d)

	_, err := d.StartConversation(context.Background(), models.Influencer{
		ID:          "inf-2",
		PhoneNumber: "12345678900",
	})
	if err == nil {
		t.Fatal("expected duplicate enrollment to fail")
	}
}

func TestStartConversationAllowsReenrollAfterTerminal(t *testing.T) {
	d, _, _ := newTestDriver()
	state := startTestConversation(t, d)

	if err := d.Cancel(context.Background(), state.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, err := d.StartConversation(context.Background(), models.Influencer{
		ID:          "inf-2",
		PhoneNumber: "12345678900",
	}); err != nil {
		t.Fatalf("re-enrollment after cancel should succeed: %v", err)
	}
}

func TestSubmitReplyAdvancesOnAccept(t *testing.T) {
	d, _, msg := newTestDriver()
	state := startTestConversation(t, d)

	err := d.SubmitReply(context.Background(), state.ID, "Sure! https://instagram.com/someone")
	if err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.CurrentStage != models.StageConfirmType {
		t.Errorf("expected advancement to confirm-type, got %s", state.CurrentStage)
	}
	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("expected awaiting_reply after re-dispatch, got %s", state.Phase)
	}
	if got := state.Facts[models.FactPlatformLinks]; got != "https://instagram.com/someone" {
		t.Errorf("expected platform links fact, got %q", got)
	}
	// Greeting plus the confirm-type dispatch.
	if len(msg.sent) != 2 {
		t.Errorf("expected 2 outgoing messages, got %d", len(msg.sent))
	}
}

func TestSubmitReplyDeclineEscalates(t *testing.T) {
	notifier := &mockNotifier{}
	d, _, _ := newTestDriver(WithEscalationNotifier(notifier))
	state := startTestConversation(t, d)

	if err := d.SubmitReply(context.Background(), state.ID, "Not interested, thanks."); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.Phase != models.PhaseEscalated {
		t.Errorf("expected escalated phase, got %s", state.Phase)
	}
	if !state.NeedsHumanReview {
		t.Error("expected needs_human_review flag")
	}
	if state.Intent != models.IntentDecline {
		t.Errorf("expected decline intent, got %s", state.Intent)
	}
	if len(notifier.snapshots) != 1 {
		t.Fatalf("expected one escalation notification, got %d", len(notifier.snapshots))
	}
	// Snapshot must be isolated from live state.
	notifier.snapshots[0].Facts[models.FactPlatformLinks] = "tampered"
	if _, ok := state.Facts[models.FactPlatformLinks]; ok {
		t.Error("escalation snapshot shares fact map with live state")
	}
}

func TestSubmitReplyQuestionWithoutAnswererEscalates(t *testing.T) {
	d, _, _ := newTestDriver()
	state := startTestConversation(t, d)

	if err := d.SubmitReply(context.Background(), state.ID, "What is the campaign about?"); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.Phase != models.PhaseEscalated {
		t.Errorf("expected escalation without answering backend, got %s", state.Phase)
	}
}

func TestSubmitReplyQuestionAnsweredInStage(t *testing.T) {
	d, _, msg := newTestDriver(WithQuestionAnswerer(&mockAnswerer{answer: "It's a summer campaign."}))
	state := startTestConversation(t, d)

	if err := d.SubmitReply(context.Background(), state.ID, "What is the campaign about?"); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.CurrentStage != models.StageGreet {
		t.Errorf("question handling must stay in stage, got %s", state.CurrentStage)
	}
	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("expected awaiting_reply after answer, got %s", state.Phase)
	}
	if len(msg.sent) != 2 || msg.sent[1] != "It's a summer campaign." {
		t.Errorf("expected answer to be sent, got %v", msg.sent)
	}
}

func TestSubmitReplyFirstUnclearReasksWithoutAnswerer(t *testing.T) {
	d, _, msg := newTestDriver()
	state := startTestConversation(t, d)

	if err := d.SubmitReply(context.Background(), state.ID, "qwerty"); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("first unclear must re-ask even without an answering backend, got %s", state.Phase)
	}
	if state.NeedsHumanReview {
		t.Error("first unclear must not suspend the conversation")
	}
	if state.UnclearStreak != 1 {
		t.Errorf("expected streak 1, got %d", state.UnclearStreak)
	}
	if len(msg.sent) != 2 || msg.sent[1] != DefaultContentPool().Ask(models.StageGreet) {
		t.Errorf("expected the stage ask to be re-sent, got %v", msg.sent)
	}
}

func TestSubmitReplyAcceptWithoutFactReasks(t *testing.T) {
	d, _, msg := newTestDriver()
	state := startTestConversation(t, d)

	// Accepting without sharing links leaves the stage's exit fact missing.
	if err := d.SubmitReply(context.Background(), state.ID, "Sounds good!"); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.CurrentStage != models.StageGreet {
		t.Errorf("accept without the exit fact must stay in stage, got %s", state.CurrentStage)
	}
	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("expected awaiting_reply after re-ask, got %s", state.Phase)
	}
	if len(msg.sent) != 2 || msg.sent[1] != DefaultContentPool().Ask(models.StageGreet) {
		t.Errorf("expected the stage ask to be re-sent, got %v", msg.sent)
	}
}

func TestSubmitReplyUnclearStreakEscalates(t *testing.T) {
	d, _, _ := newTestDriver(WithQuestionAnswerer(&mockAnswerer{answer: "Could you clarify?"}))
	state := startTestConversation(t, d)
	ctx := context.Background()

	if err := d.SubmitReply(ctx, state.ID, "qwerty"); err != nil {
		t.Fatalf("first unclear reply failed: %v", err)
	}
	if state.Phase != models.PhaseAwaitingReply || state.UnclearStreak != 1 {
		t.Fatalf("first unclear should re-ask, got phase=%s streak=%d", state.Phase, state.UnclearStreak)
	}

	if err := d.SubmitReply(ctx, state.ID, "qwerty again"); err != nil {
		t.Fatalf("second unclear reply failed: %v", err)
	}
	if state.Phase != models.PhaseEscalated {
		t.Errorf("second consecutive unclear should escalate, got %s", state.Phase)
	}
	if state.UnclearStreak != 2 {
		t.Errorf("expected streak 2, got %d", state.UnclearStreak)
	}
}

func TestSubmitReplyGuards(t *testing.T) {
	d, states, _ := newTestDriver()
	state := startTestConversation(t, d)
	ctx := context.Background()

	state.Phase = models.PhaseClassifying
	if err := d.SubmitReply(ctx, state.ID, "hello"); !errors.Is(err, models.ErrConversationBusy) {
		t.Errorf("expected ErrConversationBusy, got %v", err)
	}

	state.Phase = models.PhaseEscalated
	if err := d.SubmitReply(ctx, state.ID, "hello"); !errors.Is(err, models.ErrConversationSuspended) {
		t.Errorf("expected ErrConversationSuspended, got %v", err)
	}

	state.Phase = models.PhaseCancelled
	if err := d.SubmitReply(ctx, state.ID, "hello"); !errors.Is(err, models.ErrConversationTerminal) {
		t.Errorf("expected ErrConversationTerminal, got %v", err)
	}

	delete(states.conversations, state.ID)
	if err := d.SubmitReply(ctx, state.ID, "hello"); !errors.Is(err, models.ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSubmitReplySendFailureEscalates(t *testing.T) {
	d, _, msg := newTestDriver()
	state := startTestConversation(t, d)

	msg.sendErr = errors.New("carrier rejected")
	err := d.SubmitReply(context.Background(), state.ID, "yes https://instagram.com/someone")
	if err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.Phase != models.PhaseEscalated {
		t.Errorf("expected escalation on send failure, got %s", state.Phase)
	}
	if state.Intent != models.IntentInternalError {
		t.Errorf("expected internal_error intent, got %s", state.Intent)
	}
}

func TestResumeRetryRedispatchesStage(t *testing.T) {
	d, _, msg := newTestDriver()
	state := startTestConversation(t, d)
	ctx := context.Background()

	if err := d.SubmitReply(ctx, state.ID, "Not interested."); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.Phase != models.PhaseEscalated {
		t.Fatalf("expected escalated, got %s", state.Phase)
	}

	if err := d.Resume(ctx, state.ID, models.ResumeRetry); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("expected awaiting_reply after retry, got %s", state.Phase)
	}
	if state.NeedsHumanReview {
		t.Error("retry must clear the review flag")
	}
	if state.CurrentStage != models.StageGreet {
		t.Errorf("retry must stay in stage, got %s", state.CurrentStage)
	}
	if len(msg.sent) != 2 {
		t.Errorf("expected re-dispatch message, got %d sends", len(msg.sent))
	}
}

func TestResumeSkipAdvancesWithoutFact(t *testing.T) {
	d, _, _ := newTestDriver()
	state := startTestConversation(t, d)
	ctx := context.Background()

	if err := d.SubmitReply(ctx, state.ID, "Not interested."); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if err := d.Resume(ctx, state.ID, models.ResumeSkip); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state.CurrentStage != models.StageConfirmType {
		t.Errorf("expected skip to confirm-type, got %s", state.CurrentStage)
	}
	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("expected awaiting_reply after skip dispatch, got %s", state.Phase)
	}
	if _, ok := state.Facts[models.FactPlatformLinks]; ok {
		t.Error("skip must not fabricate the skipped fact")
	}
}

func TestResumeCancelTerminates(t *testing.T) {
	d, _, _ := newTestDriver()
	state := startTestConversation(t, d)
	ctx := context.Background()

	if err := d.SubmitReply(ctx, state.ID, "Not interested."); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if err := d.Resume(ctx, state.ID, models.ResumeCancel); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state.Phase != models.PhaseCancelled {
		t.Errorf("expected cancelled, got %s", state.Phase)
	}
	if state.Decoded != nil || state.PendingIncoming != "" || state.PendingOutgoing != "" {
		t.Error("cancellation must drop partially-applied cycle state")
	}
}

func TestResumeRequiresEscalatedPhase(t *testing.T) {
	d, _, _ := newTestDriver()
	state := startTestConversation(t, d)
	ctx := context.Background()

	if err := d.Resume(ctx, state.ID, models.ResumeRetry); err == nil {
		t.Error("expected error resuming a non-escalated conversation")
	}

	state.Phase = models.PhaseTerminated
	if err := d.Resume(ctx, state.ID, models.ResumeRetry); !errors.Is(err, models.ErrConversationTerminal) {
		t.Errorf("expected ErrConversationTerminal, got %v", err)
	}
}

func TestResumeRejectsUnknownAction(t *testing.T) {
	d, _, _ := newTestDriver()
	state := startTestConversation(t, d)
	state.Phase = models.PhaseEscalated

	if err := d.Resume(context.Background(), state.ID, models.ResumeAction("restart")); err == nil {
		t.Error("expected error for unsupported resume action")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	d, _, _ := newTestDriver()
	state := startTestConversation(t, d)
	ctx := context.Background()

	if err := d.Cancel(ctx, state.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := d.Cancel(ctx, state.ID); err != nil {
		t.Errorf("second Cancel should be a no-op, got %v", err)
	}
	if state.Phase != models.PhaseCancelled {
		t.Errorf("expected cancelled, got %s", state.Phase)
	}
}

func TestForceTimeoutOnlyWhileAwaitingReply(t *testing.T) {
	notifier := &mockNotifier{}
	d, _, _ := newTestDriver(WithEscalationNotifier(notifier))
	state := startTestConversation(t, d)
	ctx := context.Background()

	if err := d.ForceTimeout(ctx, state.ID); err != nil {
		t.Fatalf("ForceTimeout failed: %v", err)
	}
	if state.Phase != models.PhaseEscalated {
		t.Errorf("expected escalation, got %s", state.Phase)
	}
	if state.Intent != models.IntentTimeout {
		t.Errorf("expected timeout intent, got %s", state.Intent)
	}

	// Already escalated: a second sweep pass must not touch it.
	before := len(notifier.snapshots)
	if err := d.ForceTimeout(ctx, state.ID); err != nil {
		t.Fatalf("second ForceTimeout failed: %v", err)
	}
	if len(notifier.snapshots) != before {
		t.Error("ForceTimeout on a non-awaiting conversation must be a no-op")
	}
}

func TestWorkflowRunsToCompletion(t *testing.T) {
	d, _, msg := newTestDriver()
	state := startTestConversation(t, d)
	ctx := context.Background()

	replies := []string{
		"hi! here is my page https://instagram.com/someone",
		"a solo video with a gift arrangement works",
		"yes, the brief looks good",
		"confirmed, next week works",
		"the ceramic mug set",
		"42 Harbour Street, Apt 7, Springfield 90210",
		"yes, it arrived",
		"got it, will follow the script",
		"done, the video is live",
	}

	for i, reply := range replies {
		if err := d.SubmitReply(ctx, state.ID, reply); err != nil {
			t.Fatalf("reply %d (%q) failed: %v", i, reply, err)
		}
		if state.Phase == models.PhaseEscalated {
			t.Fatalf("reply %d (%q) unexpectedly escalated at stage %s", i, reply, state.CurrentStage)
		}
	}

	if !state.WorkflowComplete {
		t.Fatal("expected workflow complete")
	}
	if state.Phase != models.PhaseTerminated {
		t.Errorf("expected terminated, got %s", state.Phase)
	}

	wantFacts := []models.FactKey{
		models.FactPlatformLinks,
		models.FactCollaborationType,
		models.FactBriefAcknowledged,
		models.FactScheduleConfirmed,
		models.FactProductChoice,
		models.FactShippingAddress,
		models.FactReceiptConfirmed,
		models.FactScriptAcknowledged,
	}
	for _, key := range wantFacts {
		if _, ok := state.Facts[key]; !ok {
			t.Errorf("missing collected fact %s", key)
		}
	}
	// One dispatch per stage.
	if len(msg.sent) != 9 {
		t.Errorf("expected 9 outgoing messages, got %d", len(msg.sent))
	}
}

func TestRecoverInterruptedEscalatesMidCycle(t *testing.T) {
	d, states, _ := newTestDriver()
	state := startTestConversation(t, d)
	parked := startOtherConversation(t, d, "inf-2", "9876543210")

	state.Phase = models.PhaseRouting
	if err := d.RecoverInterrupted(context.Background()); err != nil {
		t.Fatalf("RecoverInterrupted failed: %v", err)
	}
	if state.Phase != models.PhaseEscalated {
		t.Errorf("interrupted conversation should be escalated, got %s", state.Phase)
	}
	if state.Intent != models.IntentInternalError {
		t.Errorf("expected internal_error intent, got %s", state.Intent)
	}
	if parked.Phase != models.PhaseAwaitingReply {
		t.Errorf("parked conversation must be untouched, got %s", parked.Phase)
	}
	if len(states.conversations) != 2 {
		t.Errorf("expected both conversations persisted, got %d", len(states.conversations))
	}
}

func startOtherConversation(t *testing.T, d *Driver, influencerID, phone string) *models.ConversationState {
	t.Helper()
	state, err := d.StartConversation(context.Background(), models.Influencer{
		ID:          influencerID,
		PhoneNumber: phone,
	})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	return state
}

func TestStatsCountsByPhase(t *testing.T) {
	d, _, _ := newTestDriver()
	startTestConversation(t, d)
	other := startOtherConversation(t, d, "inf-2", "9876543210")
	if err := d.Cancel(context.Background(), other.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	stats, err := d.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["total"] != 2 {
		t.Errorf("expected total 2, got %d", stats["total"])
	}
	if stats[string(models.PhaseAwaitingReply)] != 1 {
		t.Errorf("expected 1 awaiting_reply, got %d", stats[string(models.PhaseAwaitingReply)])
	}
	if stats[string(models.PhaseCancelled)] != 1 {
		t.Errorf("expected 1 cancelled, got %d", stats[string(models.PhaseCancelled)])
	}
}

func TestStaleSinceFiltersByPhaseAndActivity(t *testing.T) {
	d, _, _ := newTestDriver()
	old := startTestConversation(t, d)
	fresh := startOtherConversation(t, d, "inf-2", "9876543210")

	old.LastActivityAt = time.Now().Add(-100 * time.Hour)
	fresh.LastActivityAt = time.Now()

	stale, err := d.StaleSince(context.Background(), time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("StaleSince failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Errorf("expected only the old conversation, got %d entries", len(stale))
	}
}

func TestContentGenerationFailureDegradesToCannedAsk(t *testing.T) {
	failing := &failingContentSource{}
	d, _, msg := newTestDriver(WithContentSource(failing))
	startTestConversation(t, d)

	if len(msg.sent) != 1 {
		t.Fatalf("expected greeting despite generation failure, got %d sends", len(msg.sent))
	}
	if !strings.Contains(msg.sent[0], DefaultContentPool().Ask(models.StageGreet)) {
		t.Errorf("expected canned ask fallback in message, got %q", msg.sent[0])
	}
}

type failingContentSource struct{}

func (failingContentSource) StageDraft(ctx context.Context, stage models.Stage, facts map[models.FactKey]string) (string, error) {
	return "", errors.New("model unavailable")
}

func TestPolishFailureSendsUnpolishedDraft(t *testing.T) {
	d, _, msg := newTestDriver(WithPolisher(failingPolisher{}))
	state := startTestConversation(t, d)

	if state.Phase != models.PhaseAwaitingReply {
		t.Errorf("expected awaiting_reply despite polish failure, got %s", state.Phase)
	}
	if len(msg.sent) != 1 {
		t.Errorf("expected the unpolished draft to be sent, got %d sends", len(msg.sent))
	}
}

type failingPolisher struct{}

func (failingPolisher) Polish(ctx context.Context, draft string) (string, error) {
	return "", errors.New("polish backend down")
}

func TestClassifierErrorDegradesToUnclear(t *testing.T) {
	d, _, _ := newTestDriver(WithClassifier(erroringClassifier{}))
	state := startTestConversation(t, d)

	if err := d.SubmitReply(context.Background(), state.ID, "anything"); err != nil {
		t.Fatalf("SubmitReply failed: %v", err)
	}
	if state.Intent != models.IntentUnclear {
		t.Errorf("expected unclear intent on classifier error, got %s", state.Intent)
	}
	if state.UnclearStreak != 1 {
		t.Errorf("expected streak 1, got %d", state.UnclearStreak)
	}
}

type erroringClassifier struct{}

func (erroringClassifier) Classify(ctx context.Context, rawReply string, state *models.ConversationState) (models.DecodedReply, models.Intent, error) {
	return models.DecodedReply{RawText: rawReply, Stage: state.CurrentStage}, "", errors.New("backend down")
}
