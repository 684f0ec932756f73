package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

type recordingRecorder struct {
	responses []models.Response
}

func (r *recordingRecorder) AddResponse(ctx context.Context, resp models.Response) error {
	r.responses = append(r.responses, resp)
	return nil
}

type stubSubmitter struct {
	err     error
	replies []string
}

func (s *stubSubmitter) SubmitReply(ctx context.Context, conversationID, replyText string) error {
	if s.err != nil {
		return s.err
	}
	s.replies = append(s.replies, replyText)
	return nil
}

func TestRegisterAndUnregisterHook(t *testing.T) {
	svc, _ := newTestService()
	rh := NewResponseHandler(svc, nil)

	called := false
	hook := func(ctx context.Context, from, text string, ts int64) (bool, error) {
		called = true
		return true, nil
	}

	if err := rh.RegisterHook("+1 (234) 567-8900", hook); err != nil {
		t.Fatalf("RegisterHook failed: %v", err)
	}
	// Lookup must work with any formatting of the same number.
	if !rh.IsHookRegistered("12345678900") {
		t.Error("hook not found under canonical number")
	}
	if rh.GetHookCount() != 1 {
		t.Errorf("expected 1 hook, got %d", rh.GetHookCount())
	}

	if err := rh.ProcessResponse(context.Background(), models.Response{From: "12345678900", Body: "hi"}); err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if !called {
		t.Error("hook was not invoked")
	}

	if err := rh.UnregisterHook("12345678900"); err != nil {
		t.Fatalf("UnregisterHook failed: %v", err)
	}
	if rh.IsHookRegistered("12345678900") {
		t.Error("hook still registered after unregister")
	}
}

func TestRegisterHookRejectsInvalidRecipient(t *testing.T) {
	svc, _ := newTestService()
	rh := NewResponseHandler(svc, nil)

	err := rh.RegisterHook("not-a-number", func(ctx context.Context, from, text string, ts int64) (bool, error) {
		return true, nil
	})
	if err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestProcessResponseRecordsAndDefaults(t *testing.T) {
	svc, mock := newTestService()
	recorder := &recordingRecorder{}
	rh := NewResponseHandler(svc, recorder)
	rh.SetDefaultMessage("We'll get back to you.")

	if err := rh.ProcessResponse(context.Background(), models.Response{From: "12345678900", Body: "hello"}); err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}

	if len(recorder.responses) != 1 || recorder.responses[0].Body != "hello" {
		t.Errorf("response not recorded: %v", recorder.responses)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "We'll get back to you." {
		t.Errorf("expected default message, got %v", mock.SentMessages)
	}
}

func TestProcessResponseUnhandledHookFallsThrough(t *testing.T) {
	svc, mock := newTestService()
	rh := NewResponseHandler(svc, nil)

	if err := rh.RegisterHook("12345678900", func(ctx context.Context, from, text string, ts int64) (bool, error) {
		return false, nil
	}); err != nil {
		t.Fatalf("RegisterHook failed: %v", err)
	}

	if err := rh.ProcessResponse(context.Background(), models.Response{From: "12345678900", Body: "hi"}); err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Errorf("expected default message after unhandled hook, got %d sends", len(mock.SentMessages))
	}
}

func TestWorkflowHookSubmitsReply(t *testing.T) {
	svc, _ := newTestService()
	submitter := &stubSubmitter{}
	hook := CreateWorkflowHook("conv-1", submitter, svc)

	handled, err := hook(context.Background(), "12345678900", "yes please", 1)
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	if !handled {
		t.Error("expected reply to be handled")
	}
	if len(submitter.replies) != 1 || submitter.replies[0] != "yes please" {
		t.Errorf("reply not submitted: %v", submitter.replies)
	}
}

func TestWorkflowHookBusySendsHoldingMessage(t *testing.T) {
	svc, mock := newTestService()
	submitter := &stubSubmitter{err: models.ErrConversationBusy}
	hook := CreateWorkflowHook("conv-1", submitter, svc)

	handled, err := hook(context.Background(), "12345678900", "hello?", 1)
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	if !handled {
		t.Error("busy replies must still count as handled")
	}
	if len(mock.SentMessages) != 1 || !strings.Contains(mock.SentMessages[0].Body, "One moment") {
		t.Errorf("expected holding message, got %v", mock.SentMessages)
	}
}

func TestWorkflowHookSuspendedSendsReviewNotice(t *testing.T) {
	svc, mock := newTestService()
	submitter := &stubSubmitter{err: models.ErrConversationSuspended}
	hook := CreateWorkflowHook("conv-1", submitter, svc)

	handled, err := hook(context.Background(), "12345678900", "any update?", 1)
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	if !handled {
		t.Error("suspended replies must still count as handled")
	}
	if len(mock.SentMessages) != 1 || !strings.Contains(mock.SentMessages[0].Body, "reviewing") {
		t.Errorf("expected review notice, got %v", mock.SentMessages)
	}
}

func TestWorkflowHookTerminalFallsThrough(t *testing.T) {
	svc, mock := newTestService()
	submitter := &stubSubmitter{err: models.ErrConversationTerminal}
	hook := CreateWorkflowHook("conv-1", submitter, svc)

	handled, err := hook(context.Background(), "12345678900", "thanks again!", 1)
	if err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	if handled {
		t.Error("terminal conversations must fall through to the default response")
	}
	if len(mock.SentMessages) != 0 {
		t.Errorf("hook itself must not send for terminal conversations, got %v", mock.SentMessages)
	}
}

func TestWorkflowHookWrapsOtherErrors(t *testing.T) {
	svc, _ := newTestService()
	boom := fmt.Errorf("store unavailable")
	submitter := &stubSubmitter{err: boom}
	hook := CreateWorkflowHook("conv-1", submitter, svc)

	_, err := hook(context.Background(), "12345678900", "hello", 1)
	if err == nil || !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
