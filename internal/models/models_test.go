package models

import (
	"testing"
)

func TestStageCatalogReturnsCopy(t *testing.T) {
	catalog := StageCatalog()
	if len(catalog) != 9 {
		t.Fatalf("expected 9 stages, got %d", len(catalog))
	}
	if catalog[0] != StageGreet || catalog[len(catalog)-1] != StageFinal {
		t.Errorf("unexpected catalog bounds: %s .. %s", catalog[0], catalog[len(catalog)-1])
	}

	catalog[0] = "tampered"
	if StageCatalog()[0] != StageGreet {
		t.Error("StageCatalog must return a copy")
	}

	seen := make(map[Stage]bool)
	for _, stage := range StageCatalog() {
		if seen[stage] {
			t.Errorf("stage %s appears twice", stage)
		}
		seen[stage] = true
	}
}

func TestPhasePredicates(t *testing.T) {
	tests := []struct {
		phase    Phase
		dormant  bool
		terminal bool
		inFlight bool
	}{
		{PhaseDispatching, false, false, true},
		{PhaseAwaitingPolish, false, false, true},
		{PhaseAwaitingReply, true, false, false},
		{PhaseClassifying, false, false, true},
		{PhaseRouting, false, false, true},
		{PhaseAdvancing, false, false, true},
		{PhaseQuestionHandling, false, false, true},
		{PhaseEscalated, true, false, false},
		{PhaseTerminated, false, true, false},
		{PhaseCancelled, false, true, false},
	}
	for _, tc := range tests {
		if got := tc.phase.Dormant(); got != tc.dormant {
			t.Errorf("%s.Dormant(): expected %v, got %v", tc.phase, tc.dormant, got)
		}
		if got := tc.phase.Terminal(); got != tc.terminal {
			t.Errorf("%s.Terminal(): expected %v, got %v", tc.phase, tc.terminal, got)
		}
		if got := tc.phase.InFlight(); got != tc.inFlight {
			t.Errorf("%s.InFlight(): expected %v, got %v", tc.phase, tc.inFlight, got)
		}
	}
}

func TestIsReplyIntent(t *testing.T) {
	for _, intent := range []Intent{IntentAccept, IntentDecline, IntentQuestion, IntentNegotiate, IntentUnclear} {
		if !IsReplyIntent(intent) {
			t.Errorf("%s should be a reply intent", intent)
		}
	}
	for _, intent := range []Intent{IntentTimeout, IntentInternalError, Intent("mystery")} {
		if IsReplyIntent(intent) {
			t.Errorf("%s should not be a reply intent", intent)
		}
	}
}

func TestNewConversationState(t *testing.T) {
	state := NewConversationState("conv-1", "inf-1", "1234567890")

	if state.CurrentStage != StageGreet || state.CurrentStageIndex != 0 {
		t.Errorf("fresh state must start at the first stage, got %s/%d", state.CurrentStage, state.CurrentStageIndex)
	}
	if state.Phase != PhaseDispatching {
		t.Errorf("expected dispatching phase, got %s", state.Phase)
	}
	if state.WorkflowComplete || state.NeedsHumanReview || state.StageCompleted {
		t.Error("fresh state must have all flags false")
	}
	if state.Facts == nil || len(state.Facts) != 0 {
		t.Errorf("fresh state must have an empty fact map, got %v", state.Facts)
	}
}

func TestConversationStateClone(t *testing.T) {
	state := NewConversationState("conv-1", "inf-1", "1234567890")
	state.Facts[FactPlatformLinks] = "https://example.com/me"
	state.AppendMessage(DirectionOutbound, "hello")
	state.Decoded = &DecodedReply{
		RawText:  "yes",
		Stage:    StageGreet,
		Entities: map[string]string{"platform_links": "https://example.com/me"},
	}

	clone := state.Clone()
	clone.Facts[FactProductChoice] = "mug"
	clone.MessageLog[0].Body = "tampered"
	clone.Decoded.Entities["platform_links"] = "tampered"

	if _, ok := state.Facts[FactProductChoice]; ok {
		t.Error("clone shares the fact map")
	}
	if state.MessageLog[0].Body != "hello" {
		t.Error("clone shares the message log backing array")
	}
	if state.Decoded.Entities["platform_links"] != "https://example.com/me" {
		t.Error("clone shares the decoded entity map")
	}
}

func TestDecodedReplyEntity(t *testing.T) {
	var nilReply *DecodedReply
	if nilReply.Entity("anything") != "" {
		t.Error("nil reply must yield empty entity")
	}

	reply := &DecodedReply{Entities: map[string]string{"collaboration_type": "solo"}}
	if reply.Entity("collaboration_type") != "solo" {
		t.Error("expected stored entity")
	}
	if reply.Entity("missing") != "" {
		t.Error("missing entity must yield empty string")
	}
}

func TestRequestValidation(t *testing.T) {
	start := StartConversationRequest{}
	if err := start.Validate(); err == nil {
		t.Error("expected error for missing phone number")
	}
	start.PhoneNumber = "1234567890"
	start.Followers = -1
	if err := start.Validate(); err == nil {
		t.Error("expected error for negative followers")
	}
	start.Followers = 1000
	if err := start.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}

	resolve := ResolveRequest{Action: "restart"}
	if err := resolve.Validate(); err == nil {
		t.Error("expected error for unsupported action")
	}
	for _, action := range []ResumeAction{ResumeRetry, ResumeSkip, ResumeCancel} {
		resolve.Action = action
		if err := resolve.Validate(); err != nil {
			t.Errorf("expected %s to validate, got %v", action, err)
		}
	}

	reply := ReplyRequest{}
	if err := reply.Validate(); err != nil {
		t.Errorf("empty reply must validate (classifier handles it), got %v", err)
	}
}

func TestAPIResponseEnvelopes(t *testing.T) {
	ok := Success(map[string]int{"n": 1})
	if ok.Status != string(APIStatusOK) || ok.Result == nil {
		t.Errorf("unexpected success envelope: %+v", ok)
	}
	withMsg := SuccessWithMessage("created", nil)
	if withMsg.Message != "created" {
		t.Errorf("unexpected message: %+v", withMsg)
	}
	errResp := Error("boom")
	if errResp.Status != string(APIStatusError) || errResp.Message != "boom" {
		t.Errorf("unexpected error envelope: %+v", errResp)
	}
}
