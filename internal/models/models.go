// Package models defines the core data structures for the KOL outreach
// workflow engine.
//
// It includes the stage catalog, intent and routing enums, influencer
// records, and API payloads shared across modules.
package models

import (
	"errors"
	"time"
)

// Stage identifies one step in the fixed outreach sequence.
type Stage string

// Stage constants, in catalog order.
const (
	StageGreet          Stage = "greet"
	StageConfirmType    Stage = "confirm-type"
	StageBrief          Stage = "brief"
	StageSchedule       Stage = "schedule"
	StageProduct        Stage = "product"
	StageAddress        Stage = "address"
	StageReminder       Stage = "reminder"
	StageScriptReminder Stage = "script-reminder"
	StageFinal          Stage = "final"
)

// stageCatalog is the canonical stage order. Fixed at process start; no stage
// appears twice.
var stageCatalog = []Stage{
	StageGreet,
	StageConfirmType,
	StageBrief,
	StageSchedule,
	StageProduct,
	StageAddress,
	StageReminder,
	StageScriptReminder,
	StageFinal,
}

// StageCatalog returns a copy of the canonical stage order.
func StageCatalog() []Stage {
	out := make([]Stage, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

// Intent is the classified purpose of an inbound reply.
type Intent string

const (
	IntentAccept    Intent = "accept"
	IntentDecline   Intent = "decline"
	IntentQuestion  Intent = "question"
	IntentNegotiate Intent = "negotiate"
	IntentUnclear   Intent = "unclear"

	// IntentTimeout records an inactivity-forced escalation so it is
	// auditable the same way as reply-driven escalations.
	IntentTimeout Intent = "timeout"
	// IntentInternalError records an escalation caused by a registry or
	// state-consistency failure.
	IntentInternalError Intent = "internal_error"
)

// IsReplyIntent reports whether the intent is one the classifier may produce
// from an inbound reply (as opposed to the synthetic audit intents).
func IsReplyIntent(i Intent) bool {
	switch i {
	case IntentAccept, IntentDecline, IntentQuestion, IntentNegotiate, IntentUnclear:
		return true
	default:
		return false
	}
}

// Route is the decision of what the workflow does next after classification.
type Route string

const (
	RouteContinue   Route = "continue"
	RouteQuestion   Route = "question"
	RouteEscalation Route = "escalation"
)

// Phase tracks where a conversation sits in the driver's state machine.
type Phase string

const (
	PhaseDispatching      Phase = "dispatching"
	PhaseAwaitingPolish   Phase = "awaiting_polish"
	PhaseAwaitingReply    Phase = "awaiting_reply"
	PhaseClassifying      Phase = "classifying"
	PhaseRouting          Phase = "routing"
	PhaseAdvancing        Phase = "advancing"
	PhaseQuestionHandling Phase = "question_handling"
	PhaseEscalated        Phase = "escalated"
	PhaseTerminated       Phase = "terminated"
	PhaseCancelled        Phase = "cancelled"
)

// Dormant reports whether the conversation is parked waiting on an external
// event (an inbound reply or a human resolution).
func (p Phase) Dormant() bool {
	return p == PhaseAwaitingReply || p == PhaseEscalated
}

// Terminal reports whether the conversation can never be processed again.
func (p Phase) Terminal() bool {
	return p == PhaseTerminated || p == PhaseCancelled
}

// InFlight reports whether a stage-handler cycle is currently executing. A
// new dispatch or reply submission must not start while in flight.
func (p Phase) InFlight() bool {
	switch p {
	case PhaseDispatching, PhaseAwaitingPolish, PhaseClassifying, PhaseRouting,
		PhaseAdvancing, PhaseQuestionHandling:
		return true
	default:
		return false
	}
}

// FactKey names a collected fact. Each key is written at most once, by the
// stage that owns it.
type FactKey string

const (
	FactPlatformLinks      FactKey = "platform_links"
	FactCollaborationType  FactKey = "collaboration_type"
	FactPriceRange         FactKey = "price_range"
	FactProductType        FactKey = "product_type"
	FactBriefAcknowledged  FactKey = "brief_acknowledged"
	FactScheduleConfirmed  FactKey = "schedule_confirmed"
	FactProductChoice      FactKey = "product_choice"
	FactShippingAddress    FactKey = "shipping_address"
	FactReceiptConfirmed   FactKey = "receipt_confirmed"
	FactScriptAcknowledged FactKey = "script_acknowledged"
)

// FactTrue is the stored value for boolean confirmation facts.
const FactTrue = "true"

// ResumeAction is the instruction a human operator supplies when resolving an
// escalated conversation.
type ResumeAction string

const (
	// ResumeRetry clears the review flag and re-dispatches the current stage.
	ResumeRetry ResumeAction = "retry"
	// ResumeSkip clears the review flag and advances past the current stage.
	ResumeSkip ResumeAction = "skip"
	// ResumeCancel terminates the conversation.
	ResumeCancel ResumeAction = "cancel"
)

// IsValidResumeAction checks if the given resume action is supported.
func IsValidResumeAction(a ResumeAction) bool {
	switch a {
	case ResumeRetry, ResumeSkip, ResumeCancel:
		return true
	default:
		return false
	}
}

// Influencer holds the externally-owned KOL record. The conversation state
// keeps only a reference; this struct is what enrollment captures.
type Influencer struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Nickname    string    `json:"nickname,omitempty"`
	ProfileURL  string    `json:"profile_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Followers   int       `json:"followers,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MessageDirection marks which side of the conversation a logged message
// belongs to.
type MessageDirection string

const (
	DirectionOutbound MessageDirection = "outbound"
	DirectionInbound  MessageDirection = "inbound"
)

// MessageRecord is one entry in a conversation's append-only message log.
type MessageRecord struct {
	Direction MessageDirection `json:"direction"`
	Stage     Stage            `json:"stage"`
	Body      string           `json:"body"`
	Timestamp time.Time        `json:"timestamp"`
}

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Receipt records a delivery event for an outgoing message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from an influencer.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope returned by the HTTP API.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// StartConversationRequest is the payload for opening outreach to an
// influencer.
type StartConversationRequest struct {
	PhoneNumber string `json:"phone_number"`
	Nickname    string `json:"nickname,omitempty"`
	ProfileURL  string `json:"profile_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Followers   int    `json:"followers,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Platform    string `json:"platform,omitempty"`
}

// Validate checks the enrollment payload.
func (r *StartConversationRequest) Validate() error {
	if r.PhoneNumber == "" {
		return errors.New("phone_number is required")
	}
	if r.Followers < 0 {
		return errors.New("followers must not be negative")
	}
	return nil
}

// ReplyRequest is the payload for submitting an influencer reply.
type ReplyRequest struct {
	ReplyText string `json:"reply_text"`
}

// Validate checks the reply payload. An empty reply is accepted; the
// classifier degrades it to an unclear intent rather than rejecting it here.
func (r *ReplyRequest) Validate() error {
	return nil
}

// ResolveRequest is the payload a human operator submits to resolve an
// escalated conversation.
type ResolveRequest struct {
	Action ResumeAction `json:"action"`
	Note   string       `json:"note,omitempty"`
}

// Validate checks the resolution payload.
func (r *ResolveRequest) Validate() error {
	if !IsValidResumeAction(r.Action) {
		return errors.New("action must be one of: retry, skip, cancel")
	}
	return nil
}
