package model

import "time"

// ConversationState is the per-sender handoff state
type ConversationState string

const (
	StateNone               ConversationState = "NONE"
	StateAwaitingPropertyID ConversationState = "AWAITING_PROPERTY_ID"
)

// Speaker roles in a chat history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one utterance in a session's history
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Route tells which branch of the pipeline produced a reply
type Route string

const (
	RouteAnswer        Route = "answer"
	RouteHandoffPrompt Route = "handoff_prompt"
	RouteHandoffCancel Route = "handoff_cancel"
	RouteHandoffDone   Route = "handoff_done"
	RouteHandoffMiss   Route = "handoff_not_found"
	RouteHandoffBadID  Route = "handoff_invalid_id"
	RouteFailure       Route = "failure"
)

// Reply is the outcome of handling one inbound message
type Reply struct {
	TurnID        string            `json:"turn_id"`
	Body          string            `json:"body"`
	Route         Route             `json:"route"`
	Intent        Intent            `json:"intent,omitempty"`
	State         ConversationState `json:"state"`
	ListingIDs    []int64           `json:"listing_ids,omitempty"`
	AgentNotified bool              `json:"agent_notified"`
}

// HandoffEvent is published when a customer is connected to an agent
type HandoffEvent struct {
	EventID      string    `json:"event_id" db:"event_id"`
	Sender       string    `json:"sender" db:"sender"`
	PropertyID   int64     `json:"property_id" db:"property_id"`
	AgentPhone   string    `json:"agent_phone" db:"agent_phone"`
	Location     string    `json:"location" db:"location"`
	Neighborhood string    `json:"neighborhood" db:"neighborhood"`
	Notified     bool      `json:"notified" db:"notified"`
	OccurredAt   time.Time `json:"occurred_at" db:"occurred_at"`
}

// TurnRecord is the audit row written for every handled message
type TurnRecord struct {
	TurnID      string        `json:"turn_id" db:"turn_id"`
	Sender      string        `json:"sender" db:"sender"`
	Route       Route         `json:"route" db:"route"`
	Intent      Intent        `json:"intent" db:"intent"`
	ListingIDs  []int64       `json:"listing_ids" db:"listing_ids"`
	ReplyLength int           `json:"reply_length" db:"reply_length"`
	Latency     time.Duration `json:"latency" db:"-"`
}
