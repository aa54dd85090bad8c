package autocompact

import (
	"encoding/json"
	"time"
)

// Message roles reported by the chat host.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrorTypeTokenLimit tags errors caused by an oversized conversation.
const ErrorTypeTokenLimit = "token_limit_exceeded"

// RetryState tracks compaction attempts for one session.
type RetryState struct {
	// Attempt counts compaction attempts made so far.
	Attempt int `json:"attempt"`

	// LastAttemptTime is when the most recent attempt started.
	LastAttemptTime time.Time `json:"last_attempt_time"`
}

// ParsedTokenLimitError describes the failure that triggered compaction.
type ParsedTokenLimitError struct {
	CurrentTokens int    `json:"current_tokens"`
	MaxTokens     int    `json:"max_tokens"`
	RequestID     string `json:"request_id,omitempty"`
	ErrorType     string `json:"error_type"`
	ProviderID    string `json:"provider_id,omitempty"`
	ModelID       string `json:"model_id,omitempty"`
}

// MessageInfo is the metadata of one message in a session's history.
type MessageInfo struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"sessionID"`
	Role       string          `json:"role"`
	ProviderID string          `json:"providerID,omitempty"`
	ModelID    string          `json:"modelID,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

// Message is one entry of a session's history as returned by the host.
type Message struct {
	Info  MessageInfo       `json:"info"`
	Parts []json.RawMessage `json:"parts,omitempty"`
}

// AssistantTurnInfo is the metadata of an assistant reply.
type AssistantTurnInfo = MessageInfo

// TriggerMessage carries the model identifiers in effect when a request
// failed. Either field may be empty when unknown.
type TriggerMessage struct {
	ProviderID string `json:"providerID,omitempty"`
	ModelID    string `json:"modelID,omitempty"`
}

// Event is the envelope of a chat host event.
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// Host event types consumed by the Hook.
const (
	EventSessionError   = "session.error"
	EventSessionIdle    = "session.idle"
	EventSessionDeleted = "session.deleted"
	EventMessageUpdated = "message.updated"
)
