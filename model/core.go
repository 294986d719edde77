// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package model

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallState represents where a call currently sits in the turn state machine
type CallState string

const (
	StateInit             CallState = "INIT"
	StateGreeting         CallState = "GREETING"
	StateListening        CallState = "LISTENING"
	StateProcessingIntent CallState = "PROCESSING_INTENT"
	StateResponding       CallState = "RESPONDING"
	StateEscalating       CallState = "ESCALATING"
	StateTerminated       CallState = "TERMINATED"
	StateFailed           CallState = "FAILED"
)

// Known reports whether s is one of the machine's states. Payloads from
// the cache are validated with this before any state logic runs on them.
func (s CallState) Known() bool {
	switch s {
	case StateInit, StateGreeting, StateListening, StateProcessingIntent,
		StateResponding, StateEscalating, StateTerminated, StateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether a state ends the call from the engine's
// point of view. ESCALATING is terminal here: once a call is handed to a
// human the machine never sees another turn for it.
func (s CallState) IsTerminal() bool {
	switch s {
	case StateEscalating, StateTerminated, StateFailed:
		return true
	case StateInit, StateGreeting, StateListening, StateProcessingIntent, StateResponding:
		return false
	default:
		panic(fmt.Sprintf("unknown call state: %s", s))
	}
}

// Intent is one value of the fixed classification vocabulary
type Intent string

const (
	IntentGreetings      Intent = "GREETINGS"
	IntentEnquiry        Intent = "ENQUIRY"
	IntentRequest        Intent = "REQUEST"
	IntentGoodbye        Intent = "GOODBYE"
	IntentHandover       Intent = "HANDOVER"
	IntentCallEscalation Intent = "CALL_ESCALATION"

	// IntentUnknown is never part of the classifier vocabulary; it is the
	// engine's stand-in for empty or unclassifiable input.
	IntentUnknown Intent = ""
)

// Vocabulary returns the full set of classifiable intents
func Vocabulary() []Intent {
	return []Intent{
		IntentGreetings,
		IntentEnquiry,
		IntentRequest,
		IntentGoodbye,
		IntentHandover,
		IntentCallEscalation,
	}
}

// IsEscalating reports whether an intent forces a handover regardless of
// any other branch the machine would take.
func (i Intent) IsEscalating() bool {
	return i == IntentHandover || i == IntentCallEscalation
}

// AgentType selects which assistant configuration answers a number
type AgentType string

const (
	AgentAntiTheft       AgentType = "ANTI_THEFT"
	AgentCustomerSupport AgentType = "AUTOMATED_CUSTOMER_SUPPORT"
	AgentChatbot         AgentType = "CHATBOT"
)

// Speaker identifies which side of the conversation produced a turn
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

// Turn is one utterance in the conversation history
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Region is caller geography reported by the telephony provider at call start
type Region struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// MaxTurnHistory bounds the per-call conversation window
const MaxTurnHistory = 20

// CallSession is the authoritative state of one in-progress phone call.
// It lives in the expiring cache between webhook deliveries; nothing else
// holds a reference to it across turns.
type CallSession struct {
	CallRefID    string    `json:"call_ref_id"`
	CallerNumber string    `json:"caller_number"`
	CalledNumber string    `json:"called_number"`
	Region       Region    `json:"region"`
	AgentID      string    `json:"agent_id"`
	AgentType    AgentType `json:"agent_type"`
	TurnHistory  []Turn    `json:"turn_history"`
	Intent       Intent    `json:"current_intent,omitempty"`
	State        CallState `json:"state"`

	// ConfusedTurns counts consecutive turns whose intent could not be
	// resolved; it resets to zero on any successful classification.
	ConfusedTurns int `json:"confused_turns"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AppendTurn appends to the conversation history, keeping only the most
// recent MaxTurnHistory entries.
func (s *CallSession) AppendTurn(speaker Speaker, text string) {
	s.TurnHistory = append(s.TurnHistory, Turn{Speaker: speaker, Text: text})
	if len(s.TurnHistory) > MaxTurnHistory {
		s.TurnHistory = s.TurnHistory[len(s.TurnHistory)-MaxTurnHistory:]
	}
}

// Marshal serializes the session for cache storage
func (s *CallSession) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSession deserializes a cached session payload
func UnmarshalSession(data []byte) (*CallSession, error) {
	var s CallSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session payload: %w", err)
	}
	if s.CallRefID == "" {
		return nil, fmt.Errorf("session payload missing call reference id")
	}
	if !s.State.Known() {
		return nil, fmt.Errorf("session payload has unknown state %q", s.State)
	}
	return &s, nil
}

// PromptKey names one entry in the fixed outbound phrase set
type PromptKey string

const (
	PromptNone            PromptKey = ""
	PromptGreeting        PromptKey = "greeting"
	PromptGreetingReply   PromptKey = "greeting-reply"
	PromptEnquiryAck      PromptKey = "enquiry-ack"
	PromptRequestAck      PromptKey = "request-ack"
	PromptClarify         PromptKey = "clarify"
	PromptHold            PromptKey = "hold"
	PromptApology         PromptKey = "apology"
	PromptEscalating      PromptKey = "escalating"
	PromptGoodbye         PromptKey = "goodbye"
	PromptPhoneNotFound   PromptKey = "phone-not-found"
	PromptAgentNotLinked  PromptKey = "agent-not-linked"
	PromptNoKnowledgeBase PromptKey = "knowledge-base-missing"
	PromptAgentInactive   PromptKey = "agent-inactive"
)

// JobType identifies a background job payload
type JobType string

const (
	JobSendSMS         JobType = "send-sms"
	JobSendMail        JobType = "send-mail"
	JobProvisionNumber JobType = "provision-phone-number"
)

// BackgroundJob is a typed, fire-and-forget unit of delayed work
type BackgroundJob struct {
	ID           string          `json:"id"`
	Type         JobType         `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	DelaySeconds int             `json:"delay_seconds,omitempty"`

	// Retry bookkeeping, owned by whichever retry helper runs the job
	Attempts   int    `json:"attempts,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// NewJobID generates a unique background job identifier
func NewJobID() string {
	return uuid.NewString()
}

// NewCallRefID generates a call reference id for locally originated calls;
// provider-delivered webhooks carry their own. CRFAKE prefix, 34 chars.
func NewCallRefID() string {
	b := make([]byte, 14)
	rand.Read(b)
	return "CRFAKE" + hex.EncodeToString(b)
}
