package state

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ConversationState is the per-session source of truth for the orchestration
// loop. The message log grows monotonically for the life of the session; the
// search context (query, location, detail level, tool outputs, known entity
// ids) is replaced wholesale when the classifier detects a genuinely new
// search. The per-tool failure counters deliberately survive a search reset:
// a tripped circuit breaker stays tripped for the rest of the session.
type ConversationState struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages,omitempty"`

	SearchQuery    string                `json:"search_query,omitempty"`
	SearchLocation string                `json:"search_location,omitempty"`
	DetailLevel    contractx.DetailLevel `json:"detail_level,omitempty"`

	ToolOutputs    contractx.ToolOutputs `json:"tool_outputs"`
	KnownEntityIDs []string              `json:"known_entity_ids,omitempty"`

	RetryCounts         map[contractx.ToolName]int `json:"retry_counts,omitempty"`
	ConsecutiveFailures map[contractx.ToolName]int `json:"consecutive_failures,omitempty"`

	ClarificationRounds int    `json:"clarification_rounds,omitempty"`
	FinalSummary        string `json:"final_summary,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNilState         = errors.New("conversation state is nil")
	ErrInvalidSessionID = errors.New("session id is empty")
)

func NewConversationState(sessionID string, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID:           sessionID,
		DetailLevel:         contractx.DetailLevelGeneral,
		RetryCounts:         make(map[contractx.ToolName]int, 3),
		ConsecutiveFailures: make(map[contractx.ToolName]int, 3),
		UpdatedAt:           now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// EnsureCounters makes sure the counter maps are initialized, e.g. after a
// JSON round-trip through the session store.
func (s *ConversationState) EnsureCounters() {
	if s.RetryCounts == nil {
		s.RetryCounts = make(map[contractx.ToolName]int, 3)
	}
	if s.ConsecutiveFailures == nil {
		s.ConsecutiveFailures = make(map[contractx.ToolName]int, 3)
	}
}

func (s *ConversationState) AppendMessage(role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{
		Role:    role,
		Content: content,
		At:      now.UTC(),
	})
	s.Touch(now)
}

// History renders the message log in the shape the classifier consumes.
func (s *ConversationState) History() []contractx.HistoryMessage {
	if len(s.Messages) == 0 {
		return nil
	}
	out := make([]contractx.HistoryMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, contractx.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// ResetSearch installs a new search context, dropping all tool outputs and
// discovered entities. Failure counters are preserved on purpose.
func (s *ConversationState) ResetSearch(query, location string, level contractx.DetailLevel, now time.Time) {
	s.SearchQuery = query
	s.SearchLocation = location
	s.DetailLevel = level
	s.ToolOutputs = contractx.ToolOutputs{}
	s.KnownEntityIDs = nil
	s.FinalSummary = ""
	s.ClarificationRounds = 0
	s.Touch(now)
}

// FollowUp keeps the active search context and only moves the detail level.
func (s *ConversationState) FollowUp(level contractx.DetailLevel, now time.Time) {
	s.DetailLevel = level
	s.FinalSummary = ""
	s.ClarificationRounds = 0
	s.Touch(now)
}

// IsNewSearch reports whether the classifier's decision targets a different
// subject than the active search context.
func (s *ConversationState) IsNewSearch(query, location string) bool {
	if s.SearchQuery == "" {
		return true
	}
	return query != s.SearchQuery || location != s.SearchLocation
}

// SearchSucceeded reports whether the active search context has a successful
// search result; details and sentiment must never run before it does.
func (s *ConversationState) SearchSucceeded() bool {
	return s.ToolOutputs.Search != nil && s.ToolOutputs.Search.Success
}

// KnownEntities returns the short form of the discovered entities for
// prompting and cache addressing.
func (s *ConversationState) KnownEntities() []contractx.KnownEntity {
	if s.ToolOutputs.Search == nil {
		return nil
	}
	ents := s.ToolOutputs.Search.Entities
	if len(ents) == 0 {
		return nil
	}
	out := make([]contractx.KnownEntity, 0, len(ents))
	for _, e := range ents {
		out = append(out, contractx.KnownEntity{ID: e.ID, Name: e.Name})
	}
	return out
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilState
	}
	if s.SessionID == "" {
		return ErrInvalidSessionID
	}
	if (s.ToolOutputs.Details != nil || s.ToolOutputs.Sentiment != nil) && !s.SearchSucceeded() {
		return fmt.Errorf("%w: details/sentiment recorded before a successful search", errInvariant)
	}
	return nil
}

var errInvariant = errors.New("state invariant violated")
