package contract

import "encoding/json"

type ToolName string

const (
	ToolSearch    ToolName = "search"
	ToolDetails   ToolName = "get_details"
	ToolSentiment ToolName = "analyze_sentiment"
)

type DetailLevel string

const (
	DetailLevelGeneral  DetailLevel = "general"
	DetailLevelDetailed DetailLevel = "detailed"
	DetailLevelReviews  DetailLevel = "reviews"
)

// ParseDetailLevel maps free-form model output onto a known level,
// falling back to general.
func ParseDetailLevel(s string) DetailLevel {
	switch DetailLevel(s) {
	case DetailLevelDetailed:
		return DetailLevelDetailed
	case DetailLevelReviews:
		return DetailLevelReviews
	default:
		return DetailLevelGeneral
	}
}

type Tier string

const (
	TierBasic     Tier = "basic"
	TierDetail    Tier = "detail"
	TierSentiment Tier = "sentiment"
)

// TierForLevel returns the data tier a detail level requires beyond basic,
// or empty for general.
func TierForLevel(level DetailLevel) Tier {
	switch level {
	case DetailLevelDetailed:
		return TierDetail
	case DetailLevelReviews:
		return TierSentiment
	default:
		return ""
	}
}

/* ------------------------------ tier payloads ---------------------------- */

type BasicInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Categories  []string `json:"categories,omitempty"`
	PriceRange  string   `json:"price_range,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Location    string   `json:"location,omitempty"`
	Website     string   `json:"website,omitempty"`
}

type DetailInfo struct {
	WebsiteContent string `json:"website_content,omitempty"`
	HasContent     bool   `json:"has_content"`
	ContentLength  int    `json:"content_length"`
}

type SentimentInfo struct {
	TotalReviews int      `json:"total_reviews"`
	Positive     int      `json:"positive"`
	Neutral      int      `json:"neutral"`
	Negative     int      `json:"negative"`
	OverallLabel string   `json:"overall_label"`
	Exemplars    []string `json:"exemplars,omitempty"`
}

/* ------------------------------ tool contract ---------------------------- */

// ToolRequest is the input to one external tool invocation. Search uses
// Query/Location; the other tools address entities through EntityRefs, the
// opaque blob produced by the previous search.
type ToolRequest struct {
	Query      string          `json:"query,omitempty"`
	Location   string          `json:"location,omitempty"`
	EntityRefs json.RawMessage `json:"entity_refs,omitempty"`
}

type ToolResponse struct {
	Success     bool                     `json:"success"`
	Entities    []BasicInfo              `json:"entities,omitempty"`
	Details     map[string]DetailInfo    `json:"details,omitempty"`
	Sentiments  map[string]SentimentInfo `json:"sentiments,omitempty"`
	FullOutput  json.RawMessage          `json:"full_output,omitempty"`
	Error       string                   `json:"error,omitempty"`
	RateLimited bool                     `json:"rate_limited,omitempty"`
}

/* ------------------------------ tool outputs ----------------------------- */

type FailureClass string

const (
	FailureRateLimited FailureClass = "rate_limited"
	FailureTimeout     FailureClass = "timeout"
	FailureConnection  FailureClass = "connection"
	FailureAuth        FailureClass = "auth"
	FailureOther       FailureClass = "other"
)

// Transient reports whether the class is worth retrying locally.
func (c FailureClass) Transient() bool {
	return c == FailureTimeout || c == FailureConnection
}

// ToolStatus is the shared bookkeeping embedded in every per-tool output.
// Terminal marks failures the executor will not retry for the rest of the
// session (rate limit, auth, tripped circuit breaker).
type ToolStatus struct {
	Success      bool         `json:"success"`
	FromCache    bool         `json:"from_cache,omitempty"`
	Attempts     int          `json:"attempts,omitempty"`
	Error        string       `json:"error,omitempty"`
	FailureClass FailureClass `json:"failure_class,omitempty"`
	Terminal     bool         `json:"terminal,omitempty"`
}

func (s *ToolStatus) Succeeded() bool {
	return s != nil && s.Success
}

func (s *ToolStatus) TerminalFailure() bool {
	return s != nil && !s.Success && s.Terminal
}

type SearchOutput struct {
	ToolStatus
	Entities   []BasicInfo     `json:"entities,omitempty"`
	FullOutput json.RawMessage `json:"full_output,omitempty"`
}

type DetailsOutput struct {
	ToolStatus
	Items map[string]DetailInfo `json:"items,omitempty"`
}

type SentimentOutput struct {
	ToolStatus
	Items map[string]SentimentInfo `json:"items,omitempty"`
}

// ToolOutputs is the typed record of each tool's last result for the active
// search. A nil field means the tool has not run (and was not satisfied from
// cache) yet.
type ToolOutputs struct {
	Search    *SearchOutput    `json:"search,omitempty"`
	Details   *DetailsOutput   `json:"details,omitempty"`
	Sentiment *SentimentOutput `json:"sentiment,omitempty"`
}

// AnyTerminalFailure reports whether any tool recorded a failure the
// supervisor must not retry.
func (o ToolOutputs) AnyTerminalFailure() bool {
	if o.Search != nil && o.Search.TerminalFailure() {
		return true
	}
	if o.Details != nil && o.Details.TerminalFailure() {
		return true
	}
	if o.Sentiment != nil && o.Sentiment.TerminalFailure() {
		return true
	}
	return false
}

/* -------------------------------- decisions ------------------------------ */

type Intent string

const (
	IntentGeneralChat    Intent = "general_chat"
	IntentBusinessSearch Intent = "business_search"
)

type ClarificationDecision struct {
	NeedClarification bool        `json:"need_clarification"`
	Question          string      `json:"question,omitempty"`
	Intent            Intent      `json:"intent"`
	Query             string      `json:"query,omitempty"`
	Location          string      `json:"location,omitempty"`
	DetailLevel       DetailLevel `json:"detail_level,omitempty"`
}

type NextAction string

const (
	ActionSearch           NextAction = "search"
	ActionGetDetails       NextAction = "get_details"
	ActionAnalyzeSentiment NextAction = "analyze_sentiment"
	ActionConsultCache     NextAction = "consult_cache"
	ActionFinalize         NextAction = "finalize"
)

type SupervisorDecision struct {
	NextAction          NextAction `json:"next_action"`
	Reasoning           string     `json:"reasoning"`
	ShouldFinalizeEarly bool       `json:"should_finalize_early,omitempty"`
}

/* --------------------------- classifier request -------------------------- */

// KnownEntity is the short form the classifier sees for entities already
// discovered in the session.
type KnownEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ClassifyRequest struct {
	History         []HistoryMessage `json:"history"`
	CurrentQuery    string           `json:"current_query,omitempty"`
	CurrentLocation string           `json:"current_location,omitempty"`
	KnownEntities   []KnownEntity    `json:"known_entities,omitempty"`
}
