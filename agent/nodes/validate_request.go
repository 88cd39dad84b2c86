package nodes

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
	statex "github.com/tanpawarit/bizlens/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Reply   string
	Blocked bool
}

// Route is where a turn goes after classification.
type Route string

const (
	RouteBlocked Route = "blocked"
	RouteChat    Route = "chat"
	RouteClarify Route = "clarify"
	RouteSearch  Route = "search"
	RouteFault   Route = "fault"
)

type GraphState struct {
	SessionID string
	RawText   string
	Text      string
	Now       time.Time

	Route    Route
	Warning  string
	Session  *statex.ConversationState
	Decision contractx.ClarificationDecision
	Trace    []contractx.SupervisorDecision

	Reply string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		RawText:   text,
		Now:       nowFn().UTC(),
	}, nil
}
