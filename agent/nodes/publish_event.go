package nodes

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

// TurnCompletedEvent is emitted after a search turn produces a report.
type TurnCompletedEvent struct {
	SessionID  string                         `json:"session_id"`
	Query      string                         `json:"query"`
	Location   string                         `json:"location,omitempty"`
	EntityIDs  []string                       `json:"entity_ids,omitempty"`
	Trace      []contractx.SupervisorDecision `json:"trace,omitempty"`
	FinishedAt time.Time                      `json:"finished_at"`
}

// PublishEvent notifies downstream consumers that a report was produced.
// Publishing is best effort and never fails the turn.
func PublishEvent(ctx context.Context, in *GraphState, publisher contractx.EventPublisher, destination string) (*GraphState, error) {
	if publisher == nil || destination == "" || in.Route != RouteSearch {
		return in, nil
	}

	event := TurnCompletedEvent{
		SessionID:  in.SessionID,
		Query:      in.Session.SearchQuery,
		Location:   in.Session.SearchLocation,
		EntityIDs:  in.Session.KnownEntityIDs,
		Trace:      in.Trace,
		FinishedAt: in.Now,
	}

	if err := publisher.Publish(ctx, destination, event); err != nil {
		log.Warn().Err(err).
			Str("session_id", in.SessionID).
			Msg("failed to publish turn event")
	}
	return in, nil
}
