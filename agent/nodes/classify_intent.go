package nodes

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

// ClassifyIntent asks the decision engine what the user wants this turn.
// A classifier fault does not abort the turn: the supervisor can still
// finalize with whatever the session already holds.
func ClassifyIntent(ctx context.Context, in *GraphState, classifier contractx.Classifier) (*GraphState, error) {
	if in.Route == RouteBlocked {
		return in, nil
	}

	req := contractx.ClassifyRequest{
		History:         in.Session.History(),
		CurrentQuery:    in.Text,
		CurrentLocation: in.Session.SearchLocation,
		KnownEntities:   in.Session.KnownEntities(),
	}

	decision, err := classifier.Classify(ctx, req)
	if err != nil {
		log.Error().Err(err).
			Str("session_id", in.SessionID).
			Msg("intent classification failed, degrading to best-effort reply")

		in.Route = RouteFault
		return in, nil
	}

	in.Decision = decision
	return in, nil
}
