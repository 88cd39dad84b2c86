// Package supervisor holds the decision loop at the heart of a turn: given
// which data tiers are already populated for the active entities, it picks
// exactly one next action per iteration until it decides to finalize.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	cachex "github.com/tanpawarit/bizlens/agent/cache"
	contractx "github.com/tanpawarit/bizlens/agent/contract"
	executorx "github.com/tanpawarit/bizlens/agent/executor"
	statex "github.com/tanpawarit/bizlens/agent/state"
)

type Config struct {
	MaxIterations          int `envconfig:"MAX_ITERATIONS" split_words:"true" default:"5"`
	MaxClarificationRounds int `envconfig:"MAX_CLARIFICATION_ROUNDS" split_words:"true" default:"2"`
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 5
	}
	if c.MaxClarificationRounds <= 0 {
		c.MaxClarificationRounds = 2
	}
	return c
}

// CacheView is the read-side of the entity cache the transition function
// consults before issuing a tool call.
type CacheView struct {
	AllDetailsCached   bool
	AllSentimentCached bool
}

// Decide is the transition function. It is evaluated fresh on every
// iteration from the current tool outputs and cache view, never by advancing
// a counter, so a skipped tool is indistinguishable from one that ran.
func Decide(st *statex.ConversationState, view CacheView) contractx.SupervisorDecision {
	if st.ToolOutputs.AnyTerminalFailure() {
		return contractx.SupervisorDecision{
			NextAction:          contractx.ActionFinalize,
			Reasoning:           "a tool failed terminally; finalizing with partial data",
			ShouldFinalizeEarly: true,
		}
	}

	if !st.SearchSucceeded() {
		return contractx.SupervisorDecision{
			NextAction: contractx.ActionSearch,
			Reasoning:  "no successful search result for the active query yet",
		}
	}

	switch st.DetailLevel {
	case contractx.DetailLevelDetailed:
		if !detailsSatisfied(st) {
			if view.AllDetailsCached {
				return contractx.SupervisorDecision{
					NextAction: contractx.ActionConsultCache,
					Reasoning:  "every known entity already has a cached detail tier",
				}
			}
			return contractx.SupervisorDecision{
				NextAction: contractx.ActionGetDetails,
				Reasoning:  "detail tier missing for at least one known entity",
			}
		}
	case contractx.DetailLevelReviews:
		if !sentimentSatisfied(st) {
			if view.AllSentimentCached {
				return contractx.SupervisorDecision{
					NextAction: contractx.ActionConsultCache,
					Reasoning:  "every known entity already has a cached sentiment tier",
				}
			}
			return contractx.SupervisorDecision{
				NextAction: contractx.ActionAnalyzeSentiment,
				Reasoning:  "sentiment tier missing for at least one known entity",
			}
		}
	}

	return contractx.SupervisorDecision{
		NextAction: contractx.ActionFinalize,
		Reasoning:  "all tiers required by the detail level are populated",
	}
}

func detailsSatisfied(st *statex.ConversationState) bool {
	out := st.ToolOutputs.Details
	if out == nil || !out.Success {
		return false
	}
	for _, id := range st.KnownEntityIDs {
		if _, ok := out.Items[id]; !ok {
			return false
		}
	}
	return true
}

func sentimentSatisfied(st *statex.ConversationState) bool {
	out := st.ToolOutputs.Sentiment
	if out == nil || !out.Success {
		return false
	}
	for _, id := range st.KnownEntityIDs {
		if _, ok := out.Items[id]; !ok {
			return false
		}
	}
	return true
}

// Runner drives the loop, invoking the executor or reading the cache until
// Decide says finalize or the iteration bound trips.
type Runner struct {
	exec  *executorx.Executor
	cache cachex.Store
	cfg   Config
}

func NewRunner(exec *executorx.Executor, cache cachex.Store, cfg Config) (*Runner, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if cache == nil {
		return nil, errors.New("entity cache is required")
	}
	return &Runner{exec: exec, cache: cache, cfg: cfg.withDefaults()}, nil
}

// Run executes supervisor iterations for one turn and returns the action
// trace. The final entry is always finalize; ShouldFinalizeEarly is set when
// the loop ended on a terminal tool failure or the iteration bound.
func (r *Runner) Run(ctx context.Context, st *statex.ConversationState) ([]contractx.SupervisorDecision, error) {
	if st == nil {
		return nil, statex.ErrNilState
	}

	var trace []contractx.SupervisorDecision
	for i := 0; i < r.cfg.MaxIterations; i++ {
		view, err := r.cacheView(ctx, st)
		if err != nil {
			return trace, err
		}

		dec := Decide(st, view)
		trace = append(trace, dec)
		log.Debug().
			Str("component", "supervisor").
			Str("next_action", string(dec.NextAction)).
			Str("reasoning", dec.Reasoning).
			Msg("supervisor decision")

		switch dec.NextAction {
		case contractx.ActionFinalize:
			return trace, nil
		case contractx.ActionSearch:
			err = r.exec.Execute(ctx, contractx.ToolSearch, contractx.ToolRequest{
				Query:    st.SearchQuery,
				Location: st.SearchLocation,
			}, st)
		case contractx.ActionGetDetails:
			err = r.exec.Execute(ctx, contractx.ToolDetails, r.entityRefsRequest(st), st)
		case contractx.ActionAnalyzeSentiment:
			err = r.exec.Execute(ctx, contractx.ToolSentiment, r.entityRefsRequest(st), st)
		case contractx.ActionConsultCache:
			err = r.satisfyFromCache(ctx, st)
		default:
			err = fmt.Errorf("unknown supervisor action %q", dec.NextAction)
		}
		if err != nil {
			return trace, err
		}
	}

	// backstop against decision-logic bugs looping forever
	forced := contractx.SupervisorDecision{
		NextAction:          contractx.ActionFinalize,
		Reasoning:           fmt.Sprintf("iteration bound of %d reached", r.cfg.MaxIterations),
		ShouldFinalizeEarly: true,
	}
	trace = append(trace, forced)
	log.Warn().
		Str("component", "supervisor").
		Int("max_iterations", r.cfg.MaxIterations).
		Msg("forcing finalize at iteration bound")
	return trace, nil
}

func (r *Runner) cacheView(ctx context.Context, st *statex.ConversationState) (CacheView, error) {
	var view CacheView
	if !st.SearchSucceeded() || len(st.KnownEntityIDs) == 0 {
		return view, nil
	}

	switch st.DetailLevel {
	case contractx.DetailLevelDetailed:
		ok, err := cachex.HasAll(ctx, r.cache, st.KnownEntityIDs, contractx.TierDetail)
		if err != nil {
			return view, fmt.Errorf("check detail tier cache: %w", err)
		}
		view.AllDetailsCached = ok
	case contractx.DetailLevelReviews:
		ok, err := cachex.HasAll(ctx, r.cache, st.KnownEntityIDs, contractx.TierSentiment)
		if err != nil {
			return view, fmt.Errorf("check sentiment tier cache: %w", err)
		}
		view.AllSentimentCached = ok
	}
	return view, nil
}

func (r *Runner) entityRefsRequest(st *statex.ConversationState) contractx.ToolRequest {
	var req contractx.ToolRequest
	if st.ToolOutputs.Search != nil {
		req.EntityRefs = st.ToolOutputs.Search.FullOutput
	}
	return req
}

// satisfyFromCache marks the required tier as satisfied from cached data so
// the next Decide iteration sees it as present without a tool call.
func (r *Runner) satisfyFromCache(ctx context.Context, st *statex.ConversationState) error {
	switch st.DetailLevel {
	case contractx.DetailLevelDetailed:
		items := make(map[string]contractx.DetailInfo, len(st.KnownEntityIDs))
		for _, id := range st.KnownEntityIDs {
			info, ok, err := r.cache.GetDetail(ctx, id)
			if err != nil {
				return fmt.Errorf("read detail tier from cache: %w", err)
			}
			if !ok {
				return fmt.Errorf("detail tier vanished from cache for entity %s", id)
			}
			items[id] = info
		}
		st.ToolOutputs.Details = &contractx.DetailsOutput{
			ToolStatus: contractx.ToolStatus{Success: true, FromCache: true},
			Items:      items,
		}
	case contractx.DetailLevelReviews:
		items := make(map[string]contractx.SentimentInfo, len(st.KnownEntityIDs))
		for _, id := range st.KnownEntityIDs {
			info, ok, err := r.cache.GetSentiment(ctx, id)
			if err != nil {
				return fmt.Errorf("read sentiment tier from cache: %w", err)
			}
			if !ok {
				return fmt.Errorf("sentiment tier vanished from cache for entity %s", id)
			}
			items[id] = info
		}
		st.ToolOutputs.Sentiment = &contractx.SentimentOutput{
			ToolStatus: contractx.ToolStatus{Success: true, FromCache: true},
			Items:      items,
		}
	}
	return nil
}
