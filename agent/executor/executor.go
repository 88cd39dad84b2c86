// Package executor wraps every external tool call with one shared failure
// policy: bounded retries with exponential backoff for transient errors, an
// immediate surface for rate-limit and auth failures, and a per-tool circuit
// breaker on consecutive failures. Successful results are written to the
// entity cache before the supervisor's next read.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	cachex "github.com/tanpawarit/bizlens/agent/cache"
	contractx "github.com/tanpawarit/bizlens/agent/contract"
	statex "github.com/tanpawarit/bizlens/agent/state"
)

type Config struct {
	MaxAttempts      int           `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	BackoffBase      time.Duration `envconfig:"BACKOFF_BASE" split_words:"true" default:"1s"`
	BackoffFactor    float64       `envconfig:"BACKOFF_FACTOR" split_words:"true" default:"2"`
	BackoffCap       time.Duration `envconfig:"BACKOFF_CAP" split_words:"true" default:"10s"`
	BreakerThreshold int           `envconfig:"BREAKER_THRESHOLD" split_words:"true" default:"3"`
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 2
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 10 * time.Second
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 3
	}
	return c
}

type Executor struct {
	tools contractx.Toolset
	cache cachex.Store
	cfg   Config

	sleep func(ctx context.Context, d time.Duration) error
}

func New(tools contractx.Toolset, cache cachex.Store, cfg Config) (*Executor, error) {
	if tools == nil {
		return nil, errors.New("toolset is required")
	}
	if cache == nil {
		return nil, errors.New("entity cache is required")
	}
	return &Executor{
		tools: tools,
		cache: cache,
		cfg:   cfg.withDefaults(),
		sleep: sleepContext,
	}, nil
}

// Execute runs one tool invocation against the conversation state, applying
// the retry and circuit-breaker policy, and records the typed outcome in
// st.ToolOutputs. It only returns an error for programming mistakes (unknown
// tool); tool failures are data, not errors.
func (e *Executor) Execute(ctx context.Context, name contractx.ToolName, req contractx.ToolRequest, st *statex.ConversationState) error {
	if st == nil {
		return statex.ErrNilState
	}
	st.EnsureCounters()

	tool, err := e.toolFor(name)
	if err != nil {
		return err
	}

	if st.ConsecutiveFailures[name] >= e.cfg.BreakerThreshold {
		e.record(st, name, failedResult(
			fmt.Sprintf("%v: %s failed %d times in a row", contractx.ErrCircuitOpen, name, st.ConsecutiveFailures[name]),
			contractx.FailureOther, 0, true,
		))
		return nil
	}

	resp, status := e.invokeWithRetry(ctx, tool, req)
	if !status.Success {
		// Retries are the attempts beyond the first invocation.
		st.RetryCounts[name] += status.Attempts - 1
		st.ConsecutiveFailures[name]++
		if st.ConsecutiveFailures[name] >= e.cfg.BreakerThreshold {
			status.Terminal = true
		}
		e.record(st, name, toolResult{status: status})
		log.Warn().
			Str("component", "executor").
			Str("tool", string(name)).
			Str("failure_class", string(status.FailureClass)).
			Int("consecutive_failures", st.ConsecutiveFailures[name]).
			Msg("tool invocation failed")
		return nil
	}

	st.ConsecutiveFailures[name] = 0
	e.persistToCache(ctx, name, resp)
	e.record(st, name, toolResult{status: status, resp: resp})
	return nil
}

func (e *Executor) toolFor(name contractx.ToolName) (contractx.Tool, error) {
	switch name {
	case contractx.ToolSearch:
		return e.tools.Search(), nil
	case contractx.ToolDetails:
		return e.tools.Details(), nil
	case contractx.ToolSentiment:
		return e.tools.Sentiment(), nil
	default:
		return nil, fmt.Errorf("%w: unknown tool %q", contractx.ErrToolUnavailable, name)
	}
}

func (e *Executor) invokeWithRetry(ctx context.Context, tool contractx.Tool, req contractx.ToolRequest) (contractx.ToolResponse, contractx.ToolStatus) {
	var lastErr string
	var lastClass contractx.FailureClass

	backoff := e.cfg.BackoffBase
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		resp, err := tool.Invoke(ctx, req)
		if err == nil && resp.Success {
			return resp, contractx.ToolStatus{Success: true, Attempts: attempt}
		}

		lastErr, lastClass = classifyFailure(resp, err)
		if !lastClass.Transient() {
			terminal := lastClass == contractx.FailureRateLimited || lastClass == contractx.FailureAuth
			return contractx.ToolResponse{}, contractx.ToolStatus{
				Attempts:     attempt,
				Error:        lastErr,
				FailureClass: lastClass,
				Terminal:     terminal,
			}
		}

		if attempt < e.cfg.MaxAttempts {
			if err := e.sleep(ctx, backoff); err != nil {
				// turn aborted mid-backoff
				break
			}
			backoff = time.Duration(float64(backoff) * e.cfg.BackoffFactor)
			if backoff > e.cfg.BackoffCap {
				backoff = e.cfg.BackoffCap
			}
		}
	}

	return contractx.ToolResponse{}, contractx.ToolStatus{
		Attempts:     e.cfg.MaxAttempts,
		Error:        lastErr,
		FailureClass: lastClass,
	}
}

func (e *Executor) persistToCache(ctx context.Context, name contractx.ToolName, resp contractx.ToolResponse) {
	switch name {
	case contractx.ToolSearch:
		for _, ent := range resp.Entities {
			if err := e.cache.PutBasic(ctx, ent); err != nil {
				log.Error().Err(err).Str("component", "executor").Str("entity", ent.ID).Msg("cache basic tier")
			}
		}
	case contractx.ToolDetails:
		for id, info := range resp.Details {
			if err := e.cache.PutDetail(ctx, id, info); err != nil {
				log.Error().Err(err).Str("component", "executor").Str("entity", id).Msg("cache detail tier")
			}
		}
	case contractx.ToolSentiment:
		for id, info := range resp.Sentiments {
			if err := e.cache.PutSentiment(ctx, id, info); err != nil {
				log.Error().Err(err).Str("component", "executor").Str("entity", id).Msg("cache sentiment tier")
			}
		}
	}
}

type toolResult struct {
	status contractx.ToolStatus
	resp   contractx.ToolResponse
}

func failedResult(msg string, class contractx.FailureClass, attempts int, terminal bool) toolResult {
	return toolResult{status: contractx.ToolStatus{
		Attempts:     attempts,
		Error:        msg,
		FailureClass: class,
		Terminal:     terminal,
	}}
}

func (e *Executor) record(st *statex.ConversationState, name contractx.ToolName, res toolResult) {
	switch name {
	case contractx.ToolSearch:
		out := &contractx.SearchOutput{ToolStatus: res.status}
		if res.status.Success {
			out.Entities = res.resp.Entities
			out.FullOutput = res.resp.FullOutput
			ids := make([]string, 0, len(res.resp.Entities))
			for _, ent := range res.resp.Entities {
				ids = append(ids, ent.ID)
			}
			st.KnownEntityIDs = ids
		}
		st.ToolOutputs.Search = out
	case contractx.ToolDetails:
		out := &contractx.DetailsOutput{ToolStatus: res.status}
		if res.status.Success {
			out.Items = res.resp.Details
		}
		st.ToolOutputs.Details = out
	case contractx.ToolSentiment:
		out := &contractx.SentimentOutput{ToolStatus: res.status}
		if res.status.Success {
			out.Items = res.resp.Sentiments
		}
		st.ToolOutputs.Sentiment = out
	}
}

func classifyFailure(resp contractx.ToolResponse, err error) (string, contractx.FailureClass) {
	msg := resp.Error
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "tool reported failure without a message"
	}
	lower := strings.ToLower(msg)

	switch {
	case resp.RateLimited, strings.Contains(lower, "rate limit"), strings.Contains(lower, "429"):
		return msg, contractx.FailureRateLimited
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "401"), strings.Contains(lower, "403"),
		strings.Contains(lower, "invalid api key"):
		return msg, contractx.FailureAuth
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err), strings.Contains(lower, "timeout"):
		return msg, contractx.FailureTimeout
	case isConnectionError(err), strings.Contains(lower, "connection"):
		return msg, contractx.FailureConnection
	default:
		return msg, contractx.FailureOther
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
