package executor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	cachex "github.com/tanpawarit/bizlens/agent/cache"
	contractx "github.com/tanpawarit/bizlens/agent/contract"
	statex "github.com/tanpawarit/bizlens/agent/state"
)

type scriptedTool struct {
	name      contractx.ToolName
	responses []contractx.ToolResponse
	errs      []error
	calls     int
}

func (s *scriptedTool) Name() contractx.ToolName { return s.name }

func (s *scriptedTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResponse, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	return s.responses[idx], err
}

type fakeToolset struct {
	search    *scriptedTool
	details   *scriptedTool
	sentiment *scriptedTool
}

func newFakeToolset() *fakeToolset {
	return &fakeToolset{
		search:    &scriptedTool{name: contractx.ToolSearch},
		details:   &scriptedTool{name: contractx.ToolDetails},
		sentiment: &scriptedTool{name: contractx.ToolSentiment},
	}
}

func (f *fakeToolset) Search() contractx.Tool    { return f.search }
func (f *fakeToolset) Details() contractx.Tool   { return f.details }
func (f *fakeToolset) Sentiment() contractx.Tool { return f.sentiment }

func newTestExecutor(t *testing.T, tools contractx.Toolset, cache cachex.Store) (*Executor, *[]time.Duration) {
	t.Helper()

	exec, err := New(tools, cache, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var slept []time.Duration
	exec.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return exec, &slept
}

func newSession(t *testing.T) *statex.ConversationState {
	t.Helper()
	return statex.NewConversationState("s-1", time.Now().UTC())
}

func TestExecuteSearchSuccessCachesBasics(t *testing.T) {
	t.Parallel()

	tools := newFakeToolset()
	tools.search.responses = []contractx.ToolResponse{{
		Success:    true,
		Entities:   []contractx.BasicInfo{{ID: "biz-001", Name: "Via 313 Pizza"}},
		FullOutput: json.RawMessage(`{"entities":[{"id":"biz-001"}]}`),
	}}

	cache := cachex.NewMemoryStore()
	exec, _ := newTestExecutor(t, tools, cache)
	st := newSession(t)

	if err := exec.Execute(context.Background(), contractx.ToolSearch, contractx.ToolRequest{Query: "pizza"}, st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := st.ToolOutputs.Search
	if out == nil || !out.Success {
		t.Fatalf("search output = %+v", out)
	}
	if out.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", out.Attempts)
	}
	if len(st.KnownEntityIDs) != 1 || st.KnownEntityIDs[0] != "biz-001" {
		t.Fatalf("KnownEntityIDs = %v", st.KnownEntityIDs)
	}

	ok, err := cache.Has(context.Background(), "biz-001", contractx.TierBasic)
	if err != nil || !ok {
		t.Fatalf("basic tier not cached: %v, %v", ok, err)
	}
}

func TestExecuteRetriesTransientWithBackoff(t *testing.T) {
	t.Parallel()

	tools := newFakeToolset()
	tools.search.responses = []contractx.ToolResponse{
		{Error: "timeout contacting backend"},
		{Error: "timeout contacting backend"},
		{Success: true, Entities: []contractx.BasicInfo{{ID: "biz-001"}}},
	}

	exec, slept := newTestExecutor(t, tools, cachex.NewMemoryStore())
	st := newSession(t)

	if err := exec.Execute(context.Background(), contractx.ToolSearch, contractx.ToolRequest{Query: "pizza"}, st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if st.ToolOutputs.Search == nil || !st.ToolOutputs.Search.Success {
		t.Fatalf("search should have recovered: %+v", st.ToolOutputs.Search)
	}
	if st.ToolOutputs.Search.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", st.ToolOutputs.Search.Attempts)
	}
	if len(*slept) != 2 || (*slept)[0] != time.Second || (*slept)[1] != 2*time.Second {
		t.Fatalf("backoff schedule = %v, want [1s 2s]", *slept)
	}
	if st.ConsecutiveFailures[contractx.ToolSearch] != 0 {
		t.Fatalf("success must reset consecutive failures, got %d", st.ConsecutiveFailures[contractx.ToolSearch])
	}
}

func TestExecuteTransientExhaustion(t *testing.T) {
	t.Parallel()

	tools := newFakeToolset()
	tools.search.responses = []contractx.ToolResponse{{Error: "connection refused"}}

	exec, slept := newTestExecutor(t, tools, cachex.NewMemoryStore())
	st := newSession(t)

	if err := exec.Execute(context.Background(), contractx.ToolSearch, contractx.ToolRequest{Query: "pizza"}, st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := st.ToolOutputs.Search
	if out == nil || out.Success {
		t.Fatalf("expected failed output, got %+v", out)
	}
	if out.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", out.Attempts)
	}
	if out.FailureClass != contractx.FailureConnection {
		t.Fatalf("FailureClass = %s, want connection", out.FailureClass)
	}
	if len(*slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(*slept))
	}
	// 3 attempts means 2 retries; the first call is not a retry.
	if st.RetryCounts[contractx.ToolSearch] != 2 {
		t.Fatalf("RetryCounts = %d, want 2", st.RetryCounts[contractx.ToolSearch])
	}
	if st.ConsecutiveFailures[contractx.ToolSearch] != 1 {
		t.Fatalf("ConsecutiveFailures = %d, want 1", st.ConsecutiveFailures[contractx.ToolSearch])
	}
}

func TestExecuteRateLimitedSurfacesImmediately(t *testing.T) {
	t.Parallel()

	tools := newFakeToolset()
	tools.search.responses = []contractx.ToolResponse{{Error: "429 too many requests", RateLimited: true}}

	exec, slept := newTestExecutor(t, tools, cachex.NewMemoryStore())
	st := newSession(t)

	if err := exec.Execute(context.Background(), contractx.ToolSearch, contractx.ToolRequest{Query: "pizza"}, st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := st.ToolOutputs.Search
	if out == nil || out.Success {
		t.Fatalf("expected failure, got %+v", out)
	}
	if out.Attempts != 1 {
		t.Fatalf("rate limited must not retry, Attempts = %d", out.Attempts)
	}
	if out.FailureClass != contractx.FailureRateLimited {
		t.Fatalf("FailureClass = %s", out.FailureClass)
	}
	if !out.Terminal {
		t.Fatalf("rate limited failure must be terminal")
	}
	if len(*slept) != 0 {
		t.Fatalf("unexpected backoff sleeps: %v", *slept)
	}
	if st.RetryCounts[contractx.ToolSearch] != 0 {
		t.Fatalf("single attempt is not a retry, RetryCounts = %d", st.RetryCounts[contractx.ToolSearch])
	}
}

func TestExecuteAuthFailureIsTerminal(t *testing.T) {
	t.Parallel()

	tools := newFakeToolset()
	tools.details.responses = []contractx.ToolResponse{{Error: "401 unauthorized"}}

	exec, _ := newTestExecutor(t, tools, cachex.NewMemoryStore())
	st := newSession(t)

	if err := exec.Execute(context.Background(), contractx.ToolDetails, contractx.ToolRequest{}, st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := st.ToolOutputs.Details
	if out == nil || !out.Terminal {
		t.Fatalf("auth failure must be terminal, got %+v", out)
	}
	if out.FailureClass != contractx.FailureAuth {
		t.Fatalf("FailureClass = %s", out.FailureClass)
	}
	if out.Attempts != 1 {
		t.Fatalf("auth failure must not retry, Attempts = %d", out.Attempts)
	}
}

func TestExecuteOtherFailureNotRetried(t *testing.T) {
	t.Parallel()

	tools := newFakeToolset()
	tools.details.responses = []contractx.ToolResponse{{Error: "backend exploded"}}

	exec, slept := newTestExecutor(t, tools, cachex.NewMemoryStore())
	st := newSession(t)

	if err := exec.Execute(context.Background(), contractx.ToolDetails, contractx.ToolRequest{}, st); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := st.ToolOutputs.Details
	if out == nil || out.Success {
		t.Fatalf("expected failure, got %+v", out)
	}
	if out.FailureClass != contractx.FailureOther {
		t.Fatalf("FailureClass = %s, want other", out.FailureClass)
	}
	if out.Attempts != 1 || len(*slept) != 0 {
		t.Fatalf("other failures must not retry: attempts=%d sleeps=%v", out.Attempts, *slept)
	}
	if out.Terminal {
		t.Fatalf("single other failure must not be terminal")
	}
}

func TestExecuteBreakerTripsAfterThreshold(t *testing.T) {
	t.Parallel()

	tools := newFakeToolset()
	tools.details.responses = []contractx.ToolResponse{{Error: "backend exploded"}}

	exec, _ := newTestExecutor(t, tools, cachex.NewMemoryStore())
	st := newSession(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := exec.Execute(ctx, contractx.ToolDetails, contractx.ToolRequest{}, st); err != nil {
			t.Fatalf("Execute() #%d error = %v", i+1, err)
		}
	}

	if st.ConsecutiveFailures[contractx.ToolDetails] != 3 {
		t.Fatalf("ConsecutiveFailures = %d, want 3", st.ConsecutiveFailures[contractx.ToolDetails])
	}
	if !st.ToolOutputs.Details.Terminal {
		t.Fatalf("third consecutive failure must be terminal")
	}

	// Breaker is now open: the tool must not be invoked again this session.
	callsBefore := tools.details.calls
	if err := exec.Execute(ctx, contractx.ToolDetails, contractx.ToolRequest{}, st); err != nil {
		t.Fatalf("Execute() after breaker error = %v", err)
	}
	if tools.details.calls != callsBefore {
		t.Fatalf("breaker open but tool was invoked")
	}
	if !strings.Contains(st.ToolOutputs.Details.Error, "circuit") {
		t.Fatalf("breaker output should mention the open circuit: %q", st.ToolOutputs.Details.Error)
	}
}

func TestExecuteUnknownToolIsError(t *testing.T) {
	t.Parallel()

	exec, _ := newTestExecutor(t, newFakeToolset(), cachex.NewMemoryStore())
	st := newSession(t)

	err := exec.Execute(context.Background(), contractx.ToolName("bogus"), contractx.ToolRequest{}, st)
	if !errors.Is(err, contractx.ErrToolUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrToolUnavailable", err)
	}
}

func TestClassifyFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		resp contractx.ToolResponse
		err  error
		want contractx.FailureClass
	}{
		{"rate limit flag", contractx.ToolResponse{RateLimited: true, Error: "slow down"}, nil, contractx.FailureRateLimited},
		{"rate limit text", contractx.ToolResponse{Error: "hit the rate limit"}, nil, contractx.FailureRateLimited},
		{"auth", contractx.ToolResponse{Error: "403 forbidden"}, nil, contractx.FailureAuth},
		{"deadline", contractx.ToolResponse{}, context.DeadlineExceeded, contractx.FailureTimeout},
		{"timeout text", contractx.ToolResponse{Error: "request timeout"}, nil, contractx.FailureTimeout},
		{"connection text", contractx.ToolResponse{Error: "connection reset by peer"}, nil, contractx.FailureConnection},
		{"other", contractx.ToolResponse{Error: "wat"}, nil, contractx.FailureOther},
		{"empty", contractx.ToolResponse{}, nil, contractx.FailureOther},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg, got := classifyFailure(tc.resp, tc.err)
			if got != tc.want {
				t.Fatalf("classifyFailure() = %s, want %s", got, tc.want)
			}
			if msg == "" {
				t.Fatalf("classifyFailure() returned empty message")
			}
		})
	}
}
