package supervisor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	cachex "github.com/tanpawarit/bizlens/agent/cache"
	contractx "github.com/tanpawarit/bizlens/agent/contract"
	executorx "github.com/tanpawarit/bizlens/agent/executor"
	statex "github.com/tanpawarit/bizlens/agent/state"
	toolx "github.com/tanpawarit/bizlens/agent/tool"
)

func newSearchSession(t *testing.T, level contractx.DetailLevel) *statex.ConversationState {
	t.Helper()

	st := statex.NewConversationState("s-1", time.Now().UTC())
	st.ResetSearch("pizza", "Austin", level, time.Now().UTC())
	return st
}

func newRunnerWithBuiltins(t *testing.T, cache cachex.Store) *Runner {
	t.Helper()

	exec, err := executorx.New(toolx.NewBuiltinSet(), cache, executorx.Config{})
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	runner, err := NewRunner(exec, cache, Config{})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner
}

func actions(trace []contractx.SupervisorDecision) []contractx.NextAction {
	out := make([]contractx.NextAction, 0, len(trace))
	for _, dec := range trace {
		out = append(out, dec.NextAction)
	}
	return out
}

func assertActions(t *testing.T, got []contractx.NextAction, want ...contractx.NextAction) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace = %v, want %v", got, want)
		}
	}
}

func TestDecideSearchFirst(t *testing.T) {
	t.Parallel()

	st := newSearchSession(t, contractx.DetailLevelGeneral)
	dec := Decide(st, CacheView{})
	if dec.NextAction != contractx.ActionSearch {
		t.Fatalf("NextAction = %s, want search", dec.NextAction)
	}
}

func TestDecideFinalizesGeneralAfterSearch(t *testing.T) {
	t.Parallel()

	st := newSearchSession(t, contractx.DetailLevelGeneral)
	st.ToolOutputs.Search = &contractx.SearchOutput{
		ToolStatus: contractx.ToolStatus{Success: true},
		Entities:   []contractx.BasicInfo{{ID: "biz-001"}},
	}
	st.KnownEntityIDs = []string{"biz-001"}

	dec := Decide(st, CacheView{})
	if dec.NextAction != contractx.ActionFinalize {
		t.Fatalf("NextAction = %s, want finalize", dec.NextAction)
	}
	if dec.ShouldFinalizeEarly {
		t.Fatalf("normal finalize flagged as early")
	}
}

func TestDecideTerminalFailureFinalizesEarly(t *testing.T) {
	t.Parallel()

	st := newSearchSession(t, contractx.DetailLevelDetailed)
	st.ToolOutputs.Search = &contractx.SearchOutput{
		ToolStatus: contractx.ToolStatus{Success: true},
	}
	st.ToolOutputs.Details = &contractx.DetailsOutput{
		ToolStatus: contractx.ToolStatus{
			Error:        "401 unauthorized",
			FailureClass: contractx.FailureAuth,
			Terminal:     true,
		},
	}

	dec := Decide(st, CacheView{})
	if dec.NextAction != contractx.ActionFinalize || !dec.ShouldFinalizeEarly {
		t.Fatalf("decision = %+v, want early finalize", dec)
	}
}

func TestDecidePrefersCacheOverTool(t *testing.T) {
	t.Parallel()

	st := newSearchSession(t, contractx.DetailLevelDetailed)
	st.ToolOutputs.Search = &contractx.SearchOutput{
		ToolStatus: contractx.ToolStatus{Success: true},
	}
	st.KnownEntityIDs = []string{"biz-001"}

	dec := Decide(st, CacheView{AllDetailsCached: true})
	if dec.NextAction != contractx.ActionConsultCache {
		t.Fatalf("NextAction = %s, want consult_cache", dec.NextAction)
	}

	dec = Decide(st, CacheView{})
	if dec.NextAction != contractx.ActionGetDetails {
		t.Fatalf("NextAction = %s, want get_details", dec.NextAction)
	}
}

func TestRunGeneralQueryTrace(t *testing.T) {
	t.Parallel()

	runner := newRunnerWithBuiltins(t, cachex.NewMemoryStore())
	st := newSearchSession(t, contractx.DetailLevelGeneral)

	trace, err := runner.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertActions(t, actions(trace), contractx.ActionSearch, contractx.ActionFinalize)

	if !st.SearchSucceeded() {
		t.Fatalf("search did not succeed")
	}
	if len(st.KnownEntityIDs) == 0 {
		t.Fatalf("no entities recorded")
	}
}

func TestRunReviewsQueryTrace(t *testing.T) {
	t.Parallel()

	runner := newRunnerWithBuiltins(t, cachex.NewMemoryStore())
	st := newSearchSession(t, contractx.DetailLevelReviews)

	trace, err := runner.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertActions(t, actions(trace),
		contractx.ActionSearch, contractx.ActionAnalyzeSentiment, contractx.ActionFinalize)

	if st.ToolOutputs.Sentiment == nil || !st.ToolOutputs.Sentiment.Success {
		t.Fatalf("sentiment output missing: %+v", st.ToolOutputs.Sentiment)
	}
	for _, id := range st.KnownEntityIDs {
		if _, ok := st.ToolOutputs.Sentiment.Items[id]; !ok {
			t.Fatalf("sentiment missing for entity %s", id)
		}
	}
}

func TestRunFollowUpSkipsSearch(t *testing.T) {
	t.Parallel()

	runner := newRunnerWithBuiltins(t, cachex.NewMemoryStore())
	st := newSearchSession(t, contractx.DetailLevelGeneral)

	if _, err := runner.Run(context.Background(), st); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstEntities := append([]string(nil), st.KnownEntityIDs...)

	// Same subject, deeper level. Search must not run again.
	st.FollowUp(contractx.DetailLevelDetailed, time.Now().UTC())

	trace, err := runner.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	got := actions(trace)
	for _, a := range got {
		if a == contractx.ActionSearch {
			t.Fatalf("follow-up re-ran search: %v", got)
		}
	}
	assertActions(t, got, contractx.ActionGetDetails, contractx.ActionFinalize)

	if len(st.KnownEntityIDs) != len(firstEntities) {
		t.Fatalf("follow-up changed known entities: %v vs %v", st.KnownEntityIDs, firstEntities)
	}
}

func TestRunIdempotentWithUnchangedLevel(t *testing.T) {
	t.Parallel()

	runner := newRunnerWithBuiltins(t, cachex.NewMemoryStore())
	st := newSearchSession(t, contractx.DetailLevelGeneral)

	if _, err := runner.Run(context.Background(), st); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// Unchanged detail level: there is nothing left to fetch, so the loop
	// must finalize immediately without a single tool call.
	trace, err := runner.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	assertActions(t, actions(trace), contractx.ActionFinalize)
}

func TestRunReviewsFollowUpTrace(t *testing.T) {
	t.Parallel()

	runner := newRunnerWithBuiltins(t, cachex.NewMemoryStore())
	st := newSearchSession(t, contractx.DetailLevelGeneral)

	if _, err := runner.Run(context.Background(), st); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	st.FollowUp(contractx.DetailLevelReviews, time.Now().UTC())

	trace, err := runner.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("follow-up Run() error = %v", err)
	}
	assertActions(t, actions(trace),
		contractx.ActionAnalyzeSentiment, contractx.ActionFinalize)
}

func TestRunCacheShortCircuit(t *testing.T) {
	t.Parallel()

	cache := cachex.NewMemoryStore()
	runner := newRunnerWithBuiltins(t, cache)

	// First session populates the detail tier through the tools.
	first := newSearchSession(t, contractx.DetailLevelDetailed)
	if _, err := runner.Run(context.Background(), first); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// A fresh session for the same subject finds the tiers cached and never
	// calls the detail tool.
	second := newSearchSession(t, contractx.DetailLevelDetailed)
	trace, err := runner.Run(context.Background(), second)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	assertActions(t, actions(trace),
		contractx.ActionSearch, contractx.ActionConsultCache, contractx.ActionFinalize)

	if second.ToolOutputs.Details == nil || !second.ToolOutputs.Details.FromCache {
		t.Fatalf("details should be served from cache: %+v", second.ToolOutputs.Details)
	}
}

type failingTool struct {
	name  contractx.ToolName
	calls int
}

func (f *failingTool) Name() contractx.ToolName { return f.name }

func (f *failingTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResponse, error) {
	f.calls++
	return contractx.ToolResponse{Error: "backend exploded"}, nil
}

type mixedToolset struct {
	search    contractx.Tool
	details   contractx.Tool
	sentiment contractx.Tool
}

func (m *mixedToolset) Search() contractx.Tool    { return m.search }
func (m *mixedToolset) Details() contractx.Tool   { return m.details }
func (m *mixedToolset) Sentiment() contractx.Tool { return m.sentiment }

type staticSearchTool struct{}

func (staticSearchTool) Name() contractx.ToolName { return contractx.ToolSearch }

func (staticSearchTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResponse, error) {
	refs := json.RawMessage(`{"entities":[{"id":"biz-001","name":"Via 313 Pizza"}]}`)
	return contractx.ToolResponse{
		Success:    true,
		Entities:   []contractx.BasicInfo{{ID: "biz-001", Name: "Via 313 Pizza"}},
		FullOutput: refs,
	}, nil
}

func TestRunRepeatedDetailFailureFinalizesEarly(t *testing.T) {
	t.Parallel()

	failing := &failingTool{name: contractx.ToolDetails}
	tools := &mixedToolset{
		search:    staticSearchTool{},
		details:   failing,
		sentiment: &failingTool{name: contractx.ToolSentiment},
	}

	cache := cachex.NewMemoryStore()
	exec, err := executorx.New(tools, cache, executorx.Config{})
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	runner, err := NewRunner(exec, cache, Config{})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	st := newSearchSession(t, contractx.DetailLevelDetailed)
	trace, err := runner.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Three consecutive failures trip the breaker threshold; the loop then
	// finalizes early instead of burning the remaining iterations.
	assertActions(t, actions(trace),
		contractx.ActionSearch,
		contractx.ActionGetDetails,
		contractx.ActionGetDetails,
		contractx.ActionGetDetails,
		contractx.ActionFinalize)

	last := trace[len(trace)-1]
	if !last.ShouldFinalizeEarly {
		t.Fatalf("final decision should be early: %+v", last)
	}
	if failing.calls != 3 {
		t.Fatalf("details tool called %d times, want 3", failing.calls)
	}
	if st.ConsecutiveFailures[contractx.ToolDetails] != 3 {
		t.Fatalf("ConsecutiveFailures = %d, want 3", st.ConsecutiveFailures[contractx.ToolDetails])
	}
	if !st.SearchSucceeded() {
		t.Fatalf("search result must survive the detail failure")
	}
}

func TestRunIterationBoundForcesFinalize(t *testing.T) {
	t.Parallel()

	failing := &failingTool{name: contractx.ToolDetails}
	tools := &mixedToolset{
		search:    staticSearchTool{},
		details:   failing,
		sentiment: &failingTool{name: contractx.ToolSentiment},
	}

	cache := cachex.NewMemoryStore()
	// A high breaker threshold keeps failures non-terminal so only the
	// iteration bound can stop the loop.
	exec, err := executorx.New(tools, cache, executorx.Config{BreakerThreshold: 100})
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	runner, err := NewRunner(exec, cache, Config{MaxIterations: 3})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	st := newSearchSession(t, contractx.DetailLevelDetailed)
	trace, err := runner.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(trace) != 4 {
		t.Fatalf("trace length = %d, want 4 (3 iterations + forced finalize)", len(trace))
	}
	last := trace[len(trace)-1]
	if last.NextAction != contractx.ActionFinalize || !last.ShouldFinalizeEarly {
		t.Fatalf("forced finalize missing: %+v", last)
	}
}
