package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/engine"
	"github.com/bryanwahyu/codescan/internal/domain/engine/enginetest"
	"github.com/bryanwahyu/codescan/internal/domain/scanerrors"
	"github.com/bryanwahyu/codescan/internal/domain/scans"
)

type fakeRunner struct {
	mu     sync.Mutex
	result scans.RunResult
	err    error
	calls  []scans.RunRequest
}

func (f *fakeRunner) Run(_ context.Context, req scans.RunRequest) (scans.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.result, f.err
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fastConfig() Config {
	return Config{
		EngineURL:    "http://sonarqube:9000",
		Token:        "squ_t",
		PollTimeout:  150 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
}

func issue(key, component, rule string) analyses.Issue {
	return analyses.Issue{
		Key:       key,
		Rule:      rule,
		Severity:  analyses.SeverityMajor,
		Type:      analyses.TypeBug,
		Component: component,
		Message:   "msg " + key,
	}
}

func TestSubmitHappyPath(t *testing.T) {
	eng := enginetest.NewStub()
	eng.Issues = []analyses.Issue{issue("I1", "keyA:source_code.js", "javascript:S3504")}
	eng.Rules["javascript:S3504"] = "<p>use let</p>"
	runner := &fakeRunner{}
	var states []State
	o := NewOrchestrator(eng, runner, fastConfig(), nil)
	o.OnTransition = func(_ string, _, to State) { states = append(states, to) }

	got, err := o.Submit(context.Background(), "keyA", "var x = 1", "js")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "<p>use let</p>", got[0].SolutionHTML)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "keyA", runner.calls[0].ProjectKey)
	assert.Equal(t, "squ_t", runner.calls[0].Token)
	assert.Equal(t, "http://sonarqube:9000", runner.calls[0].EngineURL)
	assert.Equal(t, []State{StateScanning, StateAwaitingEngine, StateEnriching, StateDone}, states)
}

func TestSubmitRequiresInput(t *testing.T) {
	o := NewOrchestrator(enginetest.NewStub(), &fakeRunner{}, fastConfig(), nil)

	_, err := o.Submit(context.Background(), "keyA", "  ", "js")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSubmitInvalidCredentialSkipsScan(t *testing.T) {
	cases := map[string]*enginetest.Stub{
		"rejected": {Valid: false},
		"unreachable": {ValidateErr: apperr.Upstream("sonarqube GET /api/authentication/validate", errors.New("dial tcp: refused"))},
	}
	for name, eng := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{}
			o := NewOrchestrator(eng, runner, fastConfig(), nil)

			_, err := o.Submit(context.Background(), "keyA", "x", "js")
			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, ReasonInvalidCredential, f.Reason)
			assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
			assert.Zero(t, runner.Calls())
			assert.Zero(t, eng.TaskCalls())
		})
	}
}

func TestSubmitScannerNonZeroExit(t *testing.T) {
	eng := enginetest.NewStub()
	runner := &fakeRunner{result: scans.RunResult{ExitCode: 1, Stderr: "ERROR: Not authorized"}}
	var archived scans.RunResult
	o := NewOrchestrator(eng, runner, fastConfig(), nil)
	o.OnScan = func(_ context.Context, _ string, res scans.RunResult) { archived = res }

	_, err := o.Submit(context.Background(), "keyA", "x", "js")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, ReasonScanExecutionFailed, f.Reason)
	assert.Equal(t, "ERROR: Not authorized", f.Details)
	assert.Equal(t, apperr.KindExecution, apperr.KindOf(err))
	assert.Equal(t, scanerrors.PhaseScan, f.Phase())
	assert.Equal(t, 1, archived.ExitCode)
	assert.Zero(t, eng.TaskCalls())
	assert.Zero(t, eng.SearchCalls())
}

func TestSubmitScannerFallsBackToStdout(t *testing.T) {
	runner := &fakeRunner{result: scans.RunResult{ExitCode: 2, Stdout: "INFO: EXECUTION FAILURE"}}
	o := NewOrchestrator(enginetest.NewStub(), runner, fastConfig(), nil)

	_, err := o.Submit(context.Background(), "keyA", "x", "js")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "INFO: EXECUTION FAILURE", f.Details)
}

func TestSubmitSpawnFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("spawn scanner: executable file not found")}
	eng := enginetest.NewStub()
	o := NewOrchestrator(eng, runner, fastConfig(), nil)

	_, err := o.Submit(context.Background(), "keyA", "x", "js")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, ReasonScanExecutionFailed, f.Reason)
	assert.Zero(t, eng.TaskCalls())
}

func TestSubmitWaitsForPendingTask(t *testing.T) {
	eng := enginetest.NewStub()
	eng.Tasks = func(call int) (engine.TaskQueue, error) {
		switch {
		case call == 1:
			return enginetest.Pending(), nil
		case call == 2:
			return engine.TaskQueue{}, errors.New("temporary")
		default:
			return enginetest.Finished(), nil
		}
	}
	o := NewOrchestrator(eng, &fakeRunner{}, fastConfig(), nil)

	_, err := o.Submit(context.Background(), "keyA", "x", "js")
	require.NoError(t, err)
	assert.Equal(t, 3, eng.TaskCalls())
	assert.Equal(t, 1, eng.SearchCalls())
}

func TestSubmitTimesOut(t *testing.T) {
	eng := enginetest.NewStub()
	eng.Tasks = func(int) (engine.TaskQueue, error) { return enginetest.Pending(), nil }
	cfg := fastConfig()
	o := NewOrchestrator(eng, &fakeRunner{}, cfg, nil)

	start := time.Now()
	_, err := o.Submit(context.Background(), "keyA", "x", "js")
	took := time.Since(start)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, ReasonAnalysisTimeout, f.Reason)
	assert.Equal(t, scanerrors.PhasePolling, f.Phase())
	assert.GreaterOrEqual(t, took, cfg.PollTimeout)
	assert.Less(t, took, cfg.PollTimeout+time.Second)
	assert.Greater(t, eng.TaskCalls(), 1)
	assert.Zero(t, eng.SearchCalls())
}

func TestSubmitCallerCancelIsNotTimeout(t *testing.T) {
	eng := enginetest.NewStub()
	eng.Tasks = func(int) (engine.TaskQueue, error) { return enginetest.Pending(), nil }
	cfg := fastConfig()
	cfg.PollTimeout = 5 * time.Second
	o := NewOrchestrator(eng, &fakeRunner{}, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := o.Submit(ctx, "keyA", "x", "js")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var f *Failure
	assert.False(t, errors.As(err, &f))
}

func TestSubmitFiltersByProjectPrefix(t *testing.T) {
	eng := enginetest.NewStub()
	eng.Issues = []analyses.Issue{
		issue("A1", "keyA:source_code.js", "r1"),
		issue("B1", "keyB:source_code.js", "r1"),
		issue("AB", "keyAB:source_code.js", "r1"),
		issue("A2", "keyA:source_code.js", "r2"),
	}
	o := NewOrchestrator(eng, &fakeRunner{}, fastConfig(), nil)

	got, err := o.Submit(context.Background(), "keyA", "x", "js")
	require.NoError(t, err)

	var keys []string
	for _, is := range got {
		keys = append(keys, is.Key)
	}
	assert.Equal(t, []string{"A1", "A2"}, keys)
}

func TestSubmitSearchFailure(t *testing.T) {
	eng := enginetest.NewStub()
	eng.SearchErr = apperr.Upstream("sonarqube GET /api/issues/search returned 500", nil)
	o := NewOrchestrator(eng, &fakeRunner{}, fastConfig(), nil)

	_, err := o.Submit(context.Background(), "keyA", "x", "js")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, ReasonResultRetrievalFailed, f.Reason)
	assert.Equal(t, scanerrors.PhaseRetrieval, f.Phase())
	assert.Zero(t, eng.RuleCalls())
}

func TestSubmitEnrichesEachRuleOnce(t *testing.T) {
	eng := enginetest.NewStub()
	for i := 0; i < 10; i++ {
		rule := "rule-a"
		if i%2 == 1 {
			rule = "rule-b"
		}
		eng.Issues = append(eng.Issues, issue(fmt.Sprintf("I%d", i), "keyA:source_code.js", rule))
	}
	eng.Rules["rule-a"] = "<p>a</p>"
	o := NewOrchestrator(eng, &fakeRunner{}, fastConfig(), nil)

	got, err := o.Submit(context.Background(), "keyA", "x", "js")
	require.NoError(t, err)

	require.Len(t, got, 10)
	assert.Equal(t, 2, eng.RuleCalls())
	assert.Equal(t, 1, eng.RuleCallsFor("rule-a"))
	for _, is := range got {
		require.NotEmpty(t, is.SolutionHTML)
		if is.Rule == "rule-a" {
			assert.Equal(t, "<p>a</p>", is.SolutionHTML)
		} else {
			assert.Equal(t, FallbackSolutionHTML, is.SolutionHTML)
		}
	}
}

func TestSubmitEmptyDescriptionFallsBack(t *testing.T) {
	eng := enginetest.NewStub()
	eng.Issues = []analyses.Issue{issue("I1", "keyA:f.js", "blank")}
	eng.Rules["blank"] = "  "
	o := NewOrchestrator(eng, &fakeRunner{}, fastConfig(), nil)

	got, err := o.Submit(context.Background(), "keyA", "x", "js")
	require.NoError(t, err)
	assert.Equal(t, FallbackSolutionHTML, got[0].SolutionHTML)
}

func TestSubmitNoIssues(t *testing.T) {
	eng := enginetest.NewStub()
	o := NewOrchestrator(eng, &fakeRunner{}, fastConfig(), nil)

	got, err := o.Submit(context.Background(), "keyA", "x", "js")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, eng.RuleCalls())
}

func TestFailureKinds(t *testing.T) {
	cases := []struct {
		reason Reason
		kind   apperr.Kind
		phase  scanerrors.Phase
	}{
		{ReasonInvalidCredential, apperr.KindUpstream, scanerrors.PhaseCredential},
		{ReasonScanExecutionFailed, apperr.KindExecution, scanerrors.PhaseScan},
		{ReasonAnalysisTimeout, apperr.KindExecution, scanerrors.PhasePolling},
		{ReasonResultRetrievalFailed, apperr.KindUpstream, scanerrors.PhaseRetrieval},
	}
	for _, tc := range cases {
		f := &Failure{Reason: tc.reason}
		assert.Equal(t, tc.kind, f.Kind(), tc.reason)
		assert.Equal(t, tc.phase, f.Phase(), tc.reason)
		assert.NotEmpty(t, f.Error())
	}
}
