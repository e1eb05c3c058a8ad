package guard

import (
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/profile"
)

func policy(mode profile.GuardMode, failMax, timeoutMax float64) profile.GuardPolicy {
	return profile.GuardPolicy{
		Mode: mode,
		Thresholds: profile.GuardThresholds{
			FailRateMax:                  failMax,
			TimeoutRateMax:               timeoutMax,
			RetryStormAttemptsPerGateMax: 9999,
		},
	}
}

func TestComputeRatesEmptyHistory(t *testing.T) {
	r := ComputeRates(nil)
	if r.Total != 0 || r.FailRate != 0 {
		t.Fatalf("expected zeroed rates for empty history, got %+v", r)
	}
}

func TestComputeRatesCountsFailuresAndTimeouts(t *testing.T) {
	history := []checkpoint.Checkpoint{
		{Status: checkpoint.StatusPass},
		{Status: checkpoint.StatusToolError},
		{Status: checkpoint.StatusPolicyFail, BlockingIssues: []string{"request Timeout exceeded"}},
		{Status: checkpoint.StatusPass, BlockingIssues: []string{"Retry Storm detected"}},
	}
	r := ComputeRates(history)
	if r.Total != 4 {
		t.Fatalf("expected total 4, got %v", r.Total)
	}
	if r.FailRate != 0.5 {
		t.Fatalf("expected failRate 0.5, got %v", r.FailRate)
	}
	if r.TimeoutRate != 0.25 {
		t.Fatalf("expected timeoutRate 0.25, got %v", r.TimeoutRate)
	}
	if r.RetryStormRate != 0.25 {
		t.Fatalf("expected retryStormRate 0.25, got %v", r.RetryStormRate)
	}
}

func TestTransitionLearningModeNeverTrips(t *testing.T) {
	p := policy(profile.GuardModeLearning, 0.1, 0.1)
	next, issues := Transition(gobreaker.StateClosed, p, Rates{Total: 10, FailRate: 0.9})
	if next != gobreaker.StateClosed {
		t.Fatalf("learning mode must not trip the breaker, got %v", next)
	}
	if len(issues) == 0 {
		t.Fatal("expected a recommendation issue in learning mode")
	}
}

func TestTransitionEnforcedBreachOpensFromClosed(t *testing.T) {
	p := policy(profile.GuardModeEnforced, 0.1, 0.1)
	next, issues := Transition(gobreaker.StateClosed, p, Rates{Total: 10, FailRate: 0.9})
	if next != gobreaker.StateOpen {
		t.Fatalf("expected open, got %v", next)
	}
	if len(issues) != 1 {
		t.Fatalf("expected one breach issue, got %v", issues)
	}
}

func TestTransitionEnforcedNoBreachOpenGoesHalfOpen(t *testing.T) {
	p := policy(profile.GuardModeEnforced, 0.9, 0.9)
	next, _ := Transition(gobreaker.StateOpen, p, Rates{Total: 10, FailRate: 0.0})
	if next != gobreaker.StateHalfOpen {
		t.Fatalf("expected half_open, got %v", next)
	}
}

func TestTransitionEnforcedNoBreachHalfOpenGoesClosed(t *testing.T) {
	p := policy(profile.GuardModeEnforced, 0.9, 0.9)
	next, _ := Transition(gobreaker.StateHalfOpen, p, Rates{Total: 10, FailRate: 0.0})
	if next != gobreaker.StateClosed {
		t.Fatalf("expected closed, got %v", next)
	}
}

func TestTransitionEnforcedBreachFromHalfOpenReturnsOpen(t *testing.T) {
	p := policy(profile.GuardModeEnforced, 0.1, 0.1)
	next, _ := Transition(gobreaker.StateHalfOpen, p, Rates{Total: 10, FailRate: 0.9})
	if next != gobreaker.StateOpen {
		t.Fatalf("expected open, got %v", next)
	}
}

func TestTrippedRequiresEnforcedAndOpen(t *testing.T) {
	r := Report{State: "open", Mode: string(profile.GuardModeEnforced)}
	if !Tripped(r) {
		t.Fatal("expected tripped")
	}
	r.Mode = string(profile.GuardModeLearning)
	if Tripped(r) {
		t.Fatal("learning mode must never be considered tripped")
	}
}

func TestEvaluateProducesConsistentReportAndState(t *testing.T) {
	p := policy(profile.GuardModeEnforced, 0.1, 0.1)
	history := []checkpoint.Checkpoint{{Status: checkpoint.StatusToolError}}
	report, state := Evaluate(p, history, "closed", time.Now())
	if report.State != state.State {
		t.Fatalf("report/state mismatch: %q vs %q", report.State, state.State)
	}
	if report.State != "open" {
		t.Fatalf("expected open, got %s", report.State)
	}
}

func TestEvaluateEarlyFailureClusterDoesNotBreachWholeWindow(t *testing.T) {
	// One failure followed by nine passes: the whole-window failRate is
	// 0.1, so the guard must stay closed at failRateMax=0.5 even though
	// every prefix of length one breaches that ratio.
	history := []checkpoint.Checkpoint{{Status: checkpoint.StatusToolError}}
	for i := 0; i < 9; i++ {
		history = append(history, checkpoint.Checkpoint{Status: checkpoint.StatusPass})
	}

	p := policy(profile.GuardModeEnforced, 0.5, 0.5)
	report, state := Evaluate(p, history, "closed", time.Now())
	if report.Rates.FailRate != 0.1 {
		t.Fatalf("failRate = %v, want 0.1", report.Rates.FailRate)
	}
	if report.State != "closed" || state.State != "closed" {
		t.Fatalf("state = %q, want closed (aggregate 0.1 <= 0.5)", report.State)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("unexpected breach issues: %v", report.Issues)
	}
}
