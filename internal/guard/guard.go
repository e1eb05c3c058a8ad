// Package guard is the runner-guard circuit breaker:
// it scans recent checkpoint history for failure/timeout/retry-storm
// rates and trips a closed/open/half_open breaker, persisted across
// independent CLI invocations so state survives process exit.
//
// The breach test is the pure whole-window ratio fails/total, not a
// live gobreaker replay: cumulative Counts would trip on an early
// failure cluster that the full window no longer justifies, and the
// open -> half_open -> closed recovery half spans separate CLI
// invocations, which an in-memory breaker cannot do on its own.
// gobreaker contributes the vocabulary instead: the State enum backing
// the persisted closed/open/half_open value and the Counts bookkeeping
// shape.
package guard

import (
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/profile"
)

// stateClosed/stateOpen/stateHalfOpen reuse gobreaker's State constants;
// report and state fields carry them through stateToken below.
const (
	stateClosed   = gobreaker.StateClosed
	stateOpen     = gobreaker.StateOpen
	stateHalfOpen = gobreaker.StateHalfOpen
)

// stateToken is the persisted spelling: closed/open/half_open (gobreaker's
// String() prints "half-open", which is not the on-disk token).
func stateToken(s gobreaker.State) string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func parseStateToken(s string) gobreaker.State {
	switch s {
	case "open":
		return stateOpen
	case "half_open":
		return stateHalfOpen
	default:
		return stateClosed
	}
}

// Rates is the whole-window failure accounting over history.
type Rates struct {
	Total          float64 `json:"total"`
	FailRate       float64 `json:"failRate"`
	TimeoutRate    float64 `json:"timeoutRate"`
	RetryStormRate float64 `json:"retryStormRate"`
}

// ComputeRates scans the full history window: failRate counts
// tool_error/policy_fail statuses; timeoutRate and retryStormRate scan
// each checkpoint's BlockingIssues for case-insensitive "timeout" and
// "retry storm" substrings respectively.
func ComputeRates(history []checkpoint.Checkpoint) Rates {
	total := float64(len(history))
	if total == 0 {
		return Rates{}
	}
	var fail, timeout, retryStorm float64
	for _, row := range history {
		if row.Status == checkpoint.StatusToolError || row.Status == checkpoint.StatusPolicyFail {
			fail++
		}
		for _, issue := range row.BlockingIssues {
			low := strings.ToLower(issue)
			if strings.Contains(low, "timeout") {
				timeout++
			}
			if strings.Contains(low, "retry storm") {
				retryStorm++
			}
		}
	}
	return Rates{
		Total:          total,
		FailRate:       fail / total,
		TimeoutRate:    timeout / total,
		RetryStormRate: retryStorm / total,
	}
}

// State is runner_guard_state.json's content.
type State struct {
	State     string `json:"state"`
	UpdatedAt string `json:"updatedAt"`
}

// Report is runner_guard_latest_report.json's content.
type Report struct {
	GeneratedAt   string   `json:"generatedAt"`
	Mode          string   `json:"mode"`
	PreviousState string   `json:"previousState"`
	State         string   `json:"state"`
	Rates         Rates    `json:"rates"`
	Issues        []string `json:"issues"`
}

// Counts tallies history in gobreaker.Counts' shape (requests/failures as
// integral tallies beside the fractional rates above); Report does not
// include these tallies.
func Counts(history []checkpoint.Checkpoint) gobreaker.Counts {
	var c gobreaker.Counts
	for _, row := range history {
		c.Requests++
		if row.Status == checkpoint.StatusToolError || row.Status == checkpoint.StatusPolicyFail {
			c.TotalFailures++
			c.ConsecutiveFailures++
			c.ConsecutiveSuccesses = 0
		} else {
			c.TotalSuccesses++
			c.ConsecutiveSuccesses++
			c.ConsecutiveFailures = 0
		}
	}
	return c
}

// Transition advances the breaker one evaluation: learning mode never
// trips the breaker (it only records recommendation issues and preserves
// previousState, defaulting to closed); enforced mode applies the
// breach/no-breach transition table.
func Transition(previous gobreaker.State, policy profile.GuardPolicy, rates Rates) (gobreaker.State, []string) {
	var issues []string
	t := policy.Thresholds
	failMax := t.FailRateMax
	timeoutMax := t.TimeoutRateMax
	stormMax := float64(t.RetryStormAttemptsPerGateMax)

	if policy.Mode == profile.GuardModeLearning {
		if rates.FailRate > failMax {
			issues = append(issues, fmt.Sprintf("learning: failRate %.4f > configured %.4f", rates.FailRate, failMax))
		}
		if rates.TimeoutRate > timeoutMax {
			issues = append(issues, fmt.Sprintf("learning: timeoutRate %.4f > configured %.4f", rates.TimeoutRate, timeoutMax))
		}
		if stormMax > 0 && rates.RetryStormRate > stormMax {
			issues = append(issues, fmt.Sprintf("learning: retryStormRate %.4f > configured %.4f", rates.RetryStormRate, stormMax))
		}
		return previous, issues
	}

	breach := rates.FailRate > failMax || rates.TimeoutRate > timeoutMax
	if breach {
		issues = append(issues, fmt.Sprintf("guard threshold breach: failRate=%.4f, timeoutRate=%.4f", rates.FailRate, rates.TimeoutRate))
		return stateOpen, issues
	}

	switch previous {
	case stateOpen:
		return stateHalfOpen, issues
	case stateHalfOpen:
		return stateClosed, issues
	default:
		return stateClosed, issues
	}
}

// Evaluate computes rates, transitions the breaker, and builds
// the full report plus the persisted state, in one call.
func Evaluate(policy profile.GuardPolicy, history []checkpoint.Checkpoint, previousState string, now time.Time) (Report, State) {
	rates := ComputeRates(history)
	next, issues := Transition(parseStateToken(previousState), policy, rates)
	generatedAt := now.UTC().Format(time.RFC3339Nano)
	report := Report{
		GeneratedAt:   generatedAt,
		Mode:          string(policy.Mode),
		PreviousState: previousState,
		State:         stateToken(next),
		Rates:         rates,
		Issues:        issues,
	}
	return report, State{State: report.State, UpdatedAt: generatedAt}
}

// Tripped reports whether the pipeline must hard-block before G0: the
// guard is open and the policy is not in learning mode.
func Tripped(report Report) bool {
	return report.State == "open" && report.Mode != string(profile.GuardModeLearning)
}
