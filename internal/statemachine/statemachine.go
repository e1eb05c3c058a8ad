// Package statemachine replays an externally produced state-transition
// log against the fixed 5-state runtime machine. One JSON object per
// NDJSON line is parsed with a bufio.Scanner (bounded buffer); legacy
// key spellings are coalesced before validation.
package statemachine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// State is one of the fixed alphabet entries.
type State string

const (
	Normal         State = "NORMAL"
	Watch          State = "WATCH"
	DegradeH0      State = "DEGRADE_H0"
	PauseNewOpens  State = "PAUSE_NEW_OPENS"
	RecoveryShadow State = "RECOVERY_SHADOW"
)

var validStates = map[State]bool{
	Normal: true, Watch: true, DegradeH0: true, PauseNewOpens: true, RecoveryShadow: true,
}

// allowedTransitions lists, per from-state, the allowed to-states other
// than the self-loop (every state may repeat itself).
var allowedTransitions = map[State]map[State]bool{
	Normal:         {Watch: true, DegradeH0: true, PauseNewOpens: true},
	Watch:          {Normal: true, DegradeH0: true, PauseNewOpens: true},
	DegradeH0:      {RecoveryShadow: true, PauseNewOpens: true},
	PauseNewOpens:  {Watch: true, DegradeH0: true, RecoveryShadow: true},
	RecoveryShadow: {Normal: true, DegradeH0: true, PauseNewOpens: true},
}

// Allowed reports whether from -> to is a permitted transition (including
// the always-permitted self-loop).
func Allowed(from, to State) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// Transition is one interpreted log line.
type Transition struct {
	Line    int     `json:"line"`
	From    *State  `json:"from"`
	To      State   `json:"to"`
	Allowed bool    `json:"allowed"`
	Event   *string `json:"event,omitempty"`
}

// Report is the replay outcome.
type Report struct {
	GeneratedAt     string       `json:"generatedAt"`
	Valid           bool         `json:"valid"`
	LogFile         string       `json:"logFile"`
	TransitionCount int          `json:"transitionCount"`
	FinalState      *State       `json:"finalState"`
	Errors          []string     `json:"errors"`
	Warnings        []string     `json:"warnings"`
	Transitions     []Transition `json:"transitions"`
}

// rawEvent is the loosely typed shape of one log line, with every
// accepted legacy key spelling.
type rawEvent struct {
	From          *string `json:"from"`
	FromState     *string `json:"fromState"`
	PrevState     *string `json:"prevState"`
	PreviousState *string `json:"previousState"`
	To            *string `json:"to"`
	ToState       *string `json:"toState"`
	NextState     *string `json:"nextState"`
	State         *string `json:"state"`
	Timestamp     *string `json:"timestamp"`
	At            *string `json:"at"`
	CreatedAt     *string `json:"createdAt"`
	Time          *string `json:"time"`
	Event         *string `json:"event"`
}

func firstPresent(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}

func (r rawEvent) fromState() *State {
	v := firstPresent(r.From, r.FromState, r.PrevState, r.PreviousState)
	if v == nil {
		return nil
	}
	s := State(strings.ToUpper(strings.TrimSpace(*v)))
	return &s
}

func (r rawEvent) toState() *State {
	v := firstPresent(r.To, r.ToState, r.NextState, r.State)
	if v == nil {
		return nil
	}
	s := State(strings.ToUpper(strings.TrimSpace(*v)))
	return &s
}

func (r rawEvent) timestamp() *time.Time {
	v := firstPresent(r.Timestamp, r.At, r.CreatedAt, r.Time)
	if v == nil {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, *v); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, *v); err == nil {
		return &t
	}
	return nil
}

// Replay reads the NDJSON log at logPath and validates every transition
// against the fixed alphabet and allowed-transitions table. Missing file
// or an empty file is invalid. Out-of-order timestamps
// produce warnings only.
func Replay(logPath string, now time.Time) (Report, error) {
	report := Report{
		GeneratedAt: now.UTC().Format(time.RFC3339Nano),
		LogFile:     logPath,
		Errors:      []string{},
		Warnings:    []string{},
		Transitions: []Transition{},
	}

	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			report.Valid = false
			report.Errors = append(report.Errors, fmt.Sprintf("log file not found: %s", logPath))
			return report, nil
		}
		return report, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var current *State
	var lastTS *time.Time
	lineNo := 0
	sawLine := false

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sawLine = true

		var ev rawEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: invalid json: %v", lineNo, err))
			continue
		}

		to := ev.toState()
		if to == nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: cannot determine to-state.", lineNo))
			continue
		}
		if !validStates[*to] {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: unknown state '%s'.", lineNo, *to))
			continue
		}

		from := ev.fromState()
		if from == nil {
			from = current
		}
		if from != nil && !validStates[*from] {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: unknown from-state '%s'.", lineNo, *from))
			continue
		}

		if ts := ev.timestamp(); ts != nil {
			if lastTS != nil && ts.Before(*lastTS) {
				report.Warnings = append(report.Warnings, fmt.Sprintf("line %d: timestamp is out-of-order.", lineNo))
			}
			lastTS = ts
		}

		if from == nil {
			current = to
			report.Transitions = append(report.Transitions, Transition{
				Line: lineNo, From: nil, To: *to, Allowed: true, Event: ev.Event,
			})
			continue
		}

		allowed := Allowed(*from, *to)
		if !allowed {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: invalid transition %s -> %s.", lineNo, *from, *to))
		}
		report.Transitions = append(report.Transitions, Transition{
			Line: lineNo, From: from, To: *to, Allowed: allowed, Event: ev.Event,
		})
		current = to
	}
	if err := sc.Err(); err != nil {
		return report, err
	}

	if !sawLine {
		report.Valid = false
		report.Errors = append(report.Errors, "state machine log has no events.")
		return report, nil
	}

	report.TransitionCount = len(report.Transitions)
	report.FinalState = current
	report.Valid = len(report.Errors) == 0
	return report, nil
}
