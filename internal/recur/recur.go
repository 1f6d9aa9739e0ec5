// Package recur wraps RFC-5545 recurrence rule strings (FREQ=...;INTERVAL=...)
// into bounded occurrence generators, plus a per-parent evaluator cache.
package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// ParseError reports a syntactically invalid recurrence rule. Creation paths
// treat it as a hard validation failure; read paths treat it as a recoverable
// skip condition.
type ParseError struct {
	Rule string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recur: invalid rule %q: %v", e.Rule, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Validate checks rule syntax without building an evaluator.
func Validate(rule string) error {
	if _, err := rrule.StrToROption(rule); err != nil {
		return &ParseError{Rule: rule, Err: err}
	}
	return nil
}

// Evaluator produces occurrence timestamps for one rule anchored at a fixed
// start. It is restartable: Between can be called any number of times with
// different bounds and always yields the same timestamps for the same bounds.
type Evaluator struct {
	rule   string
	anchor time.Time
	r      *rrule.RRule
}

// New builds an Evaluator for rule anchored at anchor (the parent's start
// time, which counts as the first occurrence per standard semantics).
func New(rule string, anchor time.Time) (*Evaluator, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, &ParseError{Rule: rule, Err: err}
	}
	r.DTStart(anchor)
	return &Evaluator{rule: rule, anchor: anchor, r: r}, nil
}

// Between returns all occurrences within [start, end], inclusive of both
// bounds, in ascending order.
func (ev *Evaluator) Between(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	return ev.r.Between(start, end, true)
}

// Anchor returns the DTSTART the evaluator was built with.
func (ev *Evaluator) Anchor() time.Time { return ev.anchor }
