package responder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roelfdiedericks/relaybot/internal/llm"
)

// ErrEmptyResponse marks a candidate that answered with blank text.
var ErrEmptyResponse = errors.New("empty response")

// CandidateError is a non-fatal failure of a single candidate. The chain
// continues with the next candidate.
type CandidateError struct {
	Model string
	Kind  Outcome       // OutcomeError or OutcomeEmpty
	Type  llm.ErrorType // classification of Err (empty responses: "")
	Err   error
}

func (e *CandidateError) Error() string {
	if e.Kind == OutcomeEmpty {
		return fmt.Sprintf("%s: %v", e.Model, ErrEmptyResponse)
	}
	return fmt.Sprintf("%s: %s: %v", e.Model, e.Type, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// ExhaustionError means every candidate was tried and none produced usable text.
type ExhaustionError struct {
	Failures []*CandidateError // in the order the candidates were tried
}

func (e *ExhaustionError) Error() string {
	if len(e.Failures) == 0 {
		return "no candidates configured"
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("all %d candidates failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual candidate failures to errors.Is/As
func (e *ExhaustionError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// UnexpectedError is a fault outside per-candidate handling: a panic in the
// loop itself, a missing completer, or a context cancelled before a candidate
// could be tried. Never produced by a provider failure.
type UnexpectedError struct {
	Cause error
	Stack []byte // set when recovered from a panic
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected failure: %v", e.Cause)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Cause
}
