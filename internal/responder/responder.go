// Package responder implements the fallback chain: a user message is sent to
// an ordered list of candidate models, one at a time, and the first non-empty
// answer wins.
package responder

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/roelfdiedericks/relaybot/internal/llm"
	. "github.com/roelfdiedericks/relaybot/internal/logging"
	"github.com/roelfdiedericks/relaybot/internal/metrics"
)

// Outcome of a failed candidate attempt
type Outcome string

const (
	OutcomeEmpty Outcome = "empty"
	OutcomeError Outcome = "error"
)

// Message outcomes recorded under responder/outcome
const (
	ResultSucceeded = "succeeded"
	ResultExhausted = "exhausted"
	ResultCritical  = "critical"
)

const metricTopic = "responder"

// Options configures a Responder
type Options struct {
	Candidates       []string // priority order, first = primary
	SystemPrompt     string
	ExhaustedMessage string // reply when every candidate failed
	CriticalMessage  string // reply on unexpected failure
	Metrics          *metrics.Manager
}

// Responder runs the fallback chain. All fields are read-only after New, so
// one Responder serves concurrent messages without locking.
type Responder struct {
	completer    llm.Completer
	candidates   []string
	systemPrompt string
	exhausted    string
	critical     string
	metrics      *metrics.Manager
}

// New creates a Responder. The candidate slice is copied.
func New(completer llm.Completer, opts Options) *Responder {
	return &Responder{
		completer:    completer,
		candidates:   append([]string(nil), opts.Candidates...),
		systemPrompt: opts.SystemPrompt,
		exhausted:    opts.ExhaustedMessage,
		critical:     opts.CriticalMessage,
		metrics:      opts.Metrics,
	}
}

// Candidates returns a copy of the candidate list in priority order
func (r *Responder) Candidates() []string {
	return append([]string(nil), r.candidates...)
}

// Respond returns the reply for userText: the first non-empty candidate
// answer, or one of the fixed failure messages. Never returns an empty string
// as long as the failure messages are non-empty.
func (r *Responder) Respond(ctx context.Context, userText string) string {
	start := time.Now()
	defer func() {
		r.metrics.RecordDuration(metricTopic, "respond", time.Since(start))
	}()

	reply, err := r.Resolve(ctx, userText)
	if err == nil {
		r.metrics.RecordOutcome(metricTopic, "outcome", ResultSucceeded)
		return reply
	}

	var exhausted *ExhaustionError
	if errors.As(err, &exhausted) {
		L_error("responder: all models failed to provide a valid response",
			"req", RequestID(ctx),
			"candidates", len(exhausted.Failures),
		)
		r.metrics.RecordOutcome(metricTopic, "outcome", ResultExhausted)
		return r.exhausted
	}

	L_error("responder: critical error", "req", RequestID(ctx), "error", err)
	var unexpected *UnexpectedError
	if errors.As(err, &unexpected) && len(unexpected.Stack) > 0 {
		L_debug("responder: panic stack", "req", RequestID(ctx), "stack", string(unexpected.Stack))
	}
	r.metrics.RecordOutcome(metricTopic, "outcome", ResultCritical)
	return r.critical
}

// Resolve runs the chain and reports how it ended.
// Returns the reply, an *ExhaustionError when no candidate produced text, or
// an *UnexpectedError for faults outside per-candidate handling.
func (r *Responder) Resolve(ctx context.Context, userText string) (reply string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reply = ""
			err = &UnexpectedError{Cause: fmt.Errorf("panic: %v", rec), Stack: debug.Stack()}
		}
	}()

	if r.completer == nil {
		return "", &UnexpectedError{Cause: errors.New("no completer configured")}
	}

	failures := make([]*CandidateError, 0, len(r.candidates))
	for i, model := range r.candidates {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &UnexpectedError{Cause: fmt.Errorf("stopped before candidate %d: %w", i+1, ctxErr)}
		}

		L_info("responder: attempting model",
			"req", RequestID(ctx),
			"model", model,
			"position", fmt.Sprintf("%d/%d", i+1, len(r.candidates)),
		)

		text, cerr := r.attempt(ctx, model, userText)
		if cerr == nil {
			return text, nil
		}
		failures = append(failures, cerr)
	}

	return "", &ExhaustionError{Failures: failures}
}

// attempt tries one candidate and classifies the result. Any failure of the
// call itself, including a panic inside the completer, becomes a CandidateError.
func (r *Responder) attempt(ctx context.Context, model, userText string) (text string, cerr *CandidateError) {
	start := time.Now()
	topic := candidateTopic(model)

	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			cerr = &CandidateError{
				Model: model,
				Kind:  OutcomeError,
				Type:  llm.ErrorTypeUnknown,
				Err:   fmt.Errorf("panic in completer: %v", rec),
			}
		}
		elapsed := time.Since(start)
		r.metrics.RecordDuration(topic, "attempt", elapsed)
		r.record(ctx, model, cerr, elapsed)
	}()

	text, err := r.completer.Complete(ctx, llm.CompletionRequest{
		Model:        model,
		SystemPrompt: r.systemPrompt,
		UserText:     userText,
	})
	if err != nil {
		return "", &CandidateError{Model: model, Kind: OutcomeError, Type: llm.ClassifyError(err), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &CandidateError{Model: model, Kind: OutcomeEmpty, Err: ErrEmptyResponse}
	}
	return text, nil
}

// record logs and meters the outcome of one attempt. Empty answers are
// failures with reason "empty", errors carry their classified type.
func (r *Responder) record(ctx context.Context, model string, cerr *CandidateError, elapsed time.Duration) {
	topic := candidateTopic(model)
	reqID := RequestID(ctx)
	elapsed = elapsed.Round(time.Millisecond)

	switch {
	case cerr == nil:
		L_info("responder: got response", "req", reqID, "model", model, "elapsed", elapsed)
		r.metrics.RecordSuccess(topic, "attempts")
	case cerr.Kind == OutcomeEmpty:
		L_warn("responder: model returned an empty response, trying next", "req", reqID, "model", model, "elapsed", elapsed)
		r.metrics.RecordFailure(topic, "attempts", string(OutcomeEmpty))
	default:
		L_error("responder: model failed, trying next",
			"req", reqID,
			"model", model,
			"type", cerr.Type,
			"elapsed", elapsed,
			"error", cerr.Err,
		)
		r.metrics.RecordFailure(topic, "attempts", string(cerr.Type))
	}
}

func candidateTopic(model string) string {
	return metricTopic + "/candidate/" + model
}

// Summary renders the candidate order with per-candidate attempt counts,
// failure reasons and latency, then the overall message outcomes, as plain text.
func (r *Responder) Summary() string {
	var b strings.Builder
	b.WriteString("Models (in the order they are tried):\n")
	for i, model := range r.candidates {
		topic := candidateTopic(model)
		attempts, _ := r.metrics.SuccessFail(topic, "attempts")
		empty := attempts.FailureReasons[string(OutcomeEmpty)]

		fmt.Fprintf(&b, "%d. %s: %d ok, %d empty, %d failed", i+1, model, attempts.Success, empty, attempts.Failures-empty)
		if reasons := errorReasons(attempts.FailureReasons); reasons != "" {
			fmt.Fprintf(&b, " (%s)", reasons)
		}
		if timing, ok := r.metrics.Timing(topic, "attempt"); ok {
			fmt.Fprintf(&b, ", %s", timing)
		}
		b.WriteString("\n")
	}

	var succeeded, exhausted, critical int64
	if snap, found := r.metrics.Outcome(metricTopic, "outcome"); found {
		succeeded = snap.Outcomes[ResultSucceeded]
		exhausted = snap.Outcomes[ResultExhausted]
		critical = snap.Outcomes[ResultCritical]
	}
	fmt.Fprintf(&b, "\nMessages: %d answered, %d exhausted, %d critical", succeeded, exhausted, critical)
	if timing, ok := r.metrics.Timing(metricTopic, "respond"); ok {
		fmt.Fprintf(&b, ", %s", timing)
	}
	return b.String()
}

// errorReasons formats error reasons as "rate_limit 2, timeout 1", sorted by name
func errorReasons(reasons map[string]int64) string {
	names := make([]string, 0, len(reasons))
	for name := range reasons {
		if name != string(OutcomeEmpty) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %d", name, reasons[name])
	}
	return strings.Join(parts, ", ")
}
