// Package wiring applies ordered, state-changing calls that connect
// deployed components to each other and to pre-existing contracts.
//
// Steps run strictly one after another; each is confirmed before the next
// is submitted. The first failure stops the batch and nothing already
// applied is undone, so every step must be safe to apply again (setter
// semantics). Steps that need an authority the run does not hold are not
// submitted at all and come back as deferred.
package wiring

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiko1842/vaultwire/internal/chain"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
)

var ErrWiringStepFailed = errors.New("wiring step failed")

// Step is one call in a wiring batch.
type Step struct {
	Name      string
	Call      chain.Call
	Authority string
}

// Outcome says what happened to a step.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeDeferred Outcome = "deferred"
)

// StepResult records the outcome of one step. Index is the step's position
// in the batch.
type StepResult struct {
	Index   int
	Step    Step
	Outcome Outcome
	Receipt chain.Receipt
}

// StepFailedError identifies the first step of a batch that failed.
type StepFailedError struct {
	Index int
	Step  string
	Cause error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("%s at index %d (%s): %v", ErrWiringStepFailed, e.Index, e.Step, e.Cause)
}

func (e *StepFailedError) Unwrap() []error { return []error{ErrWiringStepFailed, e.Cause} }

// Authorizer decides whether the run may act as an authority.
type Authorizer interface {
	Holds(authority string) bool
}

// Executor applies wiring batches.
type Executor struct {
	client chain.Client
	auth   Authorizer
}

// New creates an executor.
func New(client chain.Client, auth Authorizer) *Executor {
	return &Executor{client: client, auth: auth}
}

// Apply runs the steps in order. On failure it returns the results of the
// steps handled so far together with a *StepFailedError.
func (e *Executor) Apply(ctx context.Context, steps []Step) ([]StepResult, error) {
	logger := ctxlog.FromContext(ctx)
	results := make([]StepResult, 0, len(steps))

	for i, step := range steps {
		stepLogger := logger.With("index", i, "step", step.Name, "target", step.Call.Target.Hex(), "method", step.Call.Method)

		if !e.auth.Holds(step.Authority) {
			stepLogger.Warn("⏸️ Step deferred to authority.", "authority", step.Authority)
			results = append(results, StepResult{Index: i, Step: step, Outcome: OutcomeDeferred})
			continue
		}

		stepLogger.Info("▶️ Applying wiring step.")
		receipt, err := e.client.Send(ctx, step.Call)
		if err != nil {
			stepLogger.Error("❌ Wiring step failed.", "error", err)
			return results, &StepFailedError{Index: i, Step: step.Name, Cause: err}
		}
		stepLogger.Info("✅ Wiring step confirmed.", "tx", receipt.TxHash.Hex(), "block", receipt.BlockNumber)
		results = append(results, StepResult{Index: i, Step: step, Outcome: OutcomeApplied, Receipt: receipt})
	}
	return results, nil
}
