// Package verify submits implementation addresses to a source-verification
// service and reports one outcome per address.
//
// Verification is best effort: a failure for one address never affects
// another and never fails the run. Submissions run in parallel with a
// bounded number of workers.
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"github.com/kiko1842/vaultwire/internal/model"
	"golang.org/x/sync/errgroup"
)

var ErrVerificationFailed = errors.New("verification failed")

// Target is one address to verify.
type Target struct {
	Name     string
	Contract string
	Address  common.Address
}

// Verifier verifies the source of a single deployed contract.
type Verifier interface {
	Verify(ctx context.Context, target Target) error
}

// Reporter fans verification out over a bounded worker pool.
type Reporter struct {
	verifier    Verifier
	concurrency int
}

// NewReporter creates a reporter. A nil verifier marks every target as not
// attempted.
func NewReporter(verifier Verifier, concurrency int) *Reporter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reporter{verifier: verifier, concurrency: concurrency}
}

// Verify returns one outcome per target, in target order.
func (r *Reporter) Verify(ctx context.Context, targets []Target) []model.VerificationOutcome {
	logger := ctxlog.FromContext(ctx)
	outcomes := make([]model.VerificationOutcome, len(targets))
	for i, t := range targets {
		outcomes[i] = model.VerificationOutcome{
			Name:     t.Name,
			Contract: t.Contract,
			Address:  t.Address,
			Status:   model.VerificationNotAttempted,
		}
	}
	if r.verifier == nil {
		logger.Warn("No verification service configured, skipping source verification.", "targets", len(targets))
		return outcomes
	}

	logger.Info("🚀 Starting source verification...", "targets", len(targets), "concurrency", r.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range targets {
		g.Go(func() error {
			err := r.verifyOne(gctx, targets[i])
			if err != nil {
				outcomes[i].Status = model.VerificationFailed
				outcomes[i].Detail = err.Error()
				logger.Warn("Verification failed.", "name", targets[i].Name, "address", targets[i].Address.Hex(), "error", err)
				return nil
			}
			outcomes[i].Status = model.VerificationVerified
			logger.Info("✅ Verified.", "name", targets[i].Name, "address", targets[i].Address.Hex())
			return nil
		})
	}
	_ = g.Wait()
	logger.Info("🏁 Source verification finished.")
	return outcomes
}

// verifyOne isolates a single submission, including panics in the
// verifier.
func (r *Reporter) verifyOne(ctx context.Context, t Target) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: verifier panicked: %v", ErrVerificationFailed, p)
		}
	}()
	if err := r.verifier.Verify(ctx, t); err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	return nil
}
