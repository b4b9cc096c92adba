package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/pkg/types"
)

// ClaimOne claims a single position after a fresh canClaim check, then
// reloads. A position the snapshot already shows as claimed is not
// submitted.
func (t *Tracker) ClaimOne(ctx context.Context, sess *session.Session, index uint64) (*types.Portfolio, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}
	if t.knownClaimed(sess, index) {
		return nil, fmt.Errorf("stake #%d: %w", index+1, types.ErrAlreadyClaimed)
	}

	can, err := sess.Contract.CanClaim(ctx, sess.Account, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read claim status %d: %w", index, err)
	}
	if !can {
		return nil, fmt.Errorf("stake #%d: %w", index+1, types.ErrNotYetClaimable)
	}

	if err := submitClaim(ctx, sess, index); err != nil {
		return nil, err
	}
	return t.Load(ctx, sess)
}

// ClaimAll claims every position claimable at its own re-check, in
// ascending index order and one confirmation at a time. A failed claim is
// recorded and the loop continues. The returned error joins every per-index
// failure, or is ErrNothingToClaim when no index was claimable.
func (t *Tracker) ClaimAll(ctx context.Context, sess *session.Session) (*types.ClaimReport, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}

	count, err := sess.Contract.StakeCount(ctx, sess.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to read stake count: %w", err)
	}
	if err := types.CheckCount("stake count", count); err != nil {
		return nil, err
	}

	report := &types.ClaimReport{Failed: make(map[uint64]error)}
	var errs []error
	for i := uint64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if t.knownClaimed(sess, i) {
			continue
		}

		can, err := sess.Contract.CanClaim(ctx, sess.Account, i)
		if err != nil {
			err = fmt.Errorf("stake #%d: %w", i+1, err)
			report.Failed[i] = err
			errs = append(errs, err)
			continue
		}
		if !can {
			report.Skipped = append(report.Skipped, i)
			continue
		}

		report.Attempted = append(report.Attempted, i)
		if err := submitClaim(ctx, sess, i); err != nil {
			err = fmt.Errorf("stake #%d: %w", i+1, err)
			report.Failed[i] = err
			errs = append(errs, err)
			continue
		}
		report.Succeeded = append(report.Succeeded, i)
	}

	// One reload whatever the loop found, so the rendered claim flags match
	// the chain even when nothing was claimable
	if ctx.Err() == nil {
		if _, err := t.Load(ctx, sess); err != nil && !errors.Is(err, types.ErrLoadSuperseded) {
			errs = append(errs, fmt.Errorf("failed to reload portfolio: %w", err))
		}
	}

	if len(report.Attempted) == 0 && len(errs) == 0 {
		return report, types.ErrNothingToClaim
	}
	return report, errors.Join(errs...)
}

func submitClaim(ctx context.Context, sess *session.Session, index uint64) error {
	receipt, err := sess.Contract.ClaimAndWait(ctx, index)
	logging.Audit(logging.AuditEvent{
		Operation: "claim",
		Actor:     sess.Account,
		Target:    "stake " + strconv.FormatUint(index, 10),
	}, receipt, err)
	if err != nil {
		return fmt.Errorf("claim failed: %w", err)
	}
	logging.Info("stake claimed", logging.Account(sess.Account), logging.StakeIndex(index))
	return nil
}
