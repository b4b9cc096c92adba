// Package purchase runs the buy-and-auto-stake flow.
package purchase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/allowance"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/pkg/types"
)

// PackageSource resolves a package id against the loaded catalog
type PackageSource interface {
	Get(id uint64) (*types.Package, bool)
}

// Reloader rebuilds the portfolio after a purchase
type Reloader interface {
	Load(ctx context.Context, sess *session.Session) (*types.Portfolio, error)
}

// Result describes a confirmed purchase
type Result struct {
	PackageID uint64
	Referrer  common.Address
	Receipt   *ethtypes.Receipt
	Allowance *allowance.Evaluation
	Portfolio *types.Portfolio
}

// Flow checks purchase preconditions and submits buyPackage
type Flow struct {
	catalog   PackageSource
	gate      *allowance.Gate
	portfolio Reloader
}

// New creates a purchase flow
func New(catalog PackageSource, gate *allowance.Gate, portfolio Reloader) *Flow {
	return &Flow{catalog: catalog, gate: gate, portfolio: portfolio}
}

// EffectiveReferrer returns ref unless it is the buyer, in which case the
// purchase proceeds without a referrer
func EffectiveReferrer(buyer, ref common.Address) common.Address {
	if ref == buyer {
		return common.Address{}
	}
	return ref
}

// Buy purchases packageID. Preconditions are checked in order and the first
// failure is returned without submitting anything. After confirmation the
// allowance is re-evaluated and the portfolio reloaded; a failure there is
// returned alongside the result since the purchase itself went through.
func (f *Flow) Buy(ctx context.Context, sess *session.Session, packageID uint64, ref common.Address) (*Result, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}

	pkg, ok := f.catalog.Get(packageID)
	if !ok {
		return nil, fmt.Errorf("%w: package %d", types.ErrInvalidPackageSelection, packageID)
	}
	if !pkg.Active {
		return nil, fmt.Errorf("package %d: %w", packageID, types.ErrPackageInactive)
	}

	effective := EffectiveReferrer(sess.Account, ref)
	if effective != ref {
		logging.Debug("ignoring self-referral", logging.Account(sess.Account))
	}

	ev, err := f.gate.Evaluate(ctx, sess, pkg)
	if err != nil {
		return nil, err
	}
	if !ev.Sufficient {
		return nil, types.ErrInsufficientAllowance
	}

	receipt, err := sess.Contract.BuyPackageAndWait(ctx, pkg.ID, effective)
	logging.Audit(logging.AuditEvent{
		Operation: "buy_package",
		Actor:     sess.Account,
		Target:    "package " + strconv.FormatUint(pkg.ID, 10),
		Details:   "ref=" + effective.Hex(),
	}, receipt, err)
	if err != nil {
		return nil, fmt.Errorf("purchase failed: %w", err)
	}
	logging.Info("package purchased", logging.Account(sess.Account), logging.PackageID(pkg.ID))

	res := &Result{PackageID: pkg.ID, Referrer: effective, Receipt: receipt}
	if res.Allowance, err = f.gate.Evaluate(ctx, sess, pkg); err != nil {
		return res, fmt.Errorf("purchase confirmed, allowance refresh failed: %w", err)
	}
	if res.Portfolio, err = f.portfolio.Load(ctx, sess); err != nil {
		return res, fmt.Errorf("purchase confirmed, portfolio refresh failed: %w", err)
	}
	return res, nil
}
