package types

import (
	"errors"
	"fmt"
)

// Session and network errors
var (
	ErrNoWalletProvider    = errors.New("no wallet provider available")
	ErrUserRejected        = errors.New("request rejected by user")
	ErrWrongNetwork        = errors.New("wallet is on the wrong network")
	ErrNetworkSwitchFailed = errors.New("network switch failed")
	ErrNoSession           = errors.New("wallet not connected")
)

// Catalog and purchase errors
var (
	ErrCatalogEmpty            = errors.New("no packages available")
	ErrInvalidPackageSelection = errors.New("invalid package selection")
	ErrPackageInactive         = errors.New("package is not active")
	ErrInsufficientAllowance   = errors.New("insufficient USDT allowance")
	ErrAlreadyApproved         = errors.New("allowance already sufficient")
	ErrSelfReferralRejected    = errors.New("cannot refer yourself")
)

// Portfolio errors
var (
	ErrNotYetClaimable = errors.New("stake is not claimable yet")
	ErrAlreadyClaimed  = errors.New("stake already claimed")
	ErrNothingToClaim  = errors.New("nothing to claim")
)

// Contract and owner errors
var (
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrNotOwner            = errors.New("connected account is not the contract owner")
	ErrInvalidInput        = errors.New("invalid input")
	ErrCountOutOfRange     = errors.New("contract count out of range")
)

// ErrLoadSuperseded is returned by a read whose result was discarded because
// the session it belonged to was invalidated while it ran
var ErrLoadSuperseded = errors.New("load superseded by a session change")

// RevertError carries the revert reason of a rejected contract call
type RevertError struct {
	Method string
	Reason string
	TxHash string
	Err    error
}

func (e *RevertError) Error() string {
	msg := "transaction reverted"
	if e.Method != "" {
		msg = e.Method + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.TxHash != "" {
		msg += fmt.Sprintf(" (tx %s)", e.TxHash)
	}
	return msg
}

// Is makes errors.Is(err, ErrTransactionReverted) hold for every revert
func (e *RevertError) Is(target error) bool {
	return target == ErrTransactionReverted
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// RevertReason extracts the decoded reason from err, or "" if there is none
func RevertReason(err error) string {
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev.Reason
	}
	return ""
}

// CheckCount rejects a contract-reported list length the client will not
// iterate, before anything is allocated for it
func CheckCount(what string, n uint64) error {
	if n > MaxListLength {
		return fmt.Errorf("%w: %s %d exceeds %d", ErrCountOutOfRange, what, n, MaxListLength)
	}
	return nil
}
