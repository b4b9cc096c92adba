package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/pkg/types"
)

// Status is the single message line a flow leaves behind
type Status struct {
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
}

// benign errors are reported as information rather than failure
func benign(err error) bool {
	return errors.Is(err, types.ErrAlreadyApproved)
}

// Describe maps an error to the message shown to the user. chainName names
// the required network in network errors.
func Describe(err error, chainName string) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, types.ErrNoWalletProvider):
		return "No wallet found. Create or import one with 'autostake wallet create' or 'autostake wallet import'."
	case errors.Is(err, types.ErrUserRejected):
		return "Request rejected in the wallet."
	case errors.Is(err, types.ErrNetworkSwitchFailed):
		return fmt.Sprintf("Could not switch the wallet to %s. Switch networks manually and connect again.", chainName)
	case errors.Is(err, types.ErrWrongNetwork):
		return fmt.Sprintf("Wallet is on the wrong network. Please use %s.", chainName)
	case errors.Is(err, session.ErrConnectInterrupted):
		return "The wallet changed while connecting. Connect again."
	case errors.Is(err, types.ErrNoSession):
		return "Connect a wallet first."
	case errors.Is(err, types.ErrCatalogEmpty):
		return "No packages are available."
	case errors.Is(err, types.ErrInvalidPackageSelection):
		return "Select a valid package."
	case errors.Is(err, types.ErrPackageInactive):
		return "This package is not active."
	case errors.Is(err, types.ErrInsufficientAllowance):
		return "USDT allowance is too low. Approve USDT first."
	case errors.Is(err, types.ErrAlreadyApproved):
		return "USDT is already approved."
	case errors.Is(err, types.ErrNotYetClaimable):
		return "This stake cannot be claimed yet."
	case errors.Is(err, types.ErrAlreadyClaimed):
		return "This stake was already claimed."
	case errors.Is(err, types.ErrNothingToClaim):
		return "Nothing is claimable right now."
	case errors.Is(err, types.ErrNotOwner):
		return "The connected wallet is not the contract owner."
	case errors.Is(err, types.ErrTransactionReverted):
		if reason := types.RevertReason(err); reason != "" {
			return "Transaction reverted: " + reason
		}
		return "Transaction reverted."
	case errors.Is(err, types.ErrLoadSuperseded):
		return "The wallet session changed while loading. Refresh again."
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for the network."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	}
	return err.Error()
}
