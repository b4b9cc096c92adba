// Package wallet supplies the account, network negotiation and signing
// capabilities the session layer needs. The keystore-backed provider keeps
// encrypted keys on disk and asks the user for consent through an Approver.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mtecstake/autostake/internal/payment"
	"github.com/mtecstake/autostake/pkg/types"
)

// CodeUnrecognizedChain is the EIP-3085 error code for a chain the wallet does not know
const CodeUnrecognizedChain = 4902

// ErrUnrecognizedChain is matched by a ProviderError with CodeUnrecognizedChain
var ErrUnrecognizedChain = errors.New("unrecognized chain")

// ProviderError is an error reported by the wallet with a numeric code
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Is makes errors.Is(err, ErrUnrecognizedChain) hold for code 4902
func (e *ProviderError) Is(target error) bool {
	return target == ErrUnrecognizedChain && e.Code == CodeUnrecognizedChain
}

// EventKind identifies a provider notification
type EventKind string

const (
	AccountsChanged EventKind = "accountsChanged"
	ChainChanged    EventKind = "chainChanged"
)

// Event is a notification pushed by the provider
type Event struct {
	Kind     EventKind
	Accounts []common.Address // AccountsChanged
	ChainID  uint64           // ChainChanged
}

// Provider is the wallet surface the session layer drives
type Provider interface {
	// RequestAccounts asks the user to expose accounts. A decline returns types.ErrUserRejected.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// ChainID returns the chain the wallet is currently on
	ChainID(ctx context.Context) (uint64, error)
	// SwitchChain moves the wallet to chainIDHex. Unknown chains return a ProviderError with code 4902.
	SwitchChain(ctx context.Context, chainIDHex string) error
	// AddChain registers a network with the wallet
	AddChain(ctx context.Context, desc types.NetworkDescriptor) error
	// Events delivers AccountsChanged and ChainChanged notifications
	Events() <-chan Event
	// Signer returns a transaction signer for account
	Signer(account common.Address) (payment.TxSigner, error)
	// ActiveChain returns the current chain without a round trip
	ActiveChain() uint64
}

// ApprovalKind names what the user is asked to approve
type ApprovalKind string

const (
	ApproveConnect ApprovalKind = "connect"
	ApproveSwitch  ApprovalKind = "switch_chain"
	ApproveAdd     ApprovalKind = "add_chain"
	ApproveSign    ApprovalKind = "sign"
)

// ApprovalRequest describes one consent prompt
type ApprovalRequest struct {
	Kind    ApprovalKind
	Account common.Address
	ChainID uint64
	Summary string
}

// Approver asks the human for consent. Returning false means declined.
type Approver func(ctx context.Context, req ApprovalRequest) (bool, error)

// AutoApprove consents to everything, for --yes and tests
func AutoApprove(context.Context, ApprovalRequest) (bool, error) {
	return true, nil
}

func ask(ctx context.Context, approve Approver, req ApprovalRequest) error {
	if approve == nil {
		return nil
	}
	ok, err := approve(ctx, req)
	if err != nil {
		return fmt.Errorf("approval prompt: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", req.Kind, types.ErrUserRejected)
	}
	return nil
}

func parseChainHex(s string) (uint64, error) {
	id, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, fmt.Errorf("%w: chain id %q", types.ErrInvalidInput, s)
	}
	return id, nil
}
