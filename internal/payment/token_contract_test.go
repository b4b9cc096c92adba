package payment

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	autotypes "github.com/mtecstake/autostake/pkg/types"
)

var (
	testUSDT     = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	testMTEC     = common.HexToAddress("0x7a4E5E1b8F4F7E1b4B1aD2b3c4D5e6F708192a3B")
	testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOwner    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testUser     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testReferrer = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func TestTokenContract_MockApprove(t *testing.T) {
	tc := NewMockTokenContract(testUSDT, "USDT")
	if !tc.IsMockMode() {
		t.Fatal("expected mock mode")
	}
	if tc.Address() != testUSDT || tc.Symbol() != "USDT" {
		t.Fatal("address or symbol not kept")
	}
	tc.SetMockSender(testUser)
	ctx := context.Background()

	allowance, err := tc.Allowance(ctx, testUser, testContract)
	if err != nil {
		t.Fatal(err)
	}
	if allowance.Sign() != 0 {
		t.Fatalf("expected zero allowance, got %s", allowance)
	}

	receipt, err := tc.ApproveAndWait(ctx, testContract, big.NewInt(500))
	if err != nil {
		t.Fatalf("ApproveAndWait() error = %v", err)
	}
	if receipt != nil {
		t.Error("mock mode returns no receipt")
	}

	allowance, _ = tc.Allowance(ctx, testUser, testContract)
	if allowance.Int64() != 500 {
		t.Errorf("allowance = %s, want 500", allowance)
	}

	// Approve sets, it does not add
	_, _ = tc.Approve(ctx, testContract, big.NewInt(7))
	allowance, _ = tc.Allowance(ctx, testUser, testContract)
	if allowance.Int64() != 7 {
		t.Errorf("allowance = %s, want 7", allowance)
	}
}

func TestTokenContract_MockPull(t *testing.T) {
	tc := NewMockTokenContract(testUSDT, "USDT")
	tc.SetMockSender(testUser)
	tc.SetMockBalance(testUser, big.NewInt(100))
	ctx := context.Background()

	err := tc.mockPull(testUser, testContract, testContract, big.NewInt(50))
	if !errors.Is(err, autotypes.ErrTransactionReverted) {
		t.Fatalf("expected allowance revert, got %v", err)
	}

	_, _ = tc.Approve(ctx, testContract, big.NewInt(1000))
	if err := tc.mockPull(testUser, testContract, testContract, big.NewInt(60)); err != nil {
		t.Fatalf("mockPull() error = %v", err)
	}

	userBal, _ := tc.BalanceOf(ctx, testUser)
	contractBal, _ := tc.BalanceOf(ctx, testContract)
	allowance, _ := tc.Allowance(ctx, testUser, testContract)
	if userBal.Int64() != 40 || contractBal.Int64() != 60 {
		t.Errorf("balances user=%s contract=%s", userBal, contractBal)
	}
	if allowance.Int64() != 940 {
		t.Errorf("allowance = %s, want 940", allowance)
	}

	err = tc.mockPull(testUser, testContract, testContract, big.NewInt(41))
	if autotypes.RevertReason(err) != "ERC20: transfer amount exceeds balance" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestNewTokenContract_RequiresConnection(t *testing.T) {
	if _, err := NewTokenContract(nil, testUSDT, "USDT"); err == nil {
		t.Error("expected error for nil base client")
	}
	bc, _ := NewBaseClient(nil, nil)
	if _, err := NewTokenContract(bc, testUSDT, "USDT"); err == nil {
		t.Error("expected error for disconnected base client")
	}
}
