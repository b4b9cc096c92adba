package payment

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	autotypes "github.com/mtecstake/autostake/pkg/types"
)

var ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), ether)
}

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

type mockSystem struct {
	usdt     *TokenContract
	mtec     *TokenContract
	contract *AutoStakeContract
	clock    *mockClock
}

func newMockSystem(t *testing.T) *mockSystem {
	t.Helper()
	s := &mockSystem{
		usdt:  NewMockTokenContract(testUSDT, "USDT"),
		mtec:  NewMockTokenContract(testMTEC, "MTEC"),
		clock: &mockClock{now: time.Unix(1700000000, 0)},
	}
	s.contract = NewMockAutoStakeContract(testContract, testOwner, s.usdt, s.mtec)
	s.contract.SetMockClock(s.clock.Now)
	s.contract.SetMockPackage(autotypes.Package{ID: 0, PriceIn: tokens(100), RewardOut: tokens(1000), Active: true})
	s.contract.SetMockPackage(autotypes.Package{ID: 1, PriceIn: tokens(500), RewardOut: tokens(5500), Active: false})
	s.usdt.SetMockBalance(testUser, tokens(1000))
	s.mtec.SetMockBalance(testContract, tokens(1000000))
	s.contract.SetMockSender(testUser)
	return s
}

func (s *mockSystem) approve(t *testing.T, amount *big.Int) {
	t.Helper()
	if _, err := s.usdt.ApproveAndWait(context.Background(), testContract, amount); err != nil {
		t.Fatal(err)
	}
}

func TestAutoStake_MockCatalog(t *testing.T) {
	s := newMockSystem(t)
	ctx := context.Background()

	n, err := s.contract.PackageCount(ctx)
	if err != nil || n != 2 {
		t.Fatalf("PackageCount() = %d, %v", n, err)
	}
	pkg, err := s.contract.GetPackage(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Active || pkg.PriceIn.Cmp(tokens(500)) != 0 {
		t.Errorf("unexpected package %+v", pkg)
	}

	// Returned packages are copies
	pkg.PriceIn.SetInt64(1)
	again, _ := s.contract.GetPackage(ctx, 1)
	if again.PriceIn.Cmp(tokens(500)) != 0 {
		t.Error("GetPackage leaked internal state")
	}
}

func TestAutoStake_MockBuy(t *testing.T) {
	s := newMockSystem(t)
	ctx := context.Background()

	_, err := s.contract.BuyPackageAndWait(ctx, 0, common.Address{})
	if !errors.Is(err, autotypes.ErrTransactionReverted) {
		t.Fatalf("buy without allowance should revert, got %v", err)
	}

	s.approve(t, tokens(100))
	if _, err := s.contract.BuyPackageAndWait(ctx, 0, common.Address{}); err != nil {
		t.Fatalf("BuyPackageAndWait() error = %v", err)
	}

	count, _ := s.contract.StakeCount(ctx, testUser)
	if count != 1 {
		t.Fatalf("StakeCount() = %d, want 1", count)
	}
	pos, err := s.contract.GetStake(ctx, testUser, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pos.Principal.Cmp(tokens(1000)) != 0 || pos.Claimed || pos.APYBps != 1200 {
		t.Errorf("unexpected position %+v", pos)
	}
	if !pos.StartTime.Equal(s.clock.now) {
		t.Errorf("StartTime = %v, want %v", pos.StartTime, s.clock.now)
	}

	bal, _ := s.usdt.BalanceOf(ctx, testUser)
	if bal.Cmp(tokens(900)) != 0 {
		t.Errorf("user USDT = %s, want 900", bal)
	}

	_, err = s.contract.BuyPackage(ctx, 1, common.Address{})
	if autotypes.RevertReason(err) != reasonInactivePackage {
		t.Errorf("inactive package should revert, got %v", err)
	}

	s.contract.SetMockParams(autotypes.ContractParams{APYBps: 1200, LockSeconds: 60, Enabled: false})
	_, err = s.contract.BuyPackage(ctx, 0, common.Address{})
	if autotypes.RevertReason(err) != reasonDisabled {
		t.Errorf("disabled contract should revert, got %v", err)
	}
}

func TestAutoStake_MockReferral(t *testing.T) {
	s := newMockSystem(t)
	ctx := context.Background()
	s.contract.SetMockRates(autotypes.ReferralRates{Level1: 500, Level2: 300, Level3: 200})
	s.approve(t, tokens(1000))

	// Self-referral never binds
	if _, err := s.contract.BuyPackageAndWait(ctx, 0, testUser); err != nil {
		t.Fatal(err)
	}
	refs, _ := s.contract.GetReferrers(ctx, testUser)
	if refs.Bound() {
		t.Fatal("self-referral must not bind")
	}

	if _, err := s.contract.BuyPackageAndWait(ctx, 0, testReferrer); err != nil {
		t.Fatal(err)
	}
	refs, _ = s.contract.GetReferrers(ctx, testUser)
	if refs.Level1 != testReferrer {
		t.Fatalf("Level1 = %s, want %s", refs.Level1.Hex(), testReferrer.Hex())
	}

	paid, _ := s.usdt.BalanceOf(ctx, testReferrer)
	if paid.Cmp(tokens(5)) != 0 {
		t.Errorf("referrer paid %s, want 5 USDT", paid)
	}
	pos, _ := s.contract.GetStake(ctx, testUser, 1)
	if pos.Referrer1 != testReferrer || pos.USDTNet.Cmp(tokens(95)) != 0 {
		t.Errorf("unexpected position %+v", pos)
	}

	// First binding wins
	if _, err := s.contract.BuyPackageAndWait(ctx, 0, testOwner); err != nil {
		t.Fatal(err)
	}
	refs, _ = s.contract.GetReferrers(ctx, testUser)
	if refs.Level1 != testReferrer {
		t.Error("referrer must not be rebound")
	}
}

func TestAutoStake_MockClaim(t *testing.T) {
	s := newMockSystem(t)
	ctx := context.Background()
	s.approve(t, tokens(100))
	if _, err := s.contract.BuyPackageAndWait(ctx, 0, common.Address{}); err != nil {
		t.Fatal(err)
	}

	ok, err := s.contract.CanClaim(ctx, testUser, 0)
	if err != nil || ok {
		t.Fatalf("CanClaim() = %v, %v before unlock", ok, err)
	}
	_, err = s.contract.ClaimAndWait(ctx, 0)
	if autotypes.RevertReason(err) != reasonLocked {
		t.Fatalf("expected locked revert, got %v", err)
	}

	// Past the lock the reward is capped at the lock duration
	s.clock.now = s.clock.now.Add(60 * 24 * time.Hour)
	reward, err := s.contract.PendingReward(ctx, testUser, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := new(big.Int).Mul(tokens(1000), big.NewInt(1200))
	want.Mul(want, big.NewInt(30*24*60*60))
	want.Div(want, big.NewInt(autotypes.BpsDenominator*autotypes.SecondsPerYear))
	if reward.Cmp(want) != 0 {
		t.Errorf("PendingReward() = %s, want %s", reward, want)
	}

	ok, _ = s.contract.CanClaim(ctx, testUser, 0)
	if !ok {
		t.Fatal("expected claimable after lock")
	}
	if _, err := s.contract.ClaimAndWait(ctx, 0); err != nil {
		t.Fatalf("ClaimAndWait() error = %v", err)
	}

	bal, _ := s.mtec.BalanceOf(ctx, testUser)
	if bal.Cmp(new(big.Int).Add(tokens(1000), want)) != 0 {
		t.Errorf("user MTEC = %s", bal)
	}

	_, err = s.contract.Claim(ctx, 0)
	if autotypes.RevertReason(err) != reasonAlreadyClaimed {
		t.Errorf("expected already claimed, got %v", err)
	}
	_, err = s.contract.Claim(ctx, 5)
	if autotypes.RevertReason(err) != reasonBadIndex {
		t.Errorf("expected bad index, got %v", err)
	}
}

func TestAutoStake_MockOwnerActions(t *testing.T) {
	s := newMockSystem(t)
	ctx := context.Background()

	params := autotypes.ContractParams{APYBps: 2000, LockSeconds: 3600, Enabled: true}
	_, err := s.contract.SetParamsAndWait(ctx, params)
	if autotypes.RevertReason(err) != reasonNotOwner {
		t.Fatalf("non-owner should be rejected, got %v", err)
	}

	s.contract.SetMockSender(testOwner)
	if _, err := s.contract.SetParamsAndWait(ctx, params); err != nil {
		t.Fatal(err)
	}
	got, _ := s.contract.Params(ctx)
	if got != params {
		t.Errorf("Params() = %+v, want %+v", got, params)
	}

	_, err = s.contract.SetReferralRatesAndWait(ctx, autotypes.ReferralRates{Level1: 9000, Level2: 1001})
	if autotypes.RevertReason(err) != reasonRefRates {
		t.Errorf("expected rates revert, got %v", err)
	}
	rates := autotypes.ReferralRates{Level1: 700, Level2: 200, Level3: 100}
	if _, err := s.contract.SetReferralRatesAndWait(ctx, rates); err != nil {
		t.Fatal(err)
	}
	if r, _ := s.contract.ReferralRates(ctx); r != rates {
		t.Errorf("ReferralRates() = %+v", r)
	}

	if _, err := s.contract.SetPackageAndWait(ctx, autotypes.Package{ID: 2, PriceIn: tokens(50), RewardOut: tokens(400), Active: true}); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.contract.PackageCount(ctx); n != 3 {
		t.Errorf("PackageCount() = %d, want 3", n)
	}

	if _, err := s.contract.WithdrawMTECAndWait(ctx, tokens(10), testOwner); err != nil {
		t.Fatal(err)
	}
	bal, _ := s.mtec.BalanceOf(ctx, testOwner)
	if bal.Cmp(tokens(10)) != 0 {
		t.Errorf("owner MTEC = %s, want 10", bal)
	}
	_, err = s.contract.WithdrawUSDTAndWait(ctx, tokens(1), testOwner)
	if !errors.Is(err, autotypes.ErrTransactionReverted) {
		t.Errorf("withdrawing more USDT than held should revert, got %v", err)
	}

	owner, _ := s.contract.Owner(ctx)
	usdt, _ := s.contract.USDT(ctx)
	mtec, _ := s.contract.MTEC(ctx)
	if owner != testOwner || usdt != testUSDT || mtec != testMTEC {
		t.Error("unexpected owner or token addresses")
	}
}
