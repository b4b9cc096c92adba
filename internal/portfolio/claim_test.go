package portfolio

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mtecstake/autostake/pkg/types"
)

func TestClaimOne(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 5, true, false)

	tr := New(Options{})
	p, err := tr.ClaimOne(context.Background(), sess, 0)
	if err != nil {
		t.Fatalf("ClaimOne() error = %v", err)
	}

	pos, ok := p.Position(0)
	if !ok || !pos.Claimed || pos.PendingReward.Sign() != 0 {
		t.Errorf("reloaded position not claimed: %+v", pos)
	}
	if got := contract.ClaimedIndices(); !reflect.DeepEqual(got, []uint64{0}) {
		t.Errorf("claimed indices %v, want [0]", got)
	}
}

func TestClaimOne_NotYetClaimable(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 5, false, false)

	_, err := New(Options{}).ClaimOne(context.Background(), sess, 0)
	if !errors.Is(err, types.ErrNotYetClaimable) {
		t.Errorf("expected ErrNotYetClaimable, got %v", err)
	}
	if contract.Submissions() != 0 {
		t.Error("nothing should be submitted for a locked stake")
	}
}

func TestClaimOne_ElidesKnownClaimed(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 0, false, true)

	tr := New(Options{})
	if _, err := tr.Load(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	contract.ClearCalls()

	_, err := tr.ClaimOne(context.Background(), sess, 0)
	if !errors.Is(err, types.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}
	if calls := contract.GetCalls(); len(calls) != 0 {
		t.Errorf("no read or submission expected for a known-claimed index, got %v", calls)
	}
}

func TestClaimOne_Reverted(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 0, true, false)
	contract.SetIndexError("ClaimAndWait", 0, &types.RevertError{Method: "claim", Reason: "locked"})

	tr := New(Options{})
	_, err := tr.ClaimOne(context.Background(), sess, 0)
	if !errors.Is(err, types.ErrTransactionReverted) || types.RevertReason(err) != "locked" {
		t.Errorf("expected the decoded revert, got %v", err)
	}
	if tr.Snapshot() != nil {
		t.Error("no reload after a failed claim")
	}
}

func TestClaimAll_TwoPositions(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 5, true, false)
	addStake(contract, 200, 9, false, false)

	tr := New(Options{})
	p, err := tr.Load(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if !p.AnyClaimable {
		t.Fatal("expected a claimable stake before the batch")
	}

	report, err := tr.ClaimAll(context.Background(), sess)
	if err != nil {
		t.Fatalf("ClaimAll() error = %v", err)
	}
	if !reflect.DeepEqual(report.Succeeded, []uint64{0}) || !reflect.DeepEqual(report.Skipped, []uint64{1}) {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Claimed() != 1 {
		t.Errorf("Claimed() = %d, want 1", report.Claimed())
	}

	snap := tr.Snapshot()
	first, _ := snap.Position(0)
	second, _ := snap.Position(1)
	if !first.Claimed || second.Claimed {
		t.Errorf("claim flags after reload: %v %v", first.Claimed, second.Claimed)
	}
	if snap.TotalPending.Int64() != 9 {
		t.Errorf("pending after claim = %s, want 9", snap.TotalPending)
	}
}

func TestClaimAll_ClaimsWhatMaturedAfterRender(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 0, false, false)
	addStake(contract, 200, 0, false, false)
	addStake(contract, 300, 0, true, false)

	tr := New(Options{})
	if _, err := tr.Load(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	// Index 1 matures between the render and its own re-check
	contract.SetBeforeCall(func(method string, args ...interface{}) {
		if method == "CanClaim" && args[0].(uint64) == 1 {
			contract.SetClaimable(user, 1, true)
		}
	})

	report, err := tr.ClaimAll(context.Background(), sess)
	if err != nil {
		t.Fatalf("ClaimAll() error = %v", err)
	}
	if !reflect.DeepEqual(report.Succeeded, []uint64{1, 2}) || !reflect.DeepEqual(report.Skipped, []uint64{0}) {
		t.Errorf("unexpected report %+v", report)
	}
	if got := contract.ClaimedIndices(); !reflect.DeepEqual(got, []uint64{1, 2}) {
		t.Errorf("claimed indices %v, want [1 2]", got)
	}
}

func TestClaimAll_FailureDoesNotBlockOthers(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 0, true, false)
	addStake(contract, 200, 0, true, false)
	addStake(contract, 300, 0, true, false)
	boom := errors.New("nonce too low")
	contract.SetIndexError("ClaimAndWait", 1, boom)

	tr := New(Options{})
	report, err := tr.ClaimAll(context.Background(), sess)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the failed claim in the error, got %v", err)
	}
	if !reflect.DeepEqual(report.Attempted, []uint64{0, 1, 2}) || !reflect.DeepEqual(report.Succeeded, []uint64{0, 2}) {
		t.Errorf("unexpected report %+v", report)
	}
	if _, ok := report.Failed[1]; !ok {
		t.Error("index 1 missing from the failures")
	}
	if got := contract.ClaimedIndices(); !reflect.DeepEqual(got, []uint64{0, 1, 2}) {
		t.Errorf("claim submissions %v, want [0 1 2]", got)
	}

	// One reload after the batch
	if snap := tr.Snapshot(); snap == nil || snap.Generation != 1 {
		t.Errorf("expected exactly one reload, got %+v", snap)
	}
}

func TestClaimAll_SubmitsSequentially(t *testing.T) {
	sess, contract := fixture()
	for i := 0; i < 4; i++ {
		addStake(contract, 100, 0, true, false)
	}

	// Each canClaim must come after the previous claim was confirmed
	var seq []string
	contract.SetBeforeCall(func(method string, _ ...interface{}) {
		if method == "CanClaim" || method == "ClaimAndWait" {
			seq = append(seq, method)
		}
	})

	if _, err := New(Options{}).ClaimAll(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 8; i += 2 {
		if seq[i] != "CanClaim" || seq[i+1] != "ClaimAndWait" {
			t.Fatalf("submissions interleaved: %v", seq[:8])
		}
	}
}

func TestClaimAll_SkipsKnownClaimed(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 0, false, true)
	addStake(contract, 200, 0, true, false)

	tr := New(Options{})
	if _, err := tr.Load(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	contract.ClearCalls()

	report, err := tr.ClaimAll(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(report.Attempted, []uint64{1}) {
		t.Errorf("attempted %v, want [1]", report.Attempted)
	}

	calls := contract.GetCalls()
	if calls[0].Method != "StakeCount" || calls[1].Method != "CanClaim" {
		t.Fatalf("unexpected call order %v", calls[:2])
	}
	if idx := calls[1].Args[0]; idx != uint64(1) {
		t.Errorf("index 0 should be elided without a read, first CanClaim was %v", idx)
	}
}

func TestClaimAll_NothingToClaim(t *testing.T) {
	sess, contract := fixture()
	addStake(contract, 100, 0, false, false)

	tr := New(Options{})
	before, err := tr.Load(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}

	report, err := tr.ClaimAll(context.Background(), sess)
	if !errors.Is(err, types.ErrNothingToClaim) {
		t.Fatalf("expected ErrNothingToClaim, got %v", err)
	}
	if len(report.Attempted) != 0 || contract.Submissions() != 0 {
		t.Errorf("nothing should be submitted: %+v", report)
	}

	// The batch still refreshes the snapshot once
	after := tr.Snapshot()
	if after == nil || after.Generation != before.Generation+1 {
		t.Errorf("expected one reload after an empty batch, generation %d -> %+v", before.Generation, after)
	}

	empty, _ := fixture()
	if _, err := tr.ClaimAll(context.Background(), empty); !errors.Is(err, types.ErrNothingToClaim) {
		t.Errorf("expected ErrNothingToClaim for an account without stakes, got %v", err)
	}
}

func TestClaimAll_RejectsInflatedCount(t *testing.T) {
	sess, contract := fixture()
	sess.Contract = &inflatedCount{MockStakeContract: contract, count: 1 << 62}

	_, err := New(Options{}).ClaimAll(context.Background(), sess)
	if !errors.Is(err, types.ErrCountOutOfRange) {
		t.Errorf("expected ErrCountOutOfRange, got %v", err)
	}
	if contract.CallCount("CanClaim") != 0 {
		t.Error("no index should be checked for a rejected count")
	}
}
