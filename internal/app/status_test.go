package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/pkg/types"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"rejected", fmt.Errorf("connect: %w", types.ErrUserRejected), "Request rejected in the wallet."},
		{"wrong network", types.ErrWrongNetwork, "Wallet is on the wrong network. Please use BNB Smart Chain."},
		{"interrupted", session.ErrConnectInterrupted, ""},
		{"superseded", types.ErrLoadSuperseded, ""},
		{"revert", &types.RevertError{Method: "claim", Reason: "locked"}, ""},
		{"timeout", context.DeadlineExceeded, ""},
		{"unknown", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err, "BNB Smart Chain")
			if tt.want != "" && got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
			if tt.err != nil && got == "" {
				t.Error("every error needs a message")
			}
		})
	}
}

func TestDescribe_RevertCarriesReason(t *testing.T) {
	got := Describe(&types.RevertError{Method: "claim", Reason: "locked"}, "")
	if !strings.Contains(got, "locked") {
		t.Errorf("revert message should name the reason, got %q", got)
	}
}

func TestBenign(t *testing.T) {
	if !benign(fmt.Errorf("approve: %w", types.ErrAlreadyApproved)) {
		t.Error("already approved should be benign")
	}
	if benign(types.ErrNothingToClaim) {
		t.Error("nothing to claim is reported")
	}
}
