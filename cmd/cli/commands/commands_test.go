package commands

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/app"
	"github.com/mtecstake/autostake/internal/wallet"
	"github.com/mtecstake/autostake/pkg/types"
	"github.com/spf13/cobra"
)

func TestRegister(t *testing.T) {
	root := &cobra.Command{Use: "autostake"}
	Register(root)

	want := []string{
		"connect", "status", "packages", "select", "approve", "buy", "stakes",
		"claim", "claim-all", "reflink", "watch", "interactive", "owner",
		"wallet", "config", "completion", "man", "version",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestNewBuyCmd(t *testing.T) {
	cmd := NewBuyCmd()

	if cmd.Use != "buy" {
		t.Errorf("Use mismatch: got %s, want buy", cmd.Use)
	}

	// Check flags exist
	if cmd.Flags().Lookup("package") == nil {
		t.Error("--package flag should exist")
	}
	if cmd.Flags().Lookup("ref") == nil {
		t.Error("--ref flag should exist")
	}
}

func TestNewClaimCmd(t *testing.T) {
	cmd := NewClaimCmd()

	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("claim should require a stake number")
	}
	if err := cmd.Args(cmd, []string{"1"}); err != nil {
		t.Errorf("claim 1 should be accepted: %v", err)
	}
}

func TestNewOwnerCmd(t *testing.T) {
	cmd := NewOwnerCmd()

	if !cmd.HasSubCommands() {
		t.Fatal("owner should have subcommands")
	}

	expectedSubCmds := map[string]bool{
		"status":        false,
		"set-params":    false,
		"set-ref-rates": false,
		"withdraw-usdt": false,
		"withdraw-mtec": false,
		"set-package":   false,
		"explorer":      false,
	}
	for _, subCmd := range cmd.Commands() {
		if _, exists := expectedSubCmds[subCmd.Name()]; exists {
			expectedSubCmds[subCmd.Name()] = true
		}
	}
	for name, found := range expectedSubCmds {
		if !found {
			t.Errorf("Missing owner subcommand: %s", name)
		}
	}
}

func TestNewWalletCmd(t *testing.T) {
	cmd := NewWalletCmd()

	for _, name := range []string{"create", "import", "show", "forget-password"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("Missing wallet subcommand: %s", name)
		}
	}
}

func TestNewConfigCmd(t *testing.T) {
	cmd := NewConfigCmd()

	if cmd.Use != "config" {
		t.Errorf("Use mismatch: got %s, want config", cmd.Use)
	}
	if !cmd.HasSubCommands() {
		t.Error("config should have subcommands")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRenderTablePlain(t *testing.T) {
	out := renderTablePlain([]string{"ID", "PRICE"}, [][]string{{"0", "100 USDT"}, {"12", "5 USDT"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "--  --------") {
		t.Errorf("separator should match column widths, got %q", lines[1])
	}
	if renderTablePlain(nil, nil) != "" {
		t.Error("no headers should render nothing")
	}
}

func TestStatusBoxPlain(t *testing.T) {
	out := statusBoxPlain("Wallet", [][2]string{{"Address", "0xabc"}})
	if !strings.Contains(out, "Wallet\n======") {
		t.Errorf("missing underlined title:\n%s", out)
	}
	if !strings.Contains(out, "Address:") || !strings.Contains(out, "0xabc") {
		t.Errorf("missing field:\n%s", out)
	}
}

func TestApprovalTitle(t *testing.T) {
	tests := []struct {
		req  wallet.ApprovalRequest
		want string
	}{
		{wallet.ApprovalRequest{Kind: wallet.ApproveSwitch, ChainID: 56}, "Switch the wallet to chain 56?"},
		{wallet.ApprovalRequest{Kind: wallet.ApproveAdd, ChainID: 56}, "Add chain 56 to the wallet?"},
		{wallet.ApprovalRequest{Kind: wallet.ApproveSign}, "Sign and send this transaction?"},
	}
	for _, tt := range tests {
		if got := approvalTitle(tt.req); got != tt.want {
			t.Errorf("approvalTitle(%s) = %q, want %q", tt.req.Kind, got, tt.want)
		}
	}
}

func TestClaimReportJSON(t *testing.T) {
	report := &types.ClaimReport{
		Attempted: []uint64{0, 1},
		Succeeded: []uint64{0},
		Failed:    map[uint64]error{1: errors.New("reverted")},
	}
	a, cleanup := newTestApp(t)
	defer cleanup()

	out := claimReportJSON(a, report)
	failed, ok := out["failed"].(map[string]string)
	if !ok || failed["1"] != "reverted" {
		t.Errorf("failures should be keyed by index, got %v", out["failed"])
	}
}

// newTestApp builds a mock-mode App from a config path that does not exist
func newTestApp(t *testing.T) (*app.App, func()) {
	t.Helper()
	oldPath, oldMock, oldYes := ConfigPath, MockMode, AssumeYes
	ConfigPath = filepath.Join(t.TempDir(), "config.yaml")
	MockMode, AssumeYes = true, true

	a, cleanup, err := newApp(appOptions{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a, func() {
		cleanup()
		ConfigPath, MockMode, AssumeYes = oldPath, oldMock, oldYes
	}
}

func TestInteractive_PurchaseFlow(t *testing.T) {
	a, cleanup := newTestApp(t)
	defer cleanup()
	ctx := context.Background()

	lines := [][]string{
		{"connect"},
		{"packages"},
		{"select", "1"},
		{"approve"},
		{"buy"},
		{"stakes"},
		{"claim-all"},
		{"owner", "status"},
	}
	for _, l := range lines {
		if quit := runLine(ctx, a, l[0], l[1:]); quit {
			t.Fatalf("%v should not exit", l)
		}
	}

	if a.Manager().State() != types.StateConnected {
		t.Fatalf("expected connected, got %s", a.Manager().State())
	}
	p := a.Portfolio()
	if p.Count() != 1 {
		t.Fatalf("expected one stake after buy, got %d", p.Count())
	}
	if pos, _ := p.Position(0); pos.Claimed {
		t.Error("a fresh stake cannot be claimed")
	}
	if st := a.OwnerStatus(); st == nil || !st.IsOwner {
		t.Error("the first mock account owns the contract")
	}

	if !runLine(ctx, a, "exit", nil) {
		t.Error("exit should end the shell")
	}
}

func TestInteractive_BuyWithSelfReferral(t *testing.T) {
	a, cleanup := newTestApp(t)
	defer cleanup()
	ctx := context.Background()

	runLine(ctx, a, "connect", nil)
	runLine(ctx, a, "select", []string{"0"})
	runLine(ctx, a, "approve", nil)
	runLine(ctx, a, "buy", []string{a.Manager().Account().Hex()})

	pos, ok := a.Portfolio().Position(0)
	if !ok {
		t.Fatal("expected stake 0")
	}
	if pos.Referrer1 != (common.Address{}) {
		t.Errorf("own address must not become the referrer, got %s", pos.Referrer1.Hex())
	}
}
