package addr

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/pkg/types"
)

const contractHex = "0xaC222708698da5E9Fc75aeaaD75b29102C9bBA90"

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"checksummed", contractHex, true},
		{"lowercase", strings.ToLower(contractHex), true},
		{"uppercase body", "0x" + strings.ToUpper(contractHex[2:]), true},
		{"bad checksum", "0xAc222708698da5E9Fc75aeaaD75b29102C9bBA90", false},
		{"too short", "0x1234", false},
		{"not hex", "0xzz222708698da5E9Fc75aeaaD75b29102C9bBA90", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.input); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	a, err := Normalize("  " + strings.ToLower(contractHex) + " ")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if a.Hex() != contractHex {
		t.Errorf("expected checksummed %s, got %s", contractHex, a.Hex())
	}

	_, err = Normalize("nope")
	if !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestShort(t *testing.T) {
	if got := Short(contractHex); got != "0xaC22...BA90" {
		t.Errorf("Short() = %q", got)
	}
	if got := Short(""); got != "-" {
		t.Errorf("Short(\"\") = %q, want -", got)
	}
	if got := Short("0x1234"); got != "0x1234" {
		t.Errorf("Short of short string = %q", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal(contractHex, strings.ToLower(contractHex)) {
		t.Error("addresses differing only by case should be equal")
	}
	if Equal(contractHex, "0x0000000000000000000000000000000000000001") {
		t.Error("different addresses should not be equal")
	}
}

func TestRefFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want common.Address
	}{
		{"no param", "https://stake.example/", Zero},
		{"valid lowercase", "https://stake.example/?ref=" + strings.ToLower(contractHex), common.HexToAddress(contractHex)},
		{"invalid", "https://stake.example/?ref=0x1234", Zero},
		{"empty param", "https://stake.example/?ref=", Zero},
		{"with other params", "https://stake.example/buy?x=1&ref=" + contractHex + "#top", common.HexToAddress(contractHex)},
		{"garbage url", "://bad", Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefFromURL(tt.url); got != tt.want {
				t.Errorf("RefFromURL(%q) = %s, want %s", tt.url, got.Hex(), tt.want.Hex())
			}
		})
	}
}

func TestParseReferral(t *testing.T) {
	want := common.HexToAddress(contractHex)
	if got := ParseReferral(contractHex); got != want {
		t.Errorf("bare address: got %s", got.Hex())
	}
	if got := ParseReferral("https://stake.example/?ref=" + contractHex); got != want {
		t.Errorf("link: got %s", got.Hex())
	}
	if got := ParseReferral("hello"); !IsZero(got) {
		t.Errorf("garbage should be zero, got %s", got.Hex())
	}
	if got := ParseReferral(""); !IsZero(got) {
		t.Error("empty input should be zero")
	}
}

func TestRefLinkRoundTrip(t *testing.T) {
	account := common.HexToAddress(strings.ToLower(contractHex))

	link, err := BuildRefLink("https://stake.example/app?lang=th", account)
	if err != nil {
		t.Fatalf("BuildRefLink failed: %v", err)
	}
	if !strings.Contains(link, "lang=th") {
		t.Errorf("other parameters should be kept: %s", link)
	}

	got := RefFromURL(link)
	if got.Hex() != contractHex {
		t.Errorf("round trip = %s, want checksummed %s", got.Hex(), contractHex)
	}
}

func TestBuildRefLink_ReplacesExistingRef(t *testing.T) {
	account := common.HexToAddress(contractHex)
	link, err := BuildRefLink("https://stake.example/?ref=0x0000000000000000000000000000000000000001", account)
	if err != nil {
		t.Fatalf("BuildRefLink failed: %v", err)
	}
	if strings.Count(link, "ref=") != 1 {
		t.Errorf("expected a single ref parameter: %s", link)
	}
	if RefFromURL(link) != account {
		t.Errorf("ref should point at the new account: %s", link)
	}
}
