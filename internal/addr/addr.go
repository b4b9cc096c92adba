// Package addr validates, normalizes and shortens account addresses and
// encodes them into referral links.
package addr

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/pkg/types"
)

// RefParam is the query parameter carrying a referrer address
const RefParam = "ref"

// Zero is the "no referrer" address
var Zero = common.Address{}

// Valid reports whether s is a 20-byte hex address. Mixed-case input must
// carry a correct EIP-55 checksum; all-lower and all-upper input is accepted.
func Valid(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if hex == strings.ToLower(hex) || hex == strings.ToUpper(hex) {
		return true
	}
	return common.HexToAddress(s).Hex() == "0x"+hex
}

// Normalize parses s and returns the checksummed address
func Normalize(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !Valid(s) {
		return Zero, fmt.Errorf("%w: %q is not a valid address", types.ErrInvalidInput, s)
	}
	return common.HexToAddress(s), nil
}

// IsZero reports whether a is the zero address
func IsZero(a common.Address) bool {
	return a == Zero
}

// Equal compares two textual addresses case-insensitively
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Short renders an address as its first 6 and last 4 characters
func Short(a string) string {
	if a == "" {
		return "-"
	}
	if len(a) <= 10 {
		return a
	}
	return a[:6] + "..." + a[len(a)-4:]
}

// RefFromURL extracts the referrer from the ref query parameter of rawURL.
// A missing, unparsable or invalid value yields the zero address.
func RefFromURL(rawURL string) common.Address {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Zero
	}
	ref := u.Query().Get(RefParam)
	if ref == "" {
		return Zero
	}
	a, err := Normalize(ref)
	if err != nil {
		return Zero
	}
	return a
}

// ParseReferral accepts either a bare address or a referral link.
// Anything that does not resolve to a valid address yields the zero address.
func ParseReferral(input string) common.Address {
	input = strings.TrimSpace(input)
	if input == "" {
		return Zero
	}
	if a, err := Normalize(input); err == nil {
		return a
	}
	return RefFromURL(input)
}

// BuildRefLink sets the ref parameter of base to the checksummed account,
// keeping every other part of the URL.
func BuildRefLink(base string, account common.Address) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	q := u.Query()
	q.Set(RefParam, account.Hex())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
