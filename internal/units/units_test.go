package units

import (
	"errors"
	"math/big"
	"testing"

	"github.com/mtecstake/autostake/pkg/types"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test literal " + s)
	}
	return v
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals uint8
		digits   int
		want     string
	}{
		{"nil", nil, 18, 6, "0"},
		{"zero", big.NewInt(0), 18, 6, "0"},
		{"whole", wei("100000000000000000000"), 18, 6, "100"},
		{"fraction trimmed", wei("1500000000000000000"), 18, 6, "1.5"},
		{"truncates not rounds", wei("1999999999999999999"), 18, 6, "1.999999"},
		{"small", wei("1000000000000"), 18, 6, "0.000001"},
		{"below display precision", wei("999999999999"), 18, 6, "0"},
		{"two digits", wei("123456000000000000000"), 18, 2, "123.45"},
		{"six decimals token", big.NewInt(1234567), 6, 6, "1.234567"},
		{"negative", wei("-2500000000000000000"), 18, 6, "-2.5"},
		{"zero digits", wei("2500000000000000000"), 18, 0, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatUnits(tt.amount, tt.decimals, tt.digits); got != tt.want {
				t.Errorf("FormatUnits() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatUnits_DoesNotMutate(t *testing.T) {
	amount := wei("-1500000000000000000")
	Format(amount, 18)
	if amount.String() != "-1500000000000000000" {
		t.Errorf("input was mutated: %s", amount)
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		input    string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"100", 18, "100000000000000000000", false},
		{" 1.5 ", 18, "1500000000000000000", false},
		{"0.000000000000000001", 18, "1", false},
		{"1.50", 1, "15", false},
		{"0.0000000000000000001", 18, "", true},
		{"", 18, "", true},
		{"-1", 18, "", true},
		{"abc", 18, "", true},
		{"1e80", 18, "", true},
		{"1.5e1", 18, "15000000000000000000", false},
		{"15000000000000000000000e-22", 18, "1500000000000000000", false},
		{"0e999999999", 18, "0", false},
		{"1e999999999", 18, "", true},
		{"1e-999999999", 18, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseUnits(tt.input, tt.decimals)
			if tt.wantErr {
				if !errors.Is(err, types.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUnits(%q) failed: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseUnits(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "12.345678", "999999.5"} {
		v, err := ParseUnits(s, 18)
		if err != nil {
			t.Fatalf("ParseUnits(%q) failed: %v", s, err)
		}
		if got := Format(v, 18); got != s {
			t.Errorf("round trip of %q gave %q", s, got)
		}
	}
}

func TestMaxUint256(t *testing.T) {
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if MaxUint256().Cmp(want) != 0 {
		t.Errorf("MaxUint256() = %s", MaxUint256())
	}
	if !FitsUint256(MaxUint256()) {
		t.Error("max should fit")
	}
	if FitsUint256(new(big.Int).Add(MaxUint256(), big.NewInt(1))) {
		t.Error("max+1 should not fit")
	}
	if FitsUint256(big.NewInt(-1)) || FitsUint256(nil) {
		t.Error("negative and nil should not fit")
	}

	// callers get their own copy
	m := MaxUint256()
	m.SetInt64(0)
	if MaxUint256().Sign() == 0 {
		t.Error("MaxUint256 returned shared state")
	}
}

func TestBpsToPercent(t *testing.T) {
	tests := map[uint64]string{
		0:     "0.00",
		1:     "0.01",
		1250:  "12.50",
		3000:  "30.00",
		10000: "100.00",
	}
	for bps, want := range tests {
		if got := BpsToPercent(bps); got != want {
			t.Errorf("BpsToPercent(%d) = %q, want %q", bps, got, want)
		}
	}
}

func TestPercentToBps(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr bool
	}{
		{"30", 3000, false},
		{"12.5", 1250, false},
		{"0.005", 1, false},
		{"0.004", 0, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"ten", 0, true},
		{"1e999999999", 0, true},
		{"1e-999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := PercentToBps(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PercentToBps(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PercentToBps(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestDaysToSeconds(t *testing.T) {
	got, err := DaysToSeconds("30")
	if err != nil {
		t.Fatalf("DaysToSeconds failed: %v", err)
	}
	if got != 30*86400 {
		t.Errorf("DaysToSeconds(30) = %d", got)
	}

	got, err = DaysToSeconds("0.5")
	if err != nil {
		t.Fatalf("DaysToSeconds failed: %v", err)
	}
	if got != 43200 {
		t.Errorf("DaysToSeconds(0.5) = %d", got)
	}

	if _, err := DaysToSeconds("-2"); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative days, got %v", err)
	}
}

func TestSecondsToDays(t *testing.T) {
	if got := SecondsToDays(30 * 86400); got != "30" {
		t.Errorf("SecondsToDays = %q", got)
	}
	if got := SecondsToDays(0); got != "0" {
		t.Errorf("SecondsToDays(0) = %q", got)
	}
	if got := SecondsToDays(86400 + 50000); got != "2" {
		t.Errorf("SecondsToDays should round, got %q", got)
	}
}
