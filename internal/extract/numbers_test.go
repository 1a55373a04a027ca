package extract

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"119,00", 119.00, true},
		{"119.00", 119.00, true},
		{"0,99", 0.99, true},
		{"12.345.678,90", 12345678.90, true},
		{"€ 1.234,56", 1234.56, true},
		{"1234,56 EUR", 1234.56, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(100.004999); got != 100.0 {
		t.Errorf("Round2 = %v, want 100.00", got)
	}
	if got := Round2(19.006); got != 19.01 {
		t.Errorf("Round2 = %v, want 19.01", got)
	}
}
