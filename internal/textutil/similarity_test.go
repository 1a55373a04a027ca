package textutil

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "acme", "acme", 1},
		{"both empty", "", "", 1},
		{"one empty", "acme", "", 0},
		{"one edit of four", "acme", "acma", 0.75},
		{"disjoint", "abcd", "wxyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme GmbH & Co. KG", "acme gmbh co kg"},
		{"  Müller-Straße  12 ", "müller straße 12"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenSimilarity_Reordering(t *testing.T) {
	a := Normalize("Acme GmbH Berlin")
	b := Normalize("Berlin Acme GmbH")
	if got := TokenSimilarity(a, b); got < 0.99 {
		t.Errorf("TokenSimilarity(%q, %q) = %v, want ~1", a, b, got)
	}
	if got := TokenSimilarity("acme", "zzzz"); got > 0.3 {
		t.Errorf("TokenSimilarity on disjoint strings = %v, want low", got)
	}
}
