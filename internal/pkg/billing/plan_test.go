package billing

import (
	"testing"
	"time"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "standard", want: "standard"},
		{in: "fleet", want: "fleet"},
		{in: " FLEET ", want: "fleet"},
		{in: "", want: "standard"},
		{in: "invalid", want: "standard"},
	}

	for _, tt := range tests {
		if got := normalizePlan(tt.in); got != tt.want {
			t.Fatalf("normalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSource(t *testing.T) {
	if got := normalizeSource(""); got != SourceManual {
		t.Fatalf("expected empty source to default to manual, got %q", got)
	}
	if got := normalizeSource("Stripe"); got != "stripe" {
		t.Fatalf("expected lower-cased source, got %q", got)
	}
}

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2026, 1, 31, 8, 30, 0, 0, time.UTC)
	want := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	if got := periodEnd(start, 30); !got.Equal(want) {
		t.Fatalf("periodEnd = %v, want %v", got, want)
	}
}
