package pricing

import "testing"

func TestFinalAmountFixed(t *testing.T) {
	if got := FinalAmountCents(20000, 5000, "fixed"); got != 15000 {
		t.Fatalf("expected 15000, got %d", got)
	}
}

func TestFinalAmountPercent(t *testing.T) {
	// 200.00 with 10% off => 180.00
	if got := FinalAmountCents(20000, 10, "percent"); got != 18000 {
		t.Fatalf("expected 18000, got %d", got)
	}
}

func TestFinalAmountPercentRounding(t *testing.T) {
	// 33.33 with 15% => 4.9995 cut, rounds to 5.00 => 28.33
	if got := FinalAmountCents(3333, 15, "percent"); got != 2833 {
		t.Fatalf("expected 2833, got %d", got)
	}
}

func TestFinalAmountZeroOrNegativeDiscountIsIdentity(t *testing.T) {
	if got := FinalAmountCents(9900, 0, "percent"); got != 9900 {
		t.Fatalf("expected identity for zero discount, got %d", got)
	}
	if got := FinalAmountCents(9900, -10, "fixed"); got != 9900 {
		t.Fatalf("expected identity for negative discount, got %d", got)
	}
}

func TestFinalAmountNeverNegative(t *testing.T) {
	if got := FinalAmountCents(1000, 150, "percent"); got != 0 {
		t.Fatalf("percent over 100 should clamp to 0, got %d", got)
	}
	if got := FinalAmountCents(1000, 5000, "fixed"); got != 0 {
		t.Fatalf("oversized fixed discount should clamp to 0, got %d", got)
	}
}

func TestFinalAmountBounds(t *testing.T) {
	cases := []struct {
		subtotal int64
		discount float64
		kind     string
	}{
		{0, 10, "percent"},
		{1, 0.5, "percent"},
		{123456, 33.3, "percent"},
		{123456, 123, "fixed"},
		{99, 99, "fixed"},
		{500, 100, "percent"},
	}
	for _, tc := range cases {
		got := FinalAmountCents(tc.subtotal, tc.discount, tc.kind)
		if got < 0 || got > tc.subtotal {
			t.Fatalf("final amount %d out of [0,%d] for %+v", got, tc.subtotal, tc)
		}
		if cut := DiscountAmountCents(tc.subtotal, tc.discount, tc.kind); cut != tc.subtotal-got {
			t.Fatalf("discount amount %d does not complement final %d", cut, got)
		}
	}
}

func TestUnknownDiscountKindIsIdentity(t *testing.T) {
	if got := FinalAmountCents(5000, 10, "bogus"); got != 5000 {
		t.Fatalf("unknown kind should be identity, got %d", got)
	}
}
