package trader

import (
	"math"
	"testing"
)

func TestDealEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Deal{
		{Amount: 0.0332226, BuyPrice: 602.1, SellPrice: 634.42, OrderID: "83921"},
		{Amount: 1, BuyPrice: 580, SellPrice: 610.5, OrderID: "a-b-c"},
		{Amount: 0.0000001, BuyPrice: 599.999999, SellPrice: 640, OrderID: UnconfirmedOrderID},
	}
	for _, original := range cases {
		encoded := original.Encode()
		decoded, err := ParseDeal(encoded)
		if err != nil {
			t.Fatalf("parse %q: %v", encoded, err)
		}
		if decoded.Amount != original.Amount ||
			decoded.BuyPrice != original.BuyPrice ||
			decoded.SellPrice != original.SellPrice ||
			decoded.OrderID != original.OrderID {
			t.Fatalf("round trip mismatch: %+v vs %+v", decoded, original)
		}
		if decoded.Name != encoded {
			t.Fatalf("expected name %q, got %q", encoded, decoded.Name)
		}
	}
}

func TestEncodeDefaultsMissingOrderID(t *testing.T) {
	deal := Deal{Amount: 1, BuyPrice: 600, SellPrice: 630}
	encoded := deal.Encode()
	parsed, err := ParseDeal(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.OrderID != UnconfirmedOrderID {
		t.Fatalf("expected sentinel order id, got %q", parsed.OrderID)
	}
}

func TestParseDealRejectsMalformedKeys(t *testing.T) {
	cases := []string{
		"",
		"deal|1|600",
		"trade|1|600|630|42",
		"deal|1|600|630|42|extra",
	}
	for _, encoded := range cases {
		if _, err := ParseDeal(encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestParseDealToleratesBadNumbers(t *testing.T) {
	deal, err := ParseDeal("deal|oops|600|630|42")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !math.IsNaN(deal.Amount) {
		t.Fatalf("expected NaN amount, got %v", deal.Amount)
	}
	if deal.BuyPrice != 600 {
		t.Fatalf("expected buy price 600, got %v", deal.BuyPrice)
	}
}

func TestCombinedDealWeightsByAmount(t *testing.T) {
	combined := &CombinedDeal{}
	low := Deal{Amount: 3, BuyPrice: 580, MaxPrice: 640}
	high := Deal{Amount: 1, BuyPrice: 620, MaxPrice: 660}
	low.Encode()
	high.Encode()
	combined.add(low)
	combined.add(high)
	combined.finalize(0.05, 0.999)

	want := (580.0*3 + 620.0*1) / 4
	if combined.BuyPrice != want {
		t.Fatalf("expected weighted buy price %v, got %v", want, combined.BuyPrice)
	}
	if combined.BuyPrice <= 580 || combined.BuyPrice >= 620 {
		t.Fatalf("weighted price must sit strictly between the extremes, got %v", combined.BuyPrice)
	}
	wantMax := (640.0*3 + 660.0*1) / 4
	if combined.MaxPrice != wantMax {
		t.Fatalf("expected weighted max price %v, got %v", wantMax, combined.MaxPrice)
	}
	if combined.StopPrice != wantMax*(1-0.05/2) {
		t.Fatalf("unexpected stop price %v", combined.StopPrice)
	}
}

func TestCombinedDealSingleDealEqualsItsPrices(t *testing.T) {
	combined := &CombinedDeal{}
	deal := Deal{Amount: 2, BuyPrice: 600}
	deal.Encode()
	combined.add(deal)
	combined.finalize(0.05, 0.999)

	if combined.BuyPrice != 600 {
		t.Fatalf("single-deal combination must equal the deal's buy price, got %v", combined.BuyPrice)
	}
	// Without a ratcheted max the buy price stands in for it.
	if combined.MaxPrice != 600 {
		t.Fatalf("expected max price fallback to buy price, got %v", combined.MaxPrice)
	}
	if combined.WouldSellAt != 600*(1+0.05+(1-0.999)) {
		t.Fatalf("unexpected would-sell-at %v", combined.WouldSellAt)
	}
}
