package trader

import "testing"

func TestRefreshExtremesFlagsAndIdempotence(t *testing.T) {
	tr := &Trader{Name: "trader_1", Capacity: 3}
	tr.Deals = []Deal{
		{Name: "mid", BuyPrice: 600},
		{Name: "low", BuyPrice: 580},
		{Name: "high", BuyPrice: 620},
	}

	tr.RefreshExtremes()
	snapshot := append([]Deal(nil), tr.Deals...)
	tr.RefreshExtremes()
	for i, d := range tr.Deals {
		if d != snapshot[i] {
			t.Fatalf("flags changed on an unchanged book: %+v vs %+v", d, snapshot[i])
		}
	}

	for _, d := range tr.Deals {
		switch d.Name {
		case "low":
			if !d.IsLowest || d.IsHighest {
				t.Errorf("low deal flags: %+v", d)
			}
		case "high":
			if !d.IsHighest || d.IsLowest {
				t.Errorf("high deal flags: %+v", d)
			}
		default:
			if d.IsHighest || d.IsLowest {
				t.Errorf("mid deal flags: %+v", d)
			}
		}
	}
}

func TestRefreshExtremesSkipsSingleDeal(t *testing.T) {
	tr := &Trader{Name: "trader_1", Capacity: 3}
	tr.Deals = []Deal{{Name: "only", BuyPrice: 600}}

	tr.RefreshExtremes()
	if tr.Deals[0].IsHighest || tr.Deals[0].IsLowest {
		t.Fatalf("single deal must stay unflagged: %+v", tr.Deals[0])
	}
}

func TestRatchetMaxPriceIsMonotone(t *testing.T) {
	tr := &Trader{Name: "trader_1", Capacity: 3}
	tr.Deals = []Deal{{Name: "a", BuyPrice: 600, MaxPrice: 600}}

	tr.RatchetMaxPrice(650)
	if tr.Deals[0].MaxPrice != 650 {
		t.Fatalf("max price = %v, want 650", tr.Deals[0].MaxPrice)
	}
	tr.RatchetMaxPrice(610)
	if tr.Deals[0].MaxPrice != 650 {
		t.Fatalf("max price moved down to %v", tr.Deals[0].MaxPrice)
	}
	tr.RatchetMaxPrice(0)
	if tr.Deals[0].MaxPrice != 650 {
		t.Fatalf("max price changed on a zero tick: %v", tr.Deals[0].MaxPrice)
	}
}

func TestCommittedTotals(t *testing.T) {
	tr := &Trader{Name: "trader_1", Capacity: 3}
	tr.Deals = []Deal{
		{Name: "a", Amount: 0.02, BuyPrice: 600},
		{Name: "b", Amount: 0.03, BuyPrice: 580},
	}

	if got := tr.CommittedBTC(); !almostEqual(got, 0.05) {
		t.Errorf("committed base = %v, want 0.05", got)
	}
	if got := tr.CommittedCurrency(); !almostEqual(got, 0.02*600+0.03*580) {
		t.Errorf("committed quote = %v, want %v", got, 0.02*600+0.03*580)
	}
	if got := tr.LowestBuyPrice(); got != 580 {
		t.Errorf("lowest buy = %v, want 580", got)
	}
}
