package core

import "testing"

func TestGivingReserve(t *testing.T) {
	cases := []struct {
		amount int64
		want   int64
	}{
		{10000, 1000}, // 10% exactly
		{105, 11},     // 10.5 rounds up
		{104, 10},     // 10.4 rounds down
		{1, 0},        // 0.1 rounds down
		{5, 1},        // 0.5 rounds up
	}
	for _, tc := range cases {
		got := GivingReserve(Money{Cents: tc.amount})
		if got.Cents != tc.want {
			t.Fatalf("GivingReserve(%d) = %d, want %d", tc.amount, got.Cents, tc.want)
		}
	}
}

func TestComputeDelta(t *testing.T) {
	cases := []struct {
		name       string
		tx         Transaction
		total      int64
		giving     int64
	}{
		{
			name:   "income raises balance and reserves giving",
			tx:     Transaction{OwnerID: "u", Category: Income, Amount: Money{Cents: 10000}},
			total:  10000,
			giving: 1000,
		},
		{
			name:  "unpaid expense leaves balance untouched",
			tx:    Transaction{OwnerID: "u", Category: Expense, SubCategory: Bills, Amount: Money{Cents: 4000}, PaidStatus: Unpaid},
			total: 0,
		},
		{
			name:  "expense paid at creation deducts immediately",
			tx:    Transaction{OwnerID: "u", Category: Expense, SubCategory: Bills, Amount: Money{Cents: 4000}, PaidStatus: Paid},
			total: -4000,
		},
		{
			name:   "giving deducts balance and giving total",
			tx:     Transaction{OwnerID: "u", Category: Giving, SubCategory: Gifting, Amount: Money{Cents: 2500}},
			total:  -2500,
			giving: -2500,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := ComputeDelta(tc.tx)
			if d.Total.Cents != tc.total || d.Giving.Cents != tc.giving {
				t.Fatalf("got (%d, %d), want (%d, %d)",
					d.Total.Cents, d.Giving.Cents, tc.total, tc.giving)
			}
		})
	}
}

func TestComputeSettlementDelta(t *testing.T) {
	tx := Transaction{OwnerID: "u", Category: Expense, SubCategory: Bills, Amount: Money{Cents: 4000}, PaidStatus: Unpaid}

	// No partial payments: full amount.
	d := ComputeSettlementDelta(tx, Money{})
	if d.Total.Cents != -4000 {
		t.Fatalf("got %d, want -4000", d.Total.Cents)
	}
	// Residual after partials: only the remainder.
	d = ComputeSettlementDelta(tx, Money{Cents: 1500})
	if d.Total.Cents != -2500 {
		t.Fatalf("got %d, want -2500", d.Total.Cents)
	}
	// Fully covered already: nothing left to deduct.
	d = ComputeSettlementDelta(tx, Money{Cents: 4000})
	if !d.IsZero() {
		t.Fatalf("expected zero delta, got %+v", d)
	}
	d = ComputeSettlementDelta(tx, Money{Cents: 5000})
	if !d.IsZero() {
		t.Fatalf("expected zero delta for overpaid, got %+v", d)
	}
}

func TestComputePartialDelta(t *testing.T) {
	d := ComputePartialDelta(Money{Cents: 1500})
	if d.Total.Cents != -1500 || d.Giving.Cents != 0 {
		t.Fatalf("got %+v", d)
	}
}

// Split-invariance: however a settlement is split between partial payments
// and a final settlement, the cumulative balance effect equals -amount.
func TestSettlementSplitInvariance(t *testing.T) {
	tx := Transaction{OwnerID: "u", Category: Expense, SubCategory: Bills, Amount: Money{Cents: 10000}, PaidStatus: Unpaid}

	splits := [][]int64{
		{10000},
		{5000, 5000},
		{1, 9999},
		{2500, 2500, 2500, 2500},
		{9999, 1},
	}
	for _, split := range splits {
		var cumulative int64
		var paid Money
		for _, p := range split {
			d := ComputePartialDelta(Money{Cents: p})
			cumulative += d.Total.Cents
			paid = paid.Add(Money{Cents: p})
		}
		// Settlement after the partials adds only the remainder (zero here).
		cumulative += ComputeSettlementDelta(tx, paid).Total.Cents
		if cumulative != -10000 {
			t.Fatalf("split %v: cumulative %d, want -10000", split, cumulative)
		}
	}
}
