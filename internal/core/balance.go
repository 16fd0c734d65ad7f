package core

// GivingReservePercent is the share of recognized income earmarked for the
// giving total. It tracks an earmark, not a cash movement: income raises the
// giving total by this share without lowering the balance.
const GivingReservePercent = 10

// GivingReserve returns the giving earmark for an income amount, rounded
// half-up on the cent.
func GivingReserve(amount Money) Money {
	cents := (amount.Cents*GivingReservePercent + 50) / 100
	return Money{Cents: cents}
}

// BalanceDelta is the effect of one ledger event on a user's totals record.
type BalanceDelta struct {
	Total  Money
	Giving Money
}

// IsZero reports whether applying the delta would change nothing.
func (d BalanceDelta) IsZero() bool {
	return d.Total.Cents == 0 && d.Giving.Cents == 0
}

// ComputeDelta returns the totals effect of creating the transaction.
//
//   - income:          balance += amount, giving total += reserve
//   - expense, unpaid: nothing until settlement
//   - expense, paid:   balance -= amount
//   - giving:          balance -= amount, giving total -= amount
//
// Deterministic in its input; no shared state is read or written.
func ComputeDelta(t Transaction) BalanceDelta {
	switch t.Category {
	case Income:
		return BalanceDelta{Total: t.Amount, Giving: GivingReserve(t.Amount)}
	case Expense:
		if t.PaidStatus == Paid {
			return BalanceDelta{Total: t.Amount.Neg()}
		}
		return BalanceDelta{}
	case Giving:
		return BalanceDelta{Total: t.Amount.Neg(), Giving: t.Amount.Neg()}
	}
	return BalanceDelta{}
}

// ComputeSettlementDelta returns the totals effect of marking an unpaid
// expense paid. Only the unpaid remainder is deducted; partial payments
// already reduced the balance when they were recorded. A remainder that is
// not positive yields a zero delta.
func ComputeSettlementDelta(t Transaction, alreadyPaid Money) BalanceDelta {
	remaining := t.Amount.Cents - alreadyPaid.Cents
	if remaining <= 0 {
		return BalanceDelta{}
	}
	return BalanceDelta{Total: Money{Cents: -remaining}}
}

// ComputePartialDelta returns the totals effect of one partial payment.
// Partial payments reduce the balance at the time they are made.
func ComputePartialDelta(payment Money) BalanceDelta {
	return BalanceDelta{Total: payment.Neg()}
}
