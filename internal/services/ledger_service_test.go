package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger/memory"
)

type capturingPublisher struct {
	events []*amqp.LedgerEventMessage
	err    error
}

func (p *capturingPublisher) PublishLedgerEvent(_ context.Context, msg *amqp.LedgerEventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, msg)
	return nil
}

func newService(t *testing.T) (*LedgerService, *capturingPublisher) {
	t.Helper()
	pub := &capturingPublisher{}
	return NewLedgerService(memory.New("EUR"), pub), pub
}

func create(t *testing.T, svc *LedgerService, tx core.Transaction) string {
	t.Helper()
	id, err := svc.CreateTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return id
}

func totals(t *testing.T, svc *LedgerService, userID string) core.Totals {
	t.Helper()
	got, err := svc.Totals(context.Background(), userID)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	return got
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	svc, pub := newService(t)

	tests := []struct {
		name string
		tx   core.Transaction
	}{
		{"missing owner", core.Transaction{Category: core.Income, Amount: core.Money{Cents: 100}}},
		{"zero amount", core.Transaction{OwnerID: "u1", Category: core.Income}},
		{"negative amount", core.Transaction{OwnerID: "u1", Category: core.Income, Amount: core.Money{Cents: -5}}},
		{"unknown category", core.Transaction{OwnerID: "u1", Category: "transfer", Amount: core.Money{Cents: 100}}},
		{"expense without subcategory", core.Transaction{OwnerID: "u1", Category: core.Expense, Amount: core.Money{Cents: 100}, PaidStatus: core.Unpaid}},
		{"income with subcategory", core.Transaction{OwnerID: "u1", Category: core.Income, SubCategory: core.Bills, Amount: core.Money{Cents: 100}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.tx.Timestamp = time.Now()
			if _, err := svc.CreateTransaction(context.Background(), tc.tx); !errors.Is(err, core.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}

	if len(pub.events) != 0 {
		t.Errorf("rejected transactions published %d events", len(pub.events))
	}
}

func TestIncomeRaisesBothTotals(t *testing.T) {
	svc, pub := newService(t)

	create(t, svc, core.Transaction{
		OwnerID:   "u1",
		Category:  core.Income,
		Amount:    core.Money{Cents: 10000},
		Timestamp: time.Now(),
	})

	got := totals(t, svc, "u1")
	if got.Total.Cents != 10000 || got.GivingTotal.Cents != 1000 {
		t.Errorf("totals = %d/%d, want 10000/1000", got.Total.Cents, got.GivingTotal.Cents)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != amqp.EventCreated {
		t.Errorf("events = %+v, want one created event", pub.events)
	}
}

// Total 100.00, expense 40.00 unpaid, partial 15.00 then 25.00. The second
// payment settles: record deleted, status paid, balance 60.00.
func TestPartialPaymentScenario(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Income,
		Amount: core.Money{Cents: 10000}, Timestamp: time.Now(),
	})
	id := create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Expense, SubCategory: core.Bills,
		Amount: core.Money{Cents: 4000}, Timestamp: time.Now(), PaidStatus: core.Unpaid,
	})

	if got := totals(t, svc, "u1").Total.Cents; got != 10000 {
		t.Fatalf("unpaid expense moved the balance: %d", got)
	}

	if err := svc.RecordPartialPayment(ctx, "u1", id, core.Money{Cents: 1500}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if got := totals(t, svc, "u1").Total.Cents; got != 8500 {
		t.Fatalf("after 15.00 payment total = %d, want 8500", got)
	}

	if err := svc.RecordPartialPayment(ctx, "u1", id, core.Money{Cents: 2500}); err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if got := totals(t, svc, "u1").Total.Cents; got != 6000 {
		t.Fatalf("after settlement total = %d, want 6000", got)
	}

	pending, partials, err := svc.PendingExpenses(ctx, "u1")
	if err != nil {
		t.Fatalf("PendingExpenses: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("settled expense still pending: %+v", pending)
	}
	if len(partials) != 0 {
		t.Errorf("partial record survived settlement: %+v", partials)
	}
}

func TestRecordPartialPaymentGuards(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	incomeID := create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Income,
		Amount: core.Money{Cents: 100}, Timestamp: time.Now(),
	})
	paidID := create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Expense, SubCategory: core.Living,
		Amount: core.Money{Cents: 100}, Timestamp: time.Now(), PaidStatus: core.Paid,
	})

	if err := svc.RecordPartialPayment(ctx, "u1", incomeID, core.Money{Cents: 50}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("payment on income: err = %v, want ErrValidation", err)
	}
	if err := svc.RecordPartialPayment(ctx, "u1", paidID, core.Money{Cents: 50}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("payment on paid expense: err = %v, want ErrValidation", err)
	}
	if err := svc.RecordPartialPayment(ctx, "u1", "missing", core.Money{Cents: 50}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("payment on missing id: err = %v, want ErrNotFound", err)
	}
	if err := svc.RecordPartialPayment(ctx, "u2", paidID, core.Money{Cents: 50}); !errors.Is(err, core.ErrAuth) {
		t.Errorf("payment on foreign id: err = %v, want ErrAuth", err)
	}
}

func TestMarkFullyPaidDeductsResidual(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()

	id := create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Expense, SubCategory: core.Bills,
		Amount: core.Money{Cents: 4000}, Timestamp: time.Now(), PaidStatus: core.Unpaid,
	})
	if err := svc.RecordPartialPayment(ctx, "u1", id, core.Money{Cents: 1500}); err != nil {
		t.Fatalf("partial: %v", err)
	}

	if err := svc.MarkFullyPaid(ctx, "u1", id); err != nil {
		t.Fatalf("MarkFullyPaid: %v", err)
	}
	if got := totals(t, svc, "u1").Total.Cents; got != -4000 {
		t.Errorf("total = %d, want -4000", got)
	}

	// Second settle must not deduct again.
	if err := svc.MarkFullyPaid(ctx, "u1", id); err != nil {
		t.Fatalf("second MarkFullyPaid: %v", err)
	}
	if got := totals(t, svc, "u1").Total.Cents; got != -4000 {
		t.Errorf("total after repeat settle = %d, want -4000", got)
	}

	settled := 0
	for _, e := range pub.events {
		if e.Kind == amqp.EventSettled {
			settled++
		}
	}
	if settled != 1 {
		t.Errorf("settled events = %d, want 1", settled)
	}
}

func TestGivingLowersBothTotals(t *testing.T) {
	svc, _ := newService(t)

	create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Income,
		Amount: core.Money{Cents: 10000}, Timestamp: time.Now(),
	})
	create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Giving, SubCategory: core.Gifting,
		Amount: core.Money{Cents: 300}, Timestamp: time.Now(),
	})

	got := totals(t, svc, "u1")
	if got.Total.Cents != 9700 || got.GivingTotal.Cents != 700 {
		t.Errorf("totals = %d/%d, want 9700/700", got.Total.Cents, got.GivingTotal.Cents)
	}
}

func TestWipeAllData(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()

	create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Income,
		Amount: core.Money{Cents: 10000}, Timestamp: time.Now(),
	})
	id := create(t, svc, core.Transaction{
		OwnerID: "u1", Category: core.Expense, SubCategory: core.Bills,
		Amount: core.Money{Cents: 4000}, Timestamp: time.Now(), PaidStatus: core.Unpaid,
	})
	if err := svc.RecordPartialPayment(ctx, "u1", id, core.Money{Cents: 1000}); err != nil {
		t.Fatalf("partial: %v", err)
	}

	report, err := svc.WipeAllData(ctx, "u1")
	if err != nil {
		t.Fatalf("WipeAllData: %v", err)
	}
	if report.TransactionsWiped != 2 || report.PartialsWiped != 1 {
		t.Errorf("report = %+v, want 2 transactions and 1 partial", report)
	}

	got := totals(t, svc, "u1")
	if got.Total.Cents != 0 || got.GivingTotal.Cents != 0 {
		t.Errorf("totals after wipe = %+v, want zeroes", got)
	}

	last := pub.events[len(pub.events)-1]
	if last.Kind != amqp.EventWiped || last.UserID != "u1" {
		t.Errorf("last event = %+v, want wiped for u1", last)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(memory.New("EUR"), pub)

	id, err := svc.CreateTransaction(context.Background(), core.Transaction{
		OwnerID: "u1", Category: core.Income,
		Amount: core.Money{Cents: 100}, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if id == "" {
		t.Error("expected an id despite publish failure")
	}
}

func TestNilPublisherIsFine(t *testing.T) {
	svc := NewLedgerService(memory.New("EUR"), nil)

	if _, err := svc.CreateTransaction(context.Background(), core.Transaction{
		OwnerID: "u1", Category: core.Income,
		Amount: core.Money{Cents: 100}, Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("CreateTransaction with nil publisher: %v", err)
	}
}

func TestSetCurrency(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.SetCurrency(ctx, "u1", ""); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty currency: err = %v, want ErrValidation", err)
	}
	if err := svc.SetCurrency(ctx, "u1", "USD"); err != nil {
		t.Fatalf("SetCurrency: %v", err)
	}
	if got := totals(t, svc, "u1").Currency; got != "USD" {
		t.Errorf("currency = %q, want USD", got)
	}
}
