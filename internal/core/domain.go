package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  Category = "income"
	Expense Category = "expense"
	Giving  Category = "giving"
)

const (
	Living   SubCategory = "Living"
	Bills    SubCategory = "Bills"
	Personal SubCategory = "Personal"
	Gifting  SubCategory = "Gifting"
)

const (
	PaidUnset PaidStatus = ""
	Unpaid    PaidStatus = "unpaid"
	Paid      PaidStatus = "paid"
)

type (
	Category    string
	SubCategory string
	PaidStatus  string

	Money struct {
		Cents int64
	}

	// Transaction is a single ledger entry. Timestamp is set at creation
	// and never changes; PaidStatus is meaningful for expenses only.
	Transaction struct {
		ID          string
		OwnerID     string
		Category    Category
		SubCategory SubCategory
		Amount      Money
		Beneficiary string
		Timestamp   time.Time
		PaidStatus  PaidStatus
	}

	// PartialPayment tracks the cumulative amount paid toward an unpaid
	// expense. The record exists only while 0 < PaidAmount < the
	// transaction amount; settlement deletes it.
	PartialPayment struct {
		TransactionID string
		OwnerID       string
		PaidAmount    Money
	}

	// Totals is the per-user running balance record.
	Totals struct {
		OwnerID     string
		Total       Money
		GivingTotal Money
		Currency    string
	}
)

func Categories() []Category {
	return []Category{Income, Expense, Giving}
}

func SubCategories() []SubCategory {
	return []SubCategory{Living, Bills, Personal, Gifting}
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func (s SubCategory) Valid() bool {
	for _, known := range SubCategories() {
		if s == known {
			return true
		}
	}
	return false
}

// Settled reports whether the transaction has no outstanding balance
// effect left to apply. Income and giving settle at creation.
func (t Transaction) Settled() bool {
	if t.Category != Expense {
		return true
	}
	return t.PaidStatus == Paid
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Neg returns the negated amount.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// GTE reports whether m >= o.
func (m Money) GTE(o Money) bool {
	return m.Cents >= o.Cents
}

// Field-level validation failures. Each wraps ErrValidation so callers
// classifying with errors.Is see the same kind everywhere.
var (
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidCategory    = fmt.Errorf("%w: invalid category", ErrValidation)
	ErrMissingSubCategory = fmt.Errorf("%w: missing subcategory", ErrValidation)
	ErrInvalidSubCategory = fmt.Errorf("%w: invalid subcategory", ErrValidation)
	ErrInvalidPaidStatus  = fmt.Errorf("%w: invalid paid status", ErrValidation)
	ErrMissingOwner       = fmt.Errorf("%w: missing owner", ErrValidation)
)

// Validate checks the creation invariants: positive amount, a known
// category, and a subcategory exactly when the category requires one.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	switch t.Category {
	case Income:
		if t.SubCategory != "" {
			return ErrInvalidSubCategory
		}
		if t.PaidStatus != PaidUnset {
			return ErrInvalidPaidStatus
		}
	case Expense:
		if t.SubCategory == "" {
			return ErrMissingSubCategory
		}
		if !t.SubCategory.Valid() {
			return ErrInvalidSubCategory
		}
		if t.PaidStatus != Unpaid && t.PaidStatus != Paid {
			return ErrInvalidPaidStatus
		}
	case Giving:
		if t.SubCategory == "" {
			return ErrMissingSubCategory
		}
		if !t.SubCategory.Valid() {
			return ErrInvalidSubCategory
		}
		if t.PaidStatus != PaidUnset {
			return ErrInvalidPaidStatus
		}
	}
	return nil
}
