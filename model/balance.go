/*
Copyright 2024 Propad Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import "time"

// Balance is derived by folding the ledger for one (owner, currency) pair.
// It is never persisted as a source of truth; the ledger is the truth.
type Balance struct {
	OwnerType         OwnerType `json:"owner_type"`
	OwnerID           string    `json:"owner_id"`
	Currency          string    `json:"currency"`
	EquityCents       int64     `json:"equity_cents"`
	LockedCents       int64     `json:"locked_cents"`
	WithdrawableCents int64     `json:"withdrawable_cents"`
	ComputedAt        time.Time `json:"computed_at"`
}

// LedgerTotals holds the per-type sums for one (owner, currency) pair, as
// read from the store. NewBalance derives the balance figures from it.
type LedgerTotals struct {
	Credits  int64
	Debits   int64
	Holds    int64
	Releases int64
	Refunds  int64
}

// NewBalance folds ledger totals into a balance:
//
//	equity       = credits + refunds - debits
//	locked       = max(0, holds - releases)
//	withdrawable = max(0, equity - locked)
func NewBalance(ownerType OwnerType, ownerID, currency string, totals LedgerTotals) *Balance {
	equity := totals.Credits + totals.Refunds - totals.Debits
	locked := totals.Holds - totals.Releases
	if locked < 0 {
		locked = 0
	}
	withdrawable := equity - locked
	if withdrawable < 0 {
		withdrawable = 0
	}
	return &Balance{
		OwnerType:         ownerType,
		OwnerID:           ownerID,
		Currency:          currency,
		EquityCents:       equity,
		LockedCents:       locked,
		WithdrawableCents: withdrawable,
		ComputedAt:        time.Now(),
	}
}

// Apply folds a single entry into the totals. Summation is order-independent,
// so Apply may be called in any entry order.
func (t *LedgerTotals) Apply(entry *LedgerEntry) {
	switch entry.Type {
	case EntryCredit:
		t.Credits += entry.AmountCents
	case EntryDebit:
		t.Debits += entry.AmountCents
	case EntryHold:
		t.Holds += entry.AmountCents
	case EntryRelease:
		t.Releases += entry.AmountCents
	case EntryRefund:
		t.Refunds += entry.AmountCents
	}
}

// CanDebit reports whether a debit or hold of amountCents would keep the
// withdrawable balance non-negative.
func (b *Balance) CanDebit(amountCents int64) bool {
	return b.WithdrawableCents >= amountCents
}
