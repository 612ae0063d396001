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

import (
	"encoding/json"
	"errors"
	"time"
)

// EntryType is the direction of a ledger entry. Amounts are always positive;
// direction is carried here, never by sign.
type EntryType string

const (
	EntryCredit  EntryType = "CREDIT"
	EntryDebit   EntryType = "DEBIT"
	EntryHold    EntryType = "HOLD"
	EntryRelease EntryType = "RELEASE"
	EntryRefund  EntryType = "REFUND"
)

// SourceType tags the business reason behind a ledger entry.
type SourceType string

const (
	SourceReward       SourceType = "REWARD"
	SourceCommission   SourceType = "COMMISSION"
	SourceAdSpend      SourceType = "AD_SPEND"
	SourcePayout       SourceType = "PAYOUT"
	SourceReferral     SourceType = "REFERRAL"
	SourceAdjustment   SourceType = "ADJUSTMENT"
	SourceVerification SourceType = "VERIFICATION"
)

// OwnerType distinguishes the kinds of wallet owners on the marketplace.
type OwnerType string

const (
	OwnerUser   OwnerType = "USER"
	OwnerAgency OwnerType = "AGENCY"
)

// LedgerEntry is an immutable, append-only record of money movement for one
// (owner, currency) pair. Entries are never updated or deleted; corrections
// append compensating entries.
type LedgerEntry struct {
	ID          int64                  `json:"-"`
	EntryID     string                 `json:"entry_id"`
	OwnerType   OwnerType              `json:"owner_type"`
	OwnerID     string                 `json:"owner_id"`
	Currency    string                 `json:"currency"`
	Type        EntryType              `json:"type"`
	SourceType  SourceType             `json:"source_type"`
	SourceID    string                 `json:"source_id,omitempty"`
	AmountCents int64                  `json:"amount_cents"`
	Description string                 `json:"description,omitempty"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (e *LedgerEntry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks the append-time invariants of an entry.
func (e *LedgerEntry) Validate() error {
	if e.AmountCents <= 0 {
		return errors.New("entry amount must be positive")
	}
	if e.OwnerID == "" {
		return errors.New("entry owner is required")
	}
	if e.Currency == "" {
		return errors.New("entry currency is required")
	}
	switch e.Type {
	case EntryCredit, EntryDebit, EntryHold, EntryRelease, EntryRefund:
	default:
		return errors.New("unknown entry type")
	}
	return nil
}

// SourceRecord is a settled business record (reward, commission, ...) that
// business modules register so the integrity auditor can cross-check ledger
// entries against their originating events.
type SourceRecord struct {
	ID         int64      `json:"-"`
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	Settled    bool       `json:"settled"`
	CreatedAt  time.Time  `json:"created_at"`
}
