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

package vault

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/internal/cache"
	"github.com/propadhq/vault/model"
)

const balanceCacheTTL = 5 * time.Minute

// EntryInput carries the caller-supplied fields of a ledger movement. The
// entry type is picked by the operation, never by the caller.
type EntryInput struct {
	OwnerType   model.OwnerType        `json:"owner_type"`
	OwnerID     string                 `json:"owner_id"`
	Currency    string                 `json:"currency"`
	AmountCents int64                  `json:"amount_cents"`
	SourceType  model.SourceType       `json:"source_type"`
	SourceID    string                 `json:"source_id"`
	Description string                 `json:"description"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

// Credit appends a CREDIT entry, increasing equity.
func (v *Vault) Credit(ctx context.Context, input EntryInput) (*model.LedgerEntry, error) {
	return v.applyEntry(ctx, model.EntryCredit, input)
}

// Debit appends a DEBIT entry. The append fails with INSUFFICIENT_FUNDS when
// the withdrawable balance cannot cover the amount.
func (v *Vault) Debit(ctx context.Context, input EntryInput) (*model.LedgerEntry, error) {
	return v.applyEntry(ctx, model.EntryDebit, input)
}

// Hold appends a HOLD entry, locking funds without spending them. Holds are
// subject to the same sufficiency check as debits.
func (v *Vault) Hold(ctx context.Context, input EntryInput) (*model.LedgerEntry, error) {
	return v.applyEntry(ctx, model.EntryHold, input)
}

// Release appends a RELEASE entry, unlocking previously held funds.
func (v *Vault) Release(ctx context.Context, input EntryInput) (*model.LedgerEntry, error) {
	return v.applyEntry(ctx, model.EntryRelease, input)
}

// Refund appends a REFUND entry, returning previously spent funds.
func (v *Vault) Refund(ctx context.Context, input EntryInput) (*model.LedgerEntry, error) {
	return v.applyEntry(ctx, model.EntryRefund, input)
}

func (v *Vault) applyEntry(ctx context.Context, entryType model.EntryType, input EntryInput) (*model.LedgerEntry, error) {
	if input.AmountCents <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidAmount, "Amount must be positive", nil)
	}

	entry := &model.LedgerEntry{
		OwnerType:   input.OwnerType,
		OwnerID:     input.OwnerID,
		Currency:    input.Currency,
		Type:        entryType,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		AmountCents: input.AmountCents,
		Description: input.Description,
		MetaData:    input.MetaData,
	}

	entry, balance, err := v.datasource.RecordEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	v.refreshBalanceCache(ctx, balance)
	v.postEntryActions(entry)
	return entry, nil
}

// RegisterSourceRecord registers a business record (reward, commission, ...)
// for the integrity auditor to cross-check against. Only settled records are
// expected to have ledger entries.
func (v *Vault) RegisterSourceRecord(sourceType model.SourceType, sourceID string, settled bool) error {
	return v.datasource.RegisterSourceRecord(&model.SourceRecord{
		SourceType: sourceType,
		SourceID:   sourceID,
		Settled:    settled,
	})
}

func (v *Vault) refreshBalanceCache(ctx context.Context, balance *model.Balance) {
	if v.cache == nil || balance == nil {
		return
	}
	key := cache.BalanceKey(balance.OwnerID, balance.Currency)
	if err := v.cache.Set(ctx, key, balance, balanceCacheTTL); err != nil {
		logrus.Warnf("failed to refresh balance cache for %s: %v", key, err)
	}
}

func (v *Vault) postEntryActions(entry *model.LedgerEntry) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   "ledger.entry",
			Payload: entry,
		})
		if err != nil {
			logrus.Error(err)
		}
	}()
}
