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

	"github.com/sirupsen/logrus"

	"github.com/propadhq/vault/internal/cache"
	"github.com/propadhq/vault/model"
)

const (
	defaultStatementLimit = 50
	maxStatementLimit     = 200
)

// GetBalance folds the ledger into the authoritative balance for one wallet.
// Decisions about money always go through this, never through the cache.
func (v *Vault) GetBalance(ctx context.Context, ownerType model.OwnerType, ownerID, currency string) (*model.Balance, error) {
	return v.datasource.GetBalance(ctx, ownerType, ownerID, currency)
}

// GetCachedBalance serves display reads. It returns a cached snapshot when
// one exists and falls back to a fresh fold otherwise.
func (v *Vault) GetCachedBalance(ctx context.Context, ownerType model.OwnerType, ownerID, currency string) (*model.Balance, error) {
	if v.cache != nil {
		var cached model.Balance
		if err := v.cache.Get(ctx, cache.BalanceKey(ownerID, currency), &cached); err != nil {
			logrus.Warnf("balance cache read failed for %s: %v", ownerID, err)
		} else if cached.OwnerID != "" {
			return &cached, nil
		}
	}

	balance, err := v.datasource.GetBalance(ctx, ownerType, ownerID, currency)
	if err != nil {
		return nil, err
	}
	v.refreshBalanceCache(ctx, balance)
	return balance, nil
}

// GetStatement lists a wallet's ledger entries, newest first.
func (v *Vault) GetStatement(ctx context.Context, ownerID, currency string, limit, offset int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultStatementLimit
	}
	if limit > maxStatementLimit {
		limit = maxStatementLimit
	}
	if offset < 0 {
		offset = 0
	}
	return v.datasource.GetLedgerEntries(ctx, ownerID, currency, limit, offset)
}

// GetLedgerEntry fetches a single entry by its ID.
func (v *Vault) GetLedgerEntry(entryID string) (*model.LedgerEntry, error) {
	return v.datasource.GetLedgerEntryByID(entryID)
}
