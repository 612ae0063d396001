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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

const ledgerTotalsQuery = `
	SELECT
		COALESCE(SUM(CASE WHEN type = 'CREDIT' THEN amount_cents ELSE 0 END), 0) AS credits,
		COALESCE(SUM(CASE WHEN type = 'DEBIT' THEN amount_cents ELSE 0 END), 0) AS debits,
		COALESCE(SUM(CASE WHEN type = 'HOLD' THEN amount_cents ELSE 0 END), 0) AS holds,
		COALESCE(SUM(CASE WHEN type = 'RELEASE' THEN amount_cents ELSE 0 END), 0) AS releases,
		COALESCE(SUM(CASE WHEN type = 'REFUND' THEN amount_cents ELSE 0 END), 0) AS refunds
	FROM ledger_entries
	WHERE owner_type = $1 AND owner_id = $2 AND currency = $3`

// walletLockKey derives the advisory lock key for one (owner, currency)
// wallet. Appends for different wallets never contend.
func walletLockKey(ownerID, currency string) string {
	return fmt.Sprintf("%s:%s", ownerID, currency)
}

// RecordEntry appends one entry to the ledger. The fold, the sufficiency
// check for DEBIT and HOLD entries and the insert all happen inside one
// database transaction under a per-wallet advisory lock, so two concurrent
// debits cannot both pass the check against the same balance.
func (d Datasource) RecordEntry(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, *model.Balance, error) {
	if err := entry.Validate(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	entry.EntryID = model.GenerateUUIDWithSuffix("led")
	entry.CreatedAt = time.Now()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, walletLockKey(entry.OwnerID, entry.Currency))
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire wallet lock", err)
	}

	var totals model.LedgerTotals
	err = tx.QueryRowContext(ctx, ledgerTotalsQuery, entry.OwnerType, entry.OwnerID, entry.Currency).
		Scan(&totals.Credits, &totals.Debits, &totals.Holds, &totals.Releases, &totals.Refunds)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute balance", err)
	}

	balance := model.NewBalance(entry.OwnerType, entry.OwnerID, entry.Currency, totals)
	if entry.Type == model.EntryDebit || entry.Type == model.EntryHold {
		if !balance.CanDebit(entry.AmountCents) {
			return nil, nil, apierror.NewAPIError(apierror.ErrInsufficientFunds,
				fmt.Sprintf("Insufficient funds: withdrawable %d, requested %d", balance.WithdrawableCents, entry.AmountCents), nil)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (entry_id, owner_type, owner_id, currency, type, source_type, source_id, amount_cents, description, meta_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.EntryID, entry.OwnerType, entry.OwnerID, entry.Currency, entry.Type, entry.SourceType,
		entry.SourceID, entry.AmountCents, entry.Description, metaDataJSON, entry.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, nil, apierror.NewAPIError(apierror.ErrConflict, "Ledger entry with this ID already exists", err)
		}
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record ledger entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit ledger entry", err)
	}

	totals.Apply(entry)
	return entry, model.NewBalance(entry.OwnerType, entry.OwnerID, entry.Currency, totals), nil
}

// GetBalance folds the ledger into the current balance for one wallet. An
// owner with no entries gets an all-zero balance, not an error.
func (d Datasource) GetBalance(ctx context.Context, ownerType model.OwnerType, ownerID, currency string) (*model.Balance, error) {
	var totals model.LedgerTotals
	err := d.Conn.QueryRowContext(ctx, ledgerTotalsQuery, ownerType, ownerID, currency).
		Scan(&totals.Credits, &totals.Debits, &totals.Holds, &totals.Releases, &totals.Refunds)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute balance", err)
	}
	return model.NewBalance(ownerType, ownerID, currency, totals), nil
}

// GetLedgerEntries lists a wallet statement, newest first.
func (d Datasource) GetLedgerEntries(ctx context.Context, ownerID, currency string, limit, offset int) ([]*model.LedgerEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, entry_id, owner_type, owner_id, currency, type, source_type, COALESCE(source_id, ''), amount_cents, COALESCE(description, ''), meta_data, created_at
		FROM ledger_entries
		WHERE owner_id = $1 AND currency = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, ownerID, currency, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	entries := []*model.LedgerEntry{}
	for rows.Next() {
		entry := model.LedgerEntry{}
		var metaDataJSON []byte
		err = rows.Scan(&entry.ID, &entry.EntryID, &entry.OwnerType, &entry.OwnerID, &entry.Currency,
			&entry.Type, &entry.SourceType, &entry.SourceID, &entry.AmountCents, &entry.Description,
			&metaDataJSON, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry", err)
		}
		if len(metaDataJSON) > 0 {
			if err = json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		entries = append(entries, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger entries", err)
	}
	return entries, nil
}

func (d Datasource) GetLedgerEntryByID(entryID string) (*model.LedgerEntry, error) {
	entry := model.LedgerEntry{}
	var metaDataJSON []byte

	row := d.Conn.QueryRow(`
		SELECT id, entry_id, owner_type, owner_id, currency, type, source_type, COALESCE(source_id, ''), amount_cents, COALESCE(description, ''), meta_data, created_at
		FROM ledger_entries
		WHERE entry_id = $1
	`, entryID)

	err := row.Scan(&entry.ID, &entry.EntryID, &entry.OwnerType, &entry.OwnerID, &entry.Currency,
		&entry.Type, &entry.SourceType, &entry.SourceID, &entry.AmountCents, &entry.Description,
		&metaDataJSON, &entry.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Ledger entry not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entry", err)
	}

	if len(metaDataJSON) > 0 {
		if err = json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return &entry, nil
}
