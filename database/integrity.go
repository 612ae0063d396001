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
	"time"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

// RegisterSourceRecord registers a settled business record so the auditor
// can map ledger entries back to it. Re-registering the same record is a
// no-op.
func (d Datasource) RegisterSourceRecord(record *model.SourceRecord) error {
	record.CreatedAt = time.Now()
	_, err := d.Conn.Exec(`
		INSERT INTO source_records (source_type, source_id, settled, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_type, source_id) DO UPDATE SET settled = EXCLUDED.settled
	`, record.SourceType, record.SourceID, record.Settled, record.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to register source record", err)
	}
	return nil
}

// GetNegativeBalances returns every wallet whose folded equity is below
// zero. A healthy ledger returns nothing here.
func (d Datasource) GetNegativeBalances(ctx context.Context) ([]*model.Balance, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT owner_type, owner_id, currency,
			COALESCE(SUM(CASE WHEN type IN ('CREDIT', 'REFUND') THEN amount_cents WHEN type = 'DEBIT' THEN -amount_cents ELSE 0 END), 0) AS equity
		FROM ledger_entries
		GROUP BY owner_type, owner_id, currency
		HAVING COALESCE(SUM(CASE WHEN type IN ('CREDIT', 'REFUND') THEN amount_cents WHEN type = 'DEBIT' THEN -amount_cents ELSE 0 END), 0) < 0
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan for negative balances", err)
	}
	defer rows.Close()

	balances := []*model.Balance{}
	for rows.Next() {
		balance := model.Balance{ComputedAt: time.Now()}
		err = rows.Scan(&balance.OwnerType, &balance.OwnerID, &balance.Currency, &balance.EquityCents)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan negative balance", err)
		}
		balances = append(balances, &balance)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while scanning for negative balances", err)
	}
	return balances, nil
}

// GetOrphanEntries returns ledger entries whose source reference resolves to
// neither a registered source record nor a payout transaction. ADJUSTMENT
// entries reference the transaction they compensate and are checked through
// the payout join like PAYOUT entries.
func (d Datasource) GetOrphanEntries(ctx context.Context) ([]*model.LedgerEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT le.entry_id, le.owner_type, le.owner_id, le.currency, le.type, le.source_type, le.source_id, le.amount_cents, le.created_at
		FROM ledger_entries le
		LEFT JOIN source_records sr ON sr.source_type = le.source_type AND sr.source_id = le.source_id
		LEFT JOIN payout_transactions pt ON le.source_type IN ('PAYOUT', 'ADJUSTMENT') AND pt.transaction_id = le.source_id
		WHERE le.source_id IS NOT NULL AND le.source_id <> ''
			AND sr.id IS NULL AND pt.id IS NULL
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan for orphan entries", err)
	}
	defer rows.Close()

	entries := []*model.LedgerEntry{}
	for rows.Next() {
		entry := model.LedgerEntry{}
		err = rows.Scan(&entry.EntryID, &entry.OwnerType, &entry.OwnerID, &entry.Currency,
			&entry.Type, &entry.SourceType, &entry.SourceID, &entry.AmountCents, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan orphan entry", err)
		}
		entries = append(entries, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while scanning for orphan entries", err)
	}
	return entries, nil
}

// GetUnmappedSources returns settled source records that never produced a
// ledger entry.
func (d Datasource) GetUnmappedSources(ctx context.Context) ([]*model.SourceRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT sr.source_type, sr.source_id, sr.settled, sr.created_at
		FROM source_records sr
		LEFT JOIN ledger_entries le ON le.source_type = sr.source_type AND le.source_id = sr.source_id
		WHERE sr.settled = TRUE AND le.id IS NULL
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan for unmapped sources", err)
	}
	defer rows.Close()

	records := []*model.SourceRecord{}
	for rows.Next() {
		record := model.SourceRecord{}
		err = rows.Scan(&record.SourceType, &record.SourceID, &record.Settled, &record.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan unmapped source", err)
		}
		records = append(records, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while scanning for unmapped sources", err)
	}
	return records, nil
}
