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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

func totalsRows(credits, debits, holds, releases, refunds int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"credits", "debits", "holds", "releases", "refunds"}).
		AddRow(credits, debits, holds, releases, refunds)
}

func TestRecordEntry_Credit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	entry := &model.LedgerEntry{
		OwnerType:   model.OwnerUser,
		OwnerID:     "user-1",
		Currency:    "USD",
		Type:        model.EntryCredit,
		SourceType:  model.SourceReward,
		SourceID:    "reward-1",
		AmountCents: 5000,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("user-1:USD").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM ledger_entries").
		WithArgs(model.OwnerUser, "user-1", "USD").
		WillReturnRows(totalsRows(0, 0, 0, 0, 0))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	recorded, balance, err := ds.RecordEntry(context.Background(), entry)
	assert.NoError(t, err)
	assert.NotEmpty(t, recorded.EntryID)
	assert.WithinDuration(t, time.Now(), recorded.CreatedAt, time.Second)
	assert.Equal(t, int64(5000), balance.EquityCents)
	assert.Equal(t, int64(5000), balance.WithdrawableCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEntry_DebitInsufficientFunds(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	entry := &model.LedgerEntry{
		OwnerType:   model.OwnerUser,
		OwnerID:     "user-1",
		Currency:    "USD",
		Type:        model.EntryDebit,
		SourceType:  model.SourcePayout,
		SourceID:    "pyt_1",
		AmountCents: 8000,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("user-1:USD").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 5000 equity with 2000 on hold leaves 3000 withdrawable.
	mock.ExpectQuery("FROM ledger_entries").
		WithArgs(model.OwnerUser, "user-1", "USD").
		WillReturnRows(totalsRows(5000, 0, 2000, 0, 0))
	mock.ExpectRollback()

	_, _, err = ds.RecordEntry(context.Background(), entry)
	assert.True(t, apierror.Is(err, apierror.ErrInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEntry_DebitExactBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	entry := &model.LedgerEntry{
		OwnerType:   model.OwnerUser,
		OwnerID:     "user-1",
		Currency:    "USD",
		Type:        model.EntryDebit,
		SourceType:  model.SourcePayout,
		SourceID:    "pyt_1",
		AmountCents: 3000,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("user-1:USD").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM ledger_entries").
		WithArgs(model.OwnerUser, "user-1", "USD").
		WillReturnRows(totalsRows(5000, 0, 2000, 0, 0))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, balance, err := ds.RecordEntry(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balance.EquityCents)
	assert.Equal(t, int64(0), balance.WithdrawableCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEntry_RejectsInvalidAmount(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	entry := &model.LedgerEntry{
		OwnerType:   model.OwnerUser,
		OwnerID:     "user-1",
		Currency:    "USD",
		Type:        model.EntryCredit,
		SourceType:  model.SourceReward,
		AmountCents: -100,
	}

	_, _, err = ds.RecordEntry(context.Background(), entry)
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
}

func TestGetBalance_EmptyLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM ledger_entries").
		WithArgs(model.OwnerUser, "user-9", "USD").
		WillReturnRows(totalsRows(0, 0, 0, 0, 0))

	balance, err := ds.GetBalance(context.Background(), model.OwnerUser, "user-9", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.EquityCents)
	assert.Equal(t, int64(0), balance.LockedCents)
	assert.Equal(t, int64(0), balance.WithdrawableCents)
}

func TestGetBalance_FoldsAllEntryTypes(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM ledger_entries").
		WithArgs(model.OwnerAgency, "agency-1", "USD").
		WillReturnRows(totalsRows(10000, 3000, 4000, 1000, 500))

	balance, err := ds.GetBalance(context.Background(), model.OwnerAgency, "agency-1", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(7500), balance.EquityCents)
	assert.Equal(t, int64(3000), balance.LockedCents)
	assert.Equal(t, int64(4500), balance.WithdrawableCents)
}

func TestGetLedgerEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "entry_id", "owner_type", "owner_id", "currency", "type", "source_type", "source_id", "amount_cents", "description", "meta_data", "created_at"}).
		AddRow(2, "led_2", "USER", "user-1", "USD", "DEBIT", "PAYOUT", "pyt_1", 2000, "", []byte(`{}`), now).
		AddRow(1, "led_1", "USER", "user-1", "USD", "CREDIT", "REWARD", "reward-1", 5000, "signup reward", []byte(`{"campaign":"q3"}`), now.Add(-time.Hour))

	mock.ExpectQuery("FROM ledger_entries").
		WithArgs("user-1", "USD", 50, 0).
		WillReturnRows(rows)

	entries, err := ds.GetLedgerEntries(context.Background(), "user-1", "USD", 50, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryDebit, entries[0].Type)
	assert.Equal(t, "q3", entries[1].MetaData["campaign"])
}

func TestGetLedgerEntryByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM ledger_entries").
		WithArgs("led_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = ds.GetLedgerEntryByID("led_missing")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}
