package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propadhq/vault/model"
)

func TestRegisterSourceRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO source_records").
		WithArgs(model.SourceReward, "reward-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RegisterSourceRecord(&model.SourceRecord{
		SourceType: model.SourceReward,
		SourceID:   "reward-1",
		Settled:    true,
	})
	assert.NoError(t, err)
}

func TestGetNegativeBalances(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"owner_type", "owner_id", "currency", "equity"}).
		AddRow("USER", "user-7", "USD", -1500)
	mock.ExpectQuery("GROUP BY owner_type, owner_id, currency").
		WillReturnRows(rows)

	balances, err := ds.GetNegativeBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "user-7", balances[0].OwnerID)
	assert.Equal(t, int64(-1500), balances[0].EquityCents)
}

func TestGetOrphanEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"entry_id", "owner_type", "owner_id", "currency", "type", "source_type", "source_id", "amount_cents", "created_at"}).
		AddRow("led_9", "USER", "user-2", "USD", "CREDIT", "REWARD", "reward-gone", 2500, time.Now())
	mock.ExpectQuery("LEFT JOIN source_records").
		WillReturnRows(rows)

	entries, err := ds.GetOrphanEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "led_9", entries[0].EntryID)
	assert.Equal(t, "reward-gone", entries[0].SourceID)
}

func TestGetUnmappedSources(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"source_type", "source_id", "settled", "created_at"}).
		AddRow("COMMISSION", "comm-3", true, time.Now())
	mock.ExpectQuery("LEFT JOIN ledger_entries").
		WillReturnRows(rows)

	records, err := ds.GetUnmappedSources(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.SourceCommission, records[0].SourceType)
}

func TestGetAuditLogs(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"id", "audit_id", "action", "actor_id", "target_type", "target_id", "meta_data", "created_at"}).
		AddRow(1, "aud_1", "payout.approved", "admin-1", "payout_request", "pyr_1", []byte(`{}`), time.Now())
	mock.ExpectQuery("FROM audit_logs").
		WithArgs("payout_request", "pyr_1", 20).
		WillReturnRows(rows)

	logs, err := ds.GetAuditLogs("payout_request", "pyr_1", 20)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "payout.approved", logs[0].Action)
}

func TestRecordAuditLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry, err := ds.RecordAuditLog(&model.AuditLog{
		Action:     "payout.requested",
		ActorID:    "user-1",
		TargetType: "payout_request",
		TargetID:   "pyr_1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.AuditID)
}
