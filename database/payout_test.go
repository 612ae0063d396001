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
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

func TestCreatePayoutAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	account := &model.PayoutAccount{
		OwnerType:   model.OwnerUser,
		OwnerID:     "user-1",
		Method:      model.MethodEcocash,
		DisplayName: "My EcoCash",
		Details:     map[string]interface{}{"phone": "+263771234567"},
	}

	mock.ExpectExec("INSERT INTO payout_accounts").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreatePayoutAccount(account)
	require.NoError(t, err)
	assert.NotEmpty(t, created.AccountID)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
}

func TestCreatePayoutRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	request := &model.PayoutRequest{
		OwnerType:       model.OwnerUser,
		OwnerID:         "user-1",
		Currency:        "USD",
		AmountCents:     5000,
		Method:          model.MethodEcocash,
		PayoutAccountID: "pya_1",
	}

	mock.ExpectExec("INSERT INTO payout_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreatePayoutRequest(request)
	require.NoError(t, err)
	assert.NotEmpty(t, created.RequestID)
	assert.Equal(t, model.PayoutRequested, created.Status)
}

func TestCreatePayoutRequest_MissingAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	request := &model.PayoutRequest{
		OwnerType:       model.OwnerUser,
		OwnerID:         "user-1",
		Currency:        "USD",
		AmountCents:     5000,
		Method:          model.MethodEcocash,
		PayoutAccountID: "pya_missing",
	}

	mock.ExpectExec("INSERT INTO payout_requests").
		WillReturnError(&pq.Error{Code: "23503", Message: "foreign_key_violation"})

	_, err = ds.CreatePayoutRequest(request)
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}

func TestUpdatePayoutRequestStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE payout_requests").
		WithArgs("pyr_1", model.PayoutApproved, pq.Array([]string{"REQUESTED", "REVIEW"})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdatePayoutRequestStatus(context.Background(), "pyr_1",
		[]model.PayoutStatus{model.PayoutRequested, model.PayoutReview}, model.PayoutApproved)
	assert.NoError(t, err)
}

func TestUpdatePayoutRequestStatus_IllegalTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// The guard misses, so the current status is fetched for the error.
	rows := sqlmock.NewRows([]string{"id", "request_id", "owner_type", "owner_id", "currency", "amount_cents", "method", "payout_account_id", "status", "tx_ref", "created_at"}).
		AddRow(1, "pyr_1", "USER", "user-1", "USD", 5000, "ECOCASH", "pya_1", "PAID", "", time.Now())
	mock.ExpectQuery("FROM payout_requests").
		WithArgs("pyr_1").
		WillReturnRows(rows)

	err = ds.UpdatePayoutRequestStatus(context.Background(), "pyr_1",
		[]model.PayoutStatus{model.PayoutRequested}, model.PayoutCancelled)
	assert.True(t, apierror.Is(err, apierror.ErrInvalidState))
}

func TestCreatePayoutTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	transaction := &model.PayoutTransaction{
		RequestID:   "pyr_1",
		AmountCents: 5000,
		Currency:    "USD",
		Method:      model.MethodEcocash,
	}

	mock.ExpectExec("INSERT INTO payout_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreatePayoutTransaction(context.Background(), transaction)
	require.NoError(t, err)
	assert.NotEmpty(t, created.TransactionID)
	assert.Equal(t, model.PayoutProcessing, created.Status)
}

func TestResolvePayoutTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE payout_transactions").
		WithArgs("pyt_1", model.PayoutPaid, "PN-REF-1", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.ResolvePayoutTransaction(context.Background(), "pyt_1", model.PayoutPaid, "PN-REF-1", "")
	assert.NoError(t, err)
}

func TestResolvePayoutTransaction_AlreadySettled(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE payout_transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.ResolvePayoutTransaction(context.Background(), "pyt_1", model.PayoutFailed, "", "timeout")
	assert.True(t, apierror.Is(err, apierror.ErrInvalidState))
}

func TestResolvePayoutTransaction_RejectsNonTerminalTarget(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	err = ds.ResolvePayoutTransaction(context.Background(), "pyt_1", model.PayoutProcessing, "", "")
	assert.True(t, apierror.Is(err, apierror.ErrInvalidState))
}

func TestGetStuckProcessingTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	cutoff := time.Now().Add(-30 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "transaction_id", "request_id", "amount_cents", "currency", "method", "status", "gateway_ref", "failure_reason", "meta_data", "processed_at", "created_at"}).
		AddRow(1, "pyt_1", "pyr_1", 5000, "USD", "ECOCASH", "PROCESSING", "", "", []byte(`{}`), nil, cutoff.Add(-time.Hour))

	mock.ExpectQuery("FROM payout_transactions").
		WithArgs(cutoff).
		WillReturnRows(rows)

	stuck, err := ds.GetStuckProcessingTransactions(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "pyt_1", stuck[0].TransactionID)
	assert.Equal(t, model.PayoutProcessing, stuck[0].Status)
}

func TestGetTransactionsForRequest_InsertionOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// Two attempts written in the same timestamp tick; the id tiebreak keeps
	// the second insert last so callers reading the latest attempt see it.
	createdAt := time.Now()
	rows := sqlmock.NewRows([]string{"id", "transaction_id", "request_id", "amount_cents", "currency", "method", "status", "gateway_ref", "failure_reason", "meta_data", "processed_at", "created_at"}).
		AddRow(1, "pyt_1", "pyr_1", 5000, "USD", "ECOCASH", "FAILED", "", "declined", []byte(`{}`), nil, createdAt).
		AddRow(2, "pyt_2", "pyr_1", 5000, "USD", "ECOCASH", "PAID", "PN-REF-2", "", []byte(`{}`), nil, createdAt)

	mock.ExpectQuery("ORDER BY created_at ASC, id ASC").
		WithArgs("pyr_1").
		WillReturnRows(rows)

	transactions, err := ds.GetTransactionsForRequest("pyr_1")
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, "pyt_2", transactions[1].TransactionID)
	assert.Equal(t, model.PayoutPaid, transactions[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
