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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propadhq/vault/model"
)

func TestRecoverStuckPayouts(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_transactions").
		WillReturnRows(payoutTransactionRows("pyt_9", "pyr_9", 5000, model.PayoutProcessing, "", ""))
	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_9", "user-1", 5000, model.MethodEcocash, model.PayoutProcessing))
	mock.ExpectExec("UPDATE payout_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectEntryAppend(mock, totalsRows(10000, 5000, 0, 0, 0))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAuditLog(mock)

	count, err := v.RecoverStuckPayouts(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverStuckPayouts_SkipsAlreadySettled(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_transactions").
		WillReturnRows(payoutTransactionRows("pyt_9", "pyr_9", 5000, model.PayoutProcessing, "", ""))
	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_9", "user-1", 5000, model.MethodEcocash, model.PayoutFailed))

	// Another worker settled the transaction first: zero rows claimed, no
	// compensation.
	mock.ExpectExec("UPDATE payout_transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := v.RecoverStuckPayouts(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverStuckPayouts_NothingStuck(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "request_id", "amount_cents", "currency", "method", "status", "gateway_ref", "failure_reason", "meta_data", "processed_at", "created_at"}))

	count, err := v.RecoverStuckPayouts(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStuckPayoutProcessor_StartStop(t *testing.T) {
	v, _ := newTestVault(t)

	processor := NewStuckPayoutProcessor(v)
	assert.False(t, processor.IsRunning())

	processor.Start(context.Background())
	assert.True(t, processor.IsRunning())

	// Starting twice is a no-op.
	processor.Start(context.Background())
	assert.True(t, processor.IsRunning())

	processor.Stop()
	assert.False(t, processor.IsRunning())
}
