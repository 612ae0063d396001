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
	"github.com/brianvoe/gofakeit/v6"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

func payoutRequestRows(requestID, ownerID string, amountCents int64, method model.PayoutMethod, status model.PayoutStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "request_id", "owner_type", "owner_id", "currency", "amount_cents", "method", "payout_account_id", "status", "tx_ref", "created_at"}).
		AddRow(1, requestID, "USER", ownerID, "USD", amountCents, string(method), "pya_1", string(status), "", time.Now())
}

func payoutAccountRows(ownerID string, method model.PayoutMethod, details string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_id", "owner_type", "owner_id", "method", "display_name", "details", "verified_at", "created_at"}).
		AddRow(1, "pya_1", "USER", ownerID, string(method), "Primary", []byte(details), nil, time.Now())
}

func payoutTransactionRows(transactionID, requestID string, amountCents int64, status model.PayoutStatus, gatewayRef, failureReason string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "transaction_id", "request_id", "amount_cents", "currency", "method", "status", "gateway_ref", "failure_reason", "meta_data", "processed_at", "created_at"}).
		AddRow(1, transactionID, requestID, amountCents, "USD", "ECOCASH", string(status), gatewayRef, failureReason, []byte(`{}`), nil, time.Now())
}

func expectAuditLog(mock sqlmock.Sqlmock) {
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestRequestPayout(t *testing.T) {
	v, mock := newTestVault(t)

	ownerID := gofakeit.UUID()

	mock.ExpectQuery("FROM payout_accounts").
		WithArgs("pya_1").
		WillReturnRows(payoutAccountRows(ownerID, model.MethodEcocash, `{"ecocash_number":"+263771234567"}`))
	mock.ExpectQuery("FROM ledger_entries").
		WillReturnRows(totalsRows(10000, 0, 0, 0, 0))
	mock.ExpectExec("INSERT INTO payout_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectAuditLog(mock)

	request, err := v.RequestPayout(context.Background(), PayoutRequestInput{
		OwnerType:       model.OwnerUser,
		OwnerID:         ownerID,
		Currency:        "USD",
		AmountCents:     5000,
		Method:          model.MethodEcocash,
		PayoutAccountID: "pya_1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRequested, request.Status)
	assert.NotEmpty(t, request.RequestID)
}

func TestRequestPayout_BelowMinimum(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.RequestPayout(context.Background(), PayoutRequestInput{
		OwnerType:       model.OwnerUser,
		OwnerID:         "user-1",
		Currency:        "USD",
		AmountCents:     500,
		Method:          model.MethodEcocash,
		PayoutAccountID: "pya_1",
	})
	assert.True(t, apierror.Is(err, apierror.ErrBelowMinimum))
}

func TestRequestPayout_InsufficientFunds(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_accounts").
		WillReturnRows(payoutAccountRows("user-1", model.MethodEcocash, `{"ecocash_number":"+263771234567"}`))
	mock.ExpectQuery("FROM ledger_entries").
		WillReturnRows(totalsRows(2000, 0, 0, 0, 0))

	_, err := v.RequestPayout(context.Background(), PayoutRequestInput{
		OwnerType:       model.OwnerUser,
		OwnerID:         "user-1",
		Currency:        "USD",
		AmountCents:     5000,
		Method:          model.MethodEcocash,
		PayoutAccountID: "pya_1",
	})
	assert.True(t, apierror.Is(err, apierror.ErrInsufficientFunds))
}

func TestRequestPayout_ForeignAccount(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_accounts").
		WillReturnRows(payoutAccountRows("someone-else", model.MethodEcocash, `{"ecocash_number":"+263771234567"}`))

	_, err := v.RequestPayout(context.Background(), PayoutRequestInput{
		OwnerType:       model.OwnerUser,
		OwnerID:         "user-1",
		Currency:        "USD",
		AmountCents:     5000,
		Method:          model.MethodEcocash,
		PayoutAccountID: "pya_1",
	})
	assert.True(t, apierror.Is(err, apierror.ErrForbidden))
}

func TestApprovePayout_RechecksBalance(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_1", "user-1", 5000, model.MethodEcocash, model.PayoutRequested))
	mock.ExpectQuery("FROM ledger_entries").
		WillReturnRows(totalsRows(2000, 0, 0, 0, 0))

	err := v.ApprovePayout(context.Background(), "pyr_1", "admin-1")
	assert.True(t, apierror.Is(err, apierror.ErrInsufficientFunds))
}

func TestApprovePayout_NoTransactionUntilProcessing(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_1", "user-1", 5000, model.MethodEcocash, model.PayoutRequested))
	mock.ExpectQuery("FROM ledger_entries").
		WillReturnRows(totalsRows(10000, 0, 0, 0, 0))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAuditLog(mock)

	err := v.ApprovePayout(context.Background(), "pyr_1", "admin-1")
	require.NoError(t, err)

	// The attempt record only appears once processing starts; approval must
	// not touch payout_transactions.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessPayout_Success(t *testing.T) {
	v, mock := newTestVault(t)

	// WALLET payouts settle through the manual adapter, no external call.
	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_1", "user-1", 5000, model.MethodWallet, model.PayoutApproved))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payout_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectAuditLog(mock)

	// The debit lands before the provider call.
	expectEntryAppend(mock, totalsRows(10000, 0, 0, 0, 0))

	mock.ExpectQuery("FROM payout_accounts").
		WillReturnRows(payoutAccountRows("user-1", model.MethodWallet, `{}`))
	mock.ExpectExec("UPDATE payout_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAuditLog(mock)
	mock.ExpectQuery("FROM payout_transactions").
		WillReturnRows(payoutTransactionRows("pyt_1", "pyr_1", 5000, model.PayoutPaid, "PAYOUT-pyt_1", ""))

	transaction, err := v.ProcessPayout(context.Background(), "pyr_1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPaid, transaction.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessPayout_GatewayFailureCompensates(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterNoResponder(httpmock.NewStringResponder(200, "status=Error&message=declined"))

	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_1", "user-1", 5000, model.MethodEcocash, model.PayoutApproved))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payout_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectAuditLog(mock)

	// Debit.
	expectEntryAppend(mock, totalsRows(10000, 0, 0, 0, 0))

	mock.ExpectQuery("FROM payout_accounts").
		WillReturnRows(payoutAccountRows("user-1", model.MethodEcocash, `{"ecocash_number":"+263771234567"}`))

	// Gateway declined: the transaction settles FAILED and the debit is
	// compensated with an ADJUSTMENT credit.
	mock.ExpectExec("UPDATE payout_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectEntryAppend(mock, totalsRows(10000, 5000, 0, 0, 0))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAuditLog(mock)
	mock.ExpectQuery("FROM payout_transactions").
		WillReturnRows(payoutTransactionRows("pyt_1", "pyr_1", 5000, model.PayoutFailed, "", "declined"))

	transaction, err := v.ProcessPayout(context.Background(), "pyr_1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, model.PayoutFailed, transaction.Status)
	assert.Equal(t, "declined", transaction.FailureReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessPayout_InsufficientFundsFailsWithoutCompensation(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_1", "user-1", 5000, model.MethodWallet, model.PayoutApproved))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payout_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	expectAuditLog(mock)

	// Debit bounces off the sufficiency check inside the append.
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM ledger_entries").
		WillReturnRows(totalsRows(1000, 0, 0, 0, 0))
	mock.ExpectRollback()

	// No wallet debit happened, so no compensating credit: the transaction
	// and request just settle FAILED.
	mock.ExpectExec("UPDATE payout_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payout_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAuditLog(mock)

	_, err := v.ProcessPayout(context.Background(), "pyr_1", "admin-1")
	assert.True(t, apierror.Is(err, apierror.ErrInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessPayout_TerminalRequestIsNoOp(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_1", "user-1", 5000, model.MethodEcocash, model.PayoutPaid))
	mock.ExpectQuery("FROM payout_transactions").
		WillReturnRows(payoutTransactionRows("pyt_1", "pyr_1", 5000, model.PayoutPaid, "PN-1", ""))

	transaction, err := v.ProcessPayout(context.Background(), "pyr_1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPaid, transaction.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelPayout_OwnerOnly(t *testing.T) {
	v, mock := newTestVault(t)

	mock.ExpectQuery("FROM payout_requests").
		WillReturnRows(payoutRequestRows("pyr_1", "user-1", 5000, model.MethodEcocash, model.PayoutRequested))

	err := v.CancelPayout(context.Background(), "pyr_1", "intruder")
	assert.True(t, apierror.Is(err, apierror.ErrForbidden))
}

func TestCreatePayoutAccount_ValidatesDetails(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreatePayoutAccount(&model.PayoutAccount{
		OwnerType: model.OwnerUser,
		OwnerID:   "user-1",
		Method:    model.MethodBank,
		Details:   map[string]interface{}{"account_number": "100200300"},
	})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
}
