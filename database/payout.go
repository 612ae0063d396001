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
	"time"

	"github.com/lib/pq"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

func (d Datasource) CreatePayoutAccount(account *model.PayoutAccount) (*model.PayoutAccount, error) {
	detailsJSON, err := json.Marshal(account.Details)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal account details", err)
	}

	account.AccountID = model.GenerateUUIDWithSuffix("pya")
	account.CreatedAt = time.Now()

	_, err = d.Conn.Exec(`
		INSERT INTO payout_accounts (account_id, owner_type, owner_id, method, display_name, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.AccountID, account.OwnerType, account.OwnerID, account.Method, account.DisplayName, detailsJSON, account.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create payout account", err)
	}
	return account, nil
}

func (d Datasource) GetPayoutAccount(accountID string) (*model.PayoutAccount, error) {
	account := model.PayoutAccount{}
	var detailsJSON []byte

	row := d.Conn.QueryRow(`
		SELECT id, account_id, owner_type, owner_id, method, COALESCE(display_name, ''), details, verified_at, created_at
		FROM payout_accounts
		WHERE account_id = $1
	`, accountID)

	err := row.Scan(&account.ID, &account.AccountID, &account.OwnerType, &account.OwnerID,
		&account.Method, &account.DisplayName, &detailsJSON, &account.VerifiedAt, &account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payout account not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout account", err)
	}

	if err = json.Unmarshal(detailsJSON, &account.Details); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal account details", err)
	}
	return &account, nil
}

func (d Datasource) GetPayoutAccounts(ownerID string) ([]*model.PayoutAccount, error) {
	rows, err := d.Conn.Query(`
		SELECT id, account_id, owner_type, owner_id, method, COALESCE(display_name, ''), details, verified_at, created_at
		FROM payout_accounts
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout accounts", err)
	}
	defer rows.Close()

	accounts := []*model.PayoutAccount{}
	for rows.Next() {
		account := model.PayoutAccount{}
		var detailsJSON []byte
		err = rows.Scan(&account.ID, &account.AccountID, &account.OwnerType, &account.OwnerID,
			&account.Method, &account.DisplayName, &detailsJSON, &account.VerifiedAt, &account.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payout account", err)
		}
		if err = json.Unmarshal(detailsJSON, &account.Details); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal account details", err)
		}
		accounts = append(accounts, &account)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over payout accounts", err)
	}
	return accounts, nil
}

func (d Datasource) VerifyPayoutAccount(accountID string) error {
	result, err := d.Conn.Exec(`
		UPDATE payout_accounts SET verified_at = NOW() WHERE account_id = $1 AND verified_at IS NULL
	`, accountID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to verify payout account", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to verify payout account", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Payout account not found or already verified", nil)
	}
	return nil
}

func (d Datasource) CreatePayoutRequest(request *model.PayoutRequest) (*model.PayoutRequest, error) {
	request.RequestID = model.GenerateUUIDWithSuffix("pyr")
	request.Status = model.PayoutRequested
	request.CreatedAt = time.Now()

	_, err := d.Conn.Exec(`
		INSERT INTO payout_requests (request_id, owner_type, owner_id, currency, amount_cents, method, payout_account_id, status, tx_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, request.RequestID, request.OwnerType, request.OwnerID, request.Currency, request.AmountCents,
		request.Method, request.PayoutAccountID, request.Status, request.TxRef, request.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Payout request with this ID already exists", err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payout account not found", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create payout request", err)
	}
	return request, nil
}

func (d Datasource) GetPayoutRequest(requestID string) (*model.PayoutRequest, error) {
	request := model.PayoutRequest{}

	row := d.Conn.QueryRow(`
		SELECT id, request_id, owner_type, owner_id, currency, amount_cents, method, payout_account_id, status, COALESCE(tx_ref, ''), created_at
		FROM payout_requests
		WHERE request_id = $1
	`, requestID)

	err := row.Scan(&request.ID, &request.RequestID, &request.OwnerType, &request.OwnerID,
		&request.Currency, &request.AmountCents, &request.Method, &request.PayoutAccountID,
		&request.Status, &request.TxRef, &request.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payout request not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout request", err)
	}
	return &request, nil
}

// GetPayoutRequests lists payout requests, optionally filtered by owner and
// status. Empty filter values match everything.
func (d Datasource) GetPayoutRequests(ownerID string, status model.PayoutStatus, limit, offset int) ([]*model.PayoutRequest, error) {
	rows, err := d.Conn.Query(`
		SELECT id, request_id, owner_type, owner_id, currency, amount_cents, method, payout_account_id, status, COALESCE(tx_ref, ''), created_at
		FROM payout_requests
		WHERE ($1 = '' OR owner_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, ownerID, string(status), limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout requests", err)
	}
	defer rows.Close()

	requests := []*model.PayoutRequest{}
	for rows.Next() {
		request := model.PayoutRequest{}
		err = rows.Scan(&request.ID, &request.RequestID, &request.OwnerType, &request.OwnerID,
			&request.Currency, &request.AmountCents, &request.Method, &request.PayoutAccountID,
			&request.Status, &request.TxRef, &request.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payout request", err)
		}
		requests = append(requests, &request)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over payout requests", err)
	}
	return requests, nil
}

// UpdatePayoutRequestStatus moves a request to the target status, guarded by
// the set of statuses the move is legal from. The guard runs inside the
// UPDATE itself, so a concurrent transition loses cleanly instead of
// double-applying.
func (d Datasource) UpdatePayoutRequestStatus(ctx context.Context, requestID string, from []model.PayoutStatus, to model.PayoutStatus) error {
	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payout_requests SET status = $2 WHERE request_id = $1 AND status = ANY($3)
	`, requestID, to, pq.Array(fromStatuses))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update payout request status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update payout request status", err)
	}
	if affected == 0 {
		current, getErr := d.GetPayoutRequest(requestID)
		if getErr != nil {
			return getErr
		}
		return apierror.NewAPIError(apierror.ErrInvalidState,
			"Payout request cannot move from "+string(current.Status)+" to "+string(to), nil)
	}
	return nil
}

func (d Datasource) CreatePayoutTransaction(ctx context.Context, transaction *model.PayoutTransaction) (*model.PayoutTransaction, error) {
	metaDataJSON, err := json.Marshal(transaction.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	transaction.TransactionID = model.GenerateUUIDWithSuffix("pyt")
	transaction.Status = model.PayoutProcessing
	transaction.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO payout_transactions (transaction_id, request_id, amount_cents, currency, method, status, meta_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, transaction.TransactionID, transaction.RequestID, transaction.AmountCents, transaction.Currency,
		transaction.Method, transaction.Status, metaDataJSON, transaction.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payout request not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create payout transaction", err)
	}
	return transaction, nil
}

func (d Datasource) GetPayoutTransaction(transactionID string) (*model.PayoutTransaction, error) {
	transaction := model.PayoutTransaction{}
	var metaDataJSON []byte

	row := d.Conn.QueryRow(`
		SELECT id, transaction_id, request_id, amount_cents, currency, method, status, COALESCE(gateway_ref, ''), COALESCE(failure_reason, ''), meta_data, processed_at, created_at
		FROM payout_transactions
		WHERE transaction_id = $1
	`, transactionID)

	err := row.Scan(&transaction.ID, &transaction.TransactionID, &transaction.RequestID,
		&transaction.AmountCents, &transaction.Currency, &transaction.Method, &transaction.Status,
		&transaction.GatewayRef, &transaction.FailureReason, &metaDataJSON, &transaction.ProcessedAt, &transaction.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payout transaction not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout transaction", err)
	}

	if len(metaDataJSON) > 0 {
		if err = json.Unmarshal(metaDataJSON, &transaction.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return &transaction, nil
}

func (d Datasource) GetTransactionsForRequest(requestID string) ([]*model.PayoutTransaction, error) {
	rows, err := d.Conn.Query(`
		SELECT id, transaction_id, request_id, amount_cents, currency, method, status, COALESCE(gateway_ref, ''), COALESCE(failure_reason, ''), meta_data, processed_at, created_at
		FROM payout_transactions
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payout transactions", err)
	}
	defer rows.Close()

	transactions := []*model.PayoutTransaction{}
	for rows.Next() {
		transaction := model.PayoutTransaction{}
		var metaDataJSON []byte
		err = rows.Scan(&transaction.ID, &transaction.TransactionID, &transaction.RequestID,
			&transaction.AmountCents, &transaction.Currency, &transaction.Method, &transaction.Status,
			&transaction.GatewayRef, &transaction.FailureReason, &metaDataJSON, &transaction.ProcessedAt, &transaction.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payout transaction", err)
		}
		if len(metaDataJSON) > 0 {
			if err = json.Unmarshal(metaDataJSON, &transaction.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		transactions = append(transactions, &transaction)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over payout transactions", err)
	}
	return transactions, nil
}

// ResolvePayoutTransaction settles a PROCESSING transaction to PAID or
// FAILED. Already-settled transactions are left untouched; the caller reads
// the zero rows-affected result as an invalid transition.
func (d Datasource) ResolvePayoutTransaction(ctx context.Context, transactionID string, to model.PayoutStatus, gatewayRef, failureReason string) error {
	if to != model.PayoutPaid && to != model.PayoutFailed {
		return apierror.NewAPIError(apierror.ErrInvalidState, "Payout transactions only settle to PAID or FAILED", nil)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payout_transactions
		SET status = $2, gateway_ref = $3, failure_reason = $4, processed_at = NOW()
		WHERE transaction_id = $1 AND status = 'PROCESSING'
	`, transactionID, to, gatewayRef, failureReason)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve payout transaction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve payout transaction", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrInvalidState, "Payout transaction is not in PROCESSING", nil)
	}
	return nil
}

// GetStuckProcessingTransactions returns PROCESSING transactions created
// before olderThan. The reconciliation sweep treats them as failed.
func (d Datasource) GetStuckProcessingTransactions(ctx context.Context, olderThan time.Time) ([]*model.PayoutTransaction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, transaction_id, request_id, amount_cents, currency, method, status, COALESCE(gateway_ref, ''), COALESCE(failure_reason, ''), meta_data, processed_at, created_at
		FROM payout_transactions
		WHERE status = 'PROCESSING' AND created_at < $1
		ORDER BY created_at ASC, id ASC
	`, olderThan)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stuck payout transactions", err)
	}
	defer rows.Close()

	transactions := []*model.PayoutTransaction{}
	for rows.Next() {
		transaction := model.PayoutTransaction{}
		var metaDataJSON []byte
		err = rows.Scan(&transaction.ID, &transaction.TransactionID, &transaction.RequestID,
			&transaction.AmountCents, &transaction.Currency, &transaction.Method, &transaction.Status,
			&transaction.GatewayRef, &transaction.FailureReason, &metaDataJSON, &transaction.ProcessedAt, &transaction.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payout transaction", err)
		}
		if len(metaDataJSON) > 0 {
			if err = json.Unmarshal(metaDataJSON, &transaction.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		transactions = append(transactions, &transaction)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over payout transactions", err)
	}
	return transactions, nil
}
