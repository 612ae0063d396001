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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/propadhq/vault/config"
	"github.com/propadhq/vault/gateways"
	"github.com/propadhq/vault/internal/apierror"
	redlock "github.com/propadhq/vault/internal/lock"
	"github.com/propadhq/vault/internal/notification"
	"github.com/propadhq/vault/model"
)

const (
	payoutLockTTL  = 2 * time.Minute
	payoutLockWait = 30 * time.Second
)

// PayoutRequestInput carries the fields of a new payout request.
type PayoutRequestInput struct {
	OwnerType       model.OwnerType    `json:"owner_type"`
	OwnerID         string             `json:"owner_id"`
	Currency        string             `json:"currency"`
	AmountCents     int64              `json:"amount_cents"`
	Method          model.PayoutMethod `json:"method"`
	PayoutAccountID string             `json:"payout_account_id"`
}

// CreatePayoutAccount saves a payout destination after a basic shape check.
// Full recipient validation happens at execution time through the adapter.
func (v *Vault) CreatePayoutAccount(account *model.PayoutAccount) (*model.PayoutAccount, error) {
	switch account.Method {
	case model.MethodEcocash:
		if number, _ := account.Details["ecocash_number"].(string); number == "" {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "EcoCash number is required", nil)
		}
	case model.MethodBank:
		accountNumber, _ := account.Details["account_number"].(string)
		bankCode, _ := account.Details["bank_code"].(string)
		if accountNumber == "" || bankCode == "" {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Bank account number and bank code are required", nil)
		}
	case model.MethodWallet:
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Unknown payout method", nil)
	}
	return v.datasource.CreatePayoutAccount(account)
}

// GetPayoutAccounts lists an owner's saved payout destinations.
func (v *Vault) GetPayoutAccounts(ownerID string) ([]*model.PayoutAccount, error) {
	return v.datasource.GetPayoutAccounts(ownerID)
}

// VerifyPayoutAccount marks a payout account as verified by an operator.
func (v *Vault) VerifyPayoutAccount(accountID, actorID string) error {
	if err := v.datasource.VerifyPayoutAccount(accountID); err != nil {
		return err
	}
	v.LogAction("payout_account.verified", actorID, "payout_account", accountID, nil)
	return nil
}

// RequestPayout creates a payout request in REQUESTED. No funds move here;
// the balance check is advisory and repeated, under lock, at processing
// time.
func (v *Vault) RequestPayout(ctx context.Context, input PayoutRequestInput) (*model.PayoutRequest, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if conf.Payouts.Disabled {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Payouts are temporarily disabled", nil)
	}
	if input.AmountCents <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidAmount, "Payout amount must be positive", nil)
	}
	if input.AmountCents < conf.Payouts.MinimumCents {
		return nil, apierror.NewAPIError(apierror.ErrBelowMinimum,
			fmt.Sprintf("Payout amount is below the minimum of %d cents", conf.Payouts.MinimumCents), nil)
	}

	account, err := v.datasource.GetPayoutAccount(input.PayoutAccountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != input.OwnerID {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Payout account belongs to another owner", nil)
	}

	balance, err := v.GetBalance(ctx, input.OwnerType, input.OwnerID, input.Currency)
	if err != nil {
		return nil, err
	}
	if !balance.CanDebit(input.AmountCents) {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientFunds,
			fmt.Sprintf("Insufficient withdrawable balance: %d cents available", balance.WithdrawableCents), nil)
	}

	request, err := v.datasource.CreatePayoutRequest(&model.PayoutRequest{
		OwnerType:       input.OwnerType,
		OwnerID:         input.OwnerID,
		Currency:        input.Currency,
		AmountCents:     input.AmountCents,
		Method:          input.Method,
		PayoutAccountID: input.PayoutAccountID,
	})
	if err != nil {
		return nil, err
	}

	v.LogAction(AuditPayoutRequested, input.OwnerID, auditTargetPayoutRequest, request.RequestID, nil)
	v.postPayoutActions("payout.requested", request)
	return request, nil
}

// GetPayoutRequest fetches one payout request.
func (v *Vault) GetPayoutRequest(requestID string) (*model.PayoutRequest, error) {
	return v.datasource.GetPayoutRequest(requestID)
}

// GetPayoutRequests lists payout requests, optionally filtered by owner and
// status.
func (v *Vault) GetPayoutRequests(ownerID string, status model.PayoutStatus, limit, offset int) ([]*model.PayoutRequest, error) {
	if limit <= 0 {
		limit = defaultStatementLimit
	}
	return v.datasource.GetPayoutRequests(ownerID, status, limit, offset)
}

// MovePayoutToReview flags a REQUESTED payout for manual review.
func (v *Vault) MovePayoutToReview(ctx context.Context, requestID, actorID string) error {
	err := v.datasource.UpdatePayoutRequestStatus(ctx, requestID,
		[]model.PayoutStatus{model.PayoutRequested}, model.PayoutReview)
	if err != nil {
		return err
	}
	v.LogAction(AuditPayoutReview, actorID, auditTargetPayoutRequest, requestID, nil)
	return nil
}

// ApprovePayout moves a payout to APPROVED after re-checking that the wallet
// can still cover it. The check repeats once more at processing time.
func (v *Vault) ApprovePayout(ctx context.Context, requestID, actorID string) error {
	request, err := v.datasource.GetPayoutRequest(requestID)
	if err != nil {
		return err
	}

	balance, err := v.GetBalance(ctx, request.OwnerType, request.OwnerID, request.Currency)
	if err != nil {
		return err
	}
	if !balance.CanDebit(request.AmountCents) {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds,
			"Wallet can no longer cover this payout", nil)
	}

	err = v.datasource.UpdatePayoutRequestStatus(ctx, requestID,
		[]model.PayoutStatus{model.PayoutRequested, model.PayoutReview}, model.PayoutApproved)
	if err != nil {
		return err
	}
	v.LogAction(AuditPayoutApproved, actorID, auditTargetPayoutRequest, requestID, nil)
	v.postPayoutActions("payout.approved", request)
	return nil
}

// RejectPayout cancels a payout on an operator's decision. Rejection is only
// possible before processing starts; funds never moved, so nothing is
// compensated.
func (v *Vault) RejectPayout(ctx context.Context, requestID, reason, actorID string) error {
	err := v.datasource.UpdatePayoutRequestStatus(ctx, requestID,
		[]model.PayoutStatus{model.PayoutRequested, model.PayoutReview, model.PayoutApproved}, model.PayoutCancelled)
	if err != nil {
		return err
	}
	v.LogAction(AuditPayoutRejected, actorID, auditTargetPayoutRequest, requestID,
		map[string]interface{}{"reason": reason})
	return nil
}

// CancelPayout lets the owner withdraw their own request while it is still
// REQUESTED.
func (v *Vault) CancelPayout(ctx context.Context, requestID, ownerID string) error {
	request, err := v.datasource.GetPayoutRequest(requestID)
	if err != nil {
		return err
	}
	if request.OwnerID != ownerID {
		return apierror.NewAPIError(apierror.ErrForbidden, "Payout request belongs to another owner", nil)
	}

	err = v.datasource.UpdatePayoutRequestStatus(ctx, requestID,
		[]model.PayoutStatus{model.PayoutRequested}, model.PayoutCancelled)
	if err != nil {
		return err
	}
	v.LogAction(AuditPayoutCancelled, ownerID, auditTargetPayoutRequest, requestID, nil)
	return nil
}

// ProcessPayout executes one payout attempt end to end: it moves the request
// to PROCESSING, debits the wallet, calls the provider and settles the
// outcome. The debit happens before the provider call; a failed attempt is
// compensated with an ADJUSTMENT credit referencing the transaction.
//
// Re-processing a terminal request is a no-op that returns the latest
// transaction.
func (v *Vault) ProcessPayout(ctx context.Context, requestID, actorID string) (*model.PayoutTransaction, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if conf.Payouts.Disabled {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Payouts are temporarily disabled", nil)
	}

	request, err := v.datasource.GetPayoutRequest(requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return v.latestTransaction(requestID)
	}

	locker, err := v.acquireWalletLock(ctx, request.OwnerID, request.Currency)
	if err != nil {
		return nil, err
	}
	defer v.releaseWalletLock(ctx, locker)

	err = v.datasource.UpdatePayoutRequestStatus(ctx, requestID,
		[]model.PayoutStatus{model.PayoutRequested, model.PayoutApproved}, model.PayoutProcessing)
	if err != nil {
		return nil, err
	}

	transaction, err := v.datasource.CreatePayoutTransaction(ctx, &model.PayoutTransaction{
		RequestID:   request.RequestID,
		AmountCents: request.AmountCents,
		Currency:    request.Currency,
		Method:      request.Method,
	})
	if err != nil {
		return nil, err
	}

	v.LogAction(AuditPayoutProcessing, actorID, auditTargetPayoutRequest, requestID, nil)

	// The debit is the point of no return: past here every outcome settles
	// the transaction, by payment or by compensation.
	_, err = v.Debit(ctx, EntryInput{
		OwnerType:   request.OwnerType,
		OwnerID:     request.OwnerID,
		Currency:    request.Currency,
		AmountCents: request.AmountCents,
		SourceType:  model.SourcePayout,
		SourceID:    transaction.TransactionID,
		Description: "Payout to " + string(request.Method),
	})
	if err != nil {
		v.settleFailedAttempt(ctx, request, transaction, err.Error(), actorID, false)
		return nil, err
	}

	response := v.executeAttempt(ctx, request, transaction)
	if response.Result == gateways.ResultSuccess {
		if err := v.datasource.ResolvePayoutTransaction(ctx, transaction.TransactionID, model.PayoutPaid, response.GatewayRef, ""); err != nil {
			return nil, err
		}
		if err := v.datasource.UpdatePayoutRequestStatus(ctx, requestID,
			[]model.PayoutStatus{model.PayoutProcessing}, model.PayoutPaid); err != nil {
			return nil, err
		}
		v.LogAction(AuditPayoutSuccess, actorID, auditTargetPayoutRequest, requestID,
			map[string]interface{}{"gateway_ref": response.GatewayRef})
		v.postPayoutActions("payout.paid", request)
		return v.datasource.GetPayoutTransaction(transaction.TransactionID)
	}

	if response.Result == gateways.ResultNotConfigured || response.Result == gateways.ResultInvalidConfig {
		notification.NotifyError(fmt.Errorf("payout %s failed with %s: %s", requestID, response.Result, response.FailureReason))
	}

	v.settleFailedAttempt(ctx, request, transaction, response.FailureReason, actorID, true)
	v.postPayoutActions("payout.failed", request)
	return v.datasource.GetPayoutTransaction(transaction.TransactionID)
}

// executeAttempt resolves the adapter for the request's method and runs the
// provider call. Routing and adapter errors come back as failed responses.
func (v *Vault) executeAttempt(ctx context.Context, request *model.PayoutRequest, transaction *model.PayoutTransaction) *gateways.ExecutePayoutResponse {
	provider := gateways.ProviderForMethod(request.Method)
	if provider == "" {
		return &gateways.ExecutePayoutResponse{
			Result:        gateways.ResultFailed,
			FailureReason: "No provider serves payout method " + string(request.Method),
		}
	}

	adapter, err := v.gateways.Get(provider)
	if err != nil {
		return &gateways.ExecutePayoutResponse{
			Result:        gateways.ResultFailed,
			FailureReason: err.Error(),
		}
	}

	account, err := v.datasource.GetPayoutAccount(request.PayoutAccountID)
	if err != nil {
		return &gateways.ExecutePayoutResponse{
			Result:        gateways.ResultInvalidConfig,
			FailureReason: "Payout account could not be loaded: " + err.Error(),
		}
	}

	return adapter.ExecutePayout(ctx, gateways.ExecutePayoutInput{
		TransactionID: transaction.TransactionID,
		AmountCents:   transaction.AmountCents,
		Currency:      transaction.Currency,
		Method:        transaction.Method,
		Recipient:     account.Details,
		Reference:     "PAYOUT-" + transaction.TransactionID,
	})
}

// settleFailedAttempt resolves a failed transaction and, when the wallet was
// debited, appends the compensating ADJUSTMENT credit. Resolving first makes
// the settlement idempotent: a transaction that already left PROCESSING is
// never compensated twice.
func (v *Vault) settleFailedAttempt(ctx context.Context, request *model.PayoutRequest, transaction *model.PayoutTransaction, reason, actorID string, compensate bool) {
	err := v.datasource.ResolvePayoutTransaction(ctx, transaction.TransactionID, model.PayoutFailed, "", reason)
	if err != nil {
		if apierror.Is(err, apierror.ErrInvalidState) {
			return
		}
		logrus.Errorf("failed to resolve payout transaction %s: %v", transaction.TransactionID, err)
		return
	}

	if compensate {
		_, err = v.Credit(ctx, EntryInput{
			OwnerType:   request.OwnerType,
			OwnerID:     request.OwnerID,
			Currency:    request.Currency,
			AmountCents: request.AmountCents,
			SourceType:  model.SourceAdjustment,
			SourceID:    transaction.TransactionID,
			Description: "Compensation for failed payout",
		})
		if err != nil {
			// The debit stands but the compensation did not land. This needs
			// an operator immediately.
			notification.NotifyError(fmt.Errorf("compensation failed for payout transaction %s: %v", transaction.TransactionID, err))
		}
	}

	if err := v.datasource.UpdatePayoutRequestStatus(ctx, request.RequestID,
		[]model.PayoutStatus{model.PayoutProcessing}, model.PayoutFailed); err != nil {
		logrus.Errorf("failed to mark payout request %s failed: %v", request.RequestID, err)
	}

	v.LogAction(AuditPayoutFailed, actorID, auditTargetPayoutRequest, request.RequestID,
		map[string]interface{}{"reason": reason})
}

// GetPayoutTransactions lists the attempts recorded for one request.
func (v *Vault) GetPayoutTransactions(requestID string) ([]*model.PayoutTransaction, error) {
	return v.datasource.GetTransactionsForRequest(requestID)
}

func (v *Vault) latestTransaction(requestID string) (*model.PayoutTransaction, error) {
	transactions, err := v.datasource.GetTransactionsForRequest(requestID)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}
	return transactions[len(transactions)-1], nil
}

func (v *Vault) acquireWalletLock(ctx context.Context, ownerID, currency string) (*redlock.Locker, error) {
	if v.redis == nil {
		return nil, nil
	}
	locker := redlock.NewLocker(v.redis, redlock.WalletKey(ownerID, currency), model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, payoutLockTTL, payoutLockWait); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Wallet is busy with another payout", err)
	}
	return locker, nil
}

func (v *Vault) releaseWalletLock(ctx context.Context, locker *redlock.Locker) {
	if locker == nil {
		return
	}
	if err := locker.Unlock(ctx); err != nil {
		logrus.Errorf("failed to release wallet lock: %v", err)
	}
}

func (v *Vault) postPayoutActions(event string, request *model.PayoutRequest) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   event,
			Payload: request,
		})
		if err != nil {
			logrus.Error(err)
		}
	}()
}
