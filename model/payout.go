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

package model

import "time"

// PayoutStatus is shared by payout requests and payout transactions.
// Transactions only ever take the PROCESSING, PAID and FAILED subset.
type PayoutStatus string

const (
	PayoutRequested  PayoutStatus = "REQUESTED"
	PayoutReview     PayoutStatus = "REVIEW"
	PayoutApproved   PayoutStatus = "APPROVED"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutPaid       PayoutStatus = "PAID"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
)

// PayoutMethod is the rail a payout travels on.
type PayoutMethod string

const (
	MethodEcocash PayoutMethod = "ECOCASH"
	MethodBank    PayoutMethod = "BANK"
	MethodWallet  PayoutMethod = "WALLET"
)

// PayoutRequest models an owner asking to cash out funds. Creating a request
// has no ledger effect; funds are debited when the request moves to
// PROCESSING.
type PayoutRequest struct {
	ID              int64        `json:"-"`
	RequestID       string       `json:"request_id"`
	OwnerType       OwnerType    `json:"owner_type"`
	OwnerID         string       `json:"owner_id"`
	Currency        string       `json:"currency"`
	AmountCents     int64        `json:"amount_cents"`
	Method          PayoutMethod `json:"method"`
	PayoutAccountID string       `json:"payout_account_id"`
	Status          PayoutStatus `json:"status"`
	TxRef           string       `json:"tx_ref,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// PayoutTransaction is one concrete attempt to move money through a provider.
// A request may accumulate several transactions across retries.
type PayoutTransaction struct {
	ID            int64                  `json:"-"`
	TransactionID string                 `json:"transaction_id"`
	RequestID     string                 `json:"request_id"`
	AmountCents   int64                  `json:"amount_cents"`
	Currency      string                 `json:"currency"`
	Method        PayoutMethod           `json:"method"`
	Status        PayoutStatus           `json:"status"`
	GatewayRef    string                 `json:"gateway_ref,omitempty"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
	ProcessedAt   *time.Time             `json:"processed_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// PayoutAccount is a saved payout destination (bank account, mobile wallet).
type PayoutAccount struct {
	ID          int64                  `json:"-"`
	AccountID   string                 `json:"account_id"`
	OwnerType   OwnerType              `json:"owner_type"`
	OwnerID     string                 `json:"owner_id"`
	Method      PayoutMethod           `json:"method"`
	DisplayName string                 `json:"display_name"`
	Details     map[string]interface{} `json:"details"`
	VerifiedAt  *time.Time             `json:"verified_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Terminal reports whether the status admits no further transitions.
func (s PayoutStatus) Terminal() bool {
	switch s {
	case PayoutPaid, PayoutFailed, PayoutCancelled:
		return true
	}
	return false
}

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutRequested:  {PayoutReview, PayoutApproved, PayoutProcessing, PayoutCancelled},
	PayoutReview:     {PayoutApproved, PayoutCancelled},
	PayoutApproved:   {PayoutProcessing, PayoutCancelled},
	PayoutProcessing: {PayoutPaid, PayoutFailed},
}

// CanTransition reports whether moving from the current status to next is a
// legal step of the payout state machine.
func (s PayoutStatus) CanTransition(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
