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

	"github.com/propadhq/vault/model"
)

type IDataSource interface {
	ledger
	payout
	audit
	integrity
}

type ledger interface {
	RecordEntry(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, *model.Balance, error)
	GetBalance(ctx context.Context, ownerType model.OwnerType, ownerID, currency string) (*model.Balance, error)
	GetLedgerEntries(ctx context.Context, ownerID, currency string, limit, offset int) ([]*model.LedgerEntry, error)
	GetLedgerEntryByID(entryID string) (*model.LedgerEntry, error)
}

type payout interface {
	CreatePayoutAccount(account *model.PayoutAccount) (*model.PayoutAccount, error)
	GetPayoutAccount(accountID string) (*model.PayoutAccount, error)
	GetPayoutAccounts(ownerID string) ([]*model.PayoutAccount, error)
	VerifyPayoutAccount(accountID string) error

	CreatePayoutRequest(request *model.PayoutRequest) (*model.PayoutRequest, error)
	GetPayoutRequest(requestID string) (*model.PayoutRequest, error)
	GetPayoutRequests(ownerID string, status model.PayoutStatus, limit, offset int) ([]*model.PayoutRequest, error)
	UpdatePayoutRequestStatus(ctx context.Context, requestID string, from []model.PayoutStatus, to model.PayoutStatus) error

	CreatePayoutTransaction(ctx context.Context, transaction *model.PayoutTransaction) (*model.PayoutTransaction, error)
	GetPayoutTransaction(transactionID string) (*model.PayoutTransaction, error)
	GetTransactionsForRequest(requestID string) ([]*model.PayoutTransaction, error)
	ResolvePayoutTransaction(ctx context.Context, transactionID string, to model.PayoutStatus, gatewayRef, failureReason string) error
	GetStuckProcessingTransactions(ctx context.Context, olderThan time.Time) ([]*model.PayoutTransaction, error)
}

type audit interface {
	RecordAuditLog(entry *model.AuditLog) (*model.AuditLog, error)
	GetAuditLogs(targetType, targetID string, limit int) ([]*model.AuditLog, error)
}

type integrity interface {
	RegisterSourceRecord(record *model.SourceRecord) error
	GetNegativeBalances(ctx context.Context) ([]*model.Balance, error)
	GetOrphanEntries(ctx context.Context) ([]*model.LedgerEntry, error)
	GetUnmappedSources(ctx context.Context) ([]*model.SourceRecord, error)
}
