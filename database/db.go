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
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/propadhq/vault/config"
	"github.com/propadhq/vault/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createLedgerEntryTable(db)
	if err != nil {
		return nil, err
	}
	err = createSourceRecordTable(db)
	if err != nil {
		return nil, err
	}
	err = createPayoutAccountTable(db)
	if err != nil {
		return nil, err
	}
	err = createPayoutRequestTable(db)
	if err != nil {
		return nil, err
	}
	err = createPayoutTransactionTable(db)
	if err != nil {
		return nil, err
	}
	err = createAuditLogTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createLedgerEntryTable creates the append-only ledger. There is no UPDATE
// or DELETE path against this table anywhere in the codebase.
func createLedgerEntryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id SERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL UNIQUE,
			owner_type TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('CREDIT', 'DEBIT', 'HOLD', 'RELEASE', 'REFUND')),
			source_type TEXT NOT NULL,
			source_id TEXT,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			description TEXT,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_wallet ON ledger_entries (owner_id, currency);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_source ON ledger_entries (source_type, source_id)
	`)
	log.Println(err)
	return err
}

// createSourceRecordTable creates the registry of settled business records
// the integrity auditor cross-checks ledger entries against.
func createSourceRecordTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS source_records (
			id SERIAL PRIMARY KEY,
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			settled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (source_type, source_id)
		)
	`)
	log.Println(err)
	return err
}

// createPayoutAccountTable creates the saved payout destinations table.
func createPayoutAccountTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payout_accounts (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE,
			owner_type TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			method TEXT NOT NULL CHECK (method IN ('ECOCASH', 'BANK', 'WALLET')),
			display_name TEXT,
			details JSONB NOT NULL,
			verified_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating payout_accounts table: %v", err)
	}
	return err
}

// createPayoutRequestTable creates the payout requests table.
func createPayoutRequestTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payout_requests (
			id SERIAL PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			owner_type TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			method TEXT NOT NULL,
			payout_account_id TEXT NOT NULL REFERENCES payout_accounts(account_id),
			status TEXT NOT NULL,
			tx_ref TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payout_requests_owner ON payout_requests (owner_id, status)
	`)
	log.Println(err)
	return err
}

// createPayoutTransactionTable creates the per-attempt provider transactions
// table. A request accumulates one row per attempt.
func createPayoutTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payout_transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			request_id TEXT NOT NULL REFERENCES payout_requests(request_id),
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('PROCESSING', 'PAID', 'FAILED')),
			gateway_ref TEXT,
			failure_reason TEXT,
			meta_data JSONB,
			processed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createAuditLogTable creates the audit trail table.
func createAuditLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id SERIAL PRIMARY KEY,
			audit_id TEXT NOT NULL UNIQUE,
			action TEXT NOT NULL,
			actor_id TEXT,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}
