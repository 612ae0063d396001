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

func expectIntegrityQueries(mock sqlmock.Sqlmock, negative, orphans, unmapped *sqlmock.Rows) {
	mock.ExpectQuery("GROUP BY owner_type, owner_id, currency").
		WillReturnRows(negative)
	mock.ExpectQuery("LEFT JOIN source_records").
		WillReturnRows(orphans)
	mock.ExpectQuery("FROM source_records").
		WillReturnRows(unmapped)
}

func emptyNegativeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"owner_type", "owner_id", "currency", "equity"})
}

func emptyOrphanRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"entry_id", "owner_type", "owner_id", "currency", "type", "source_type", "source_id", "amount_cents", "created_at"})
}

func emptyUnmappedRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"source_type", "source_id", "settled", "created_at"})
}

func TestRunIntegrityChecks_Clean(t *testing.T) {
	v, mock := newTestVault(t)

	expectIntegrityQueries(mock, emptyNegativeRows(), emptyOrphanRows(), emptyUnmappedRows())

	report, err := v.RunIntegrityChecks(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Empty(t, report.Violations)
	assert.True(t, report.Checks.NegativeBalances.Passed)
}

func TestRunIntegrityChecks_ReportsViolations(t *testing.T) {
	v, mock := newTestVault(t)

	negative := emptyNegativeRows().
		AddRow("USER", "user-1", "USD", -500)
	orphans := emptyOrphanRows().
		AddRow("led_1", "USER", "user-2", "USD", "CREDIT", "SALE", "sale-9", 1000, time.Now())
	unmapped := emptyUnmappedRows().
		AddRow("REWARD", "reward-3", true, time.Now())
	expectIntegrityQueries(mock, negative, orphans, unmapped)

	report, err := v.RunIntegrityChecks(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Len(t, report.Violations, 3)
	assert.Equal(t, 1, report.Checks.NegativeBalances.Count)
	assert.Equal(t, 1, report.Checks.OrphanEntries.Count)
	assert.Equal(t, 1, report.Checks.UnmappedSources.Count)

	severities := map[string]string{}
	for _, violation := range report.Violations {
		severities[violation.Type] = violation.Severity
	}
	assert.Equal(t, model.SeverityCritical, severities[model.ViolationNegativeBalance])
	assert.Equal(t, model.SeverityError, severities[model.ViolationOrphanEntry])
	assert.Equal(t, model.SeverityWarning, severities[model.ViolationUnmappedSource])
}

func TestRunIntegrityChecks_WarningsAlonePass(t *testing.T) {
	v, mock := newTestVault(t)

	unmapped := emptyUnmappedRows().
		AddRow("SALE", "sale-1", true, time.Now())
	expectIntegrityQueries(mock, emptyNegativeRows(), emptyOrphanRows(), unmapped)

	report, err := v.RunIntegrityChecks(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Len(t, report.Violations, 1)
}
