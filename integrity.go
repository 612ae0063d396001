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

	"github.com/propadhq/vault/internal/notification"
	"github.com/propadhq/vault/model"
)

// RunIntegrityChecks audits the ledger and returns a report. Violations are
// findings inside the report, not errors; the run itself only fails when a
// check could not execute. The auditor detects, it never repairs.
func (v *Vault) RunIntegrityChecks(ctx context.Context) (*model.IntegrityReport, error) {
	report := &model.IntegrityReport{
		Timestamp:  time.Now(),
		Violations: []model.IntegrityViolation{},
	}

	negative, err := v.datasource.GetNegativeBalances(ctx)
	if err != nil {
		return nil, err
	}
	for _, balance := range negative {
		report.Violations = append(report.Violations, model.IntegrityViolation{
			Type:     model.ViolationNegativeBalance,
			Severity: model.SeverityCritical,
			OwnerID:  balance.OwnerID,
			Details:  fmt.Sprintf("Wallet %s/%s has negative equity of %d cents", balance.OwnerID, balance.Currency, balance.EquityCents),
		})
	}

	orphans, err := v.datasource.GetOrphanEntries(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range orphans {
		report.Violations = append(report.Violations, model.IntegrityViolation{
			Type:     model.ViolationOrphanEntry,
			Severity: model.SeverityError,
			OwnerID:  entry.OwnerID,
			EntryID:  entry.EntryID,
			Details:  fmt.Sprintf("Entry %s references missing %s record %s", entry.EntryID, entry.SourceType, entry.SourceID),
		})
	}

	unmapped, err := v.datasource.GetUnmappedSources(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range unmapped {
		report.Violations = append(report.Violations, model.IntegrityViolation{
			Type:     model.ViolationUnmappedSource,
			Severity: model.SeverityWarning,
			Details:  fmt.Sprintf("Settled %s record %s has no ledger entry", record.SourceType, record.SourceID),
		})
	}

	report.Finalize()

	if report.Passed {
		logrus.Infof("Ledger integrity check passed (%d warnings)", report.Checks.UnmappedSources.Count)
	} else {
		logrus.Warnf("Ledger integrity check failed: %d violations", len(report.Violations))
		notification.NotifyError(fmt.Errorf("ledger integrity check failed with %d violations (%d critical)",
			len(report.Violations), report.Checks.NegativeBalances.Count))
	}

	return report, nil
}
