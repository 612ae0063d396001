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

// Violation kinds reported by the integrity auditor.
const (
	ViolationNegativeBalance = "NEGATIVE_BALANCE"
	ViolationOrphanEntry     = "ORPHAN_ENTRY"
	ViolationUnmappedSource  = "UNMAPPED_SOURCE"
)

// Violation severities. CRITICAL and ERROR fail a run; WARNING does not.
const (
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// IntegrityViolation is one finding of an integrity check. Violations are
// data in a report, never errors: the auditor detects, it does not repair.
type IntegrityViolation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	OwnerID  string `json:"owner_id,omitempty"`
	EntryID  string `json:"entry_id,omitempty"`
	Details  string `json:"details"`
}

// IntegrityCheck summarizes one check within a report.
type IntegrityCheck struct {
	Passed bool `json:"passed"`
	Count  int  `json:"count"`
}

// IntegrityReport aggregates a full auditor run.
type IntegrityReport struct {
	Timestamp  time.Time            `json:"timestamp"`
	Passed     bool                 `json:"passed"`
	Violations []IntegrityViolation `json:"violations"`
	Checks     struct {
		NegativeBalances IntegrityCheck `json:"negative_balances"`
		OrphanEntries    IntegrityCheck `json:"orphan_entries"`
		UnmappedSources  IntegrityCheck `json:"unmapped_sources"`
	} `json:"checks"`
}

// Finalize fills the passed flags from the collected violations. A report
// fails when any CRITICAL or ERROR violation exists; WARNING alone passes.
func (r *IntegrityReport) Finalize() {
	r.Passed = true
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical || v.Severity == SeverityError {
			r.Passed = false
		}
		switch v.Type {
		case ViolationNegativeBalance:
			r.Checks.NegativeBalances.Count++
		case ViolationOrphanEntry:
			r.Checks.OrphanEntries.Count++
		case ViolationUnmappedSource:
			r.Checks.UnmappedSources.Count++
		}
	}
	r.Checks.NegativeBalances.Passed = r.Checks.NegativeBalances.Count == 0
	r.Checks.OrphanEntries.Passed = r.Checks.OrphanEntries.Count == 0
	r.Checks.UnmappedSources.Passed = r.Checks.UnmappedSources.Count == 0
}
