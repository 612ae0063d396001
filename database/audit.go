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
	"encoding/json"
	"time"

	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

func (d Datasource) RecordAuditLog(entry *model.AuditLog) (*model.AuditLog, error) {
	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	entry.AuditID = model.GenerateUUIDWithSuffix("aud")
	entry.CreatedAt = time.Now()

	_, err = d.Conn.Exec(`
		INSERT INTO audit_logs (audit_id, action, actor_id, target_type, target_id, meta_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.AuditID, entry.Action, entry.ActorID, entry.TargetType, entry.TargetID, metaDataJSON, entry.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record audit log", err)
	}
	return entry, nil
}

func (d Datasource) GetAuditLogs(targetType, targetID string, limit int) ([]*model.AuditLog, error) {
	rows, err := d.Conn.Query(`
		SELECT id, audit_id, action, COALESCE(actor_id, ''), target_type, target_id, meta_data, created_at
		FROM audit_logs
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, targetType, targetID, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve audit logs", err)
	}
	defer rows.Close()

	logs := []*model.AuditLog{}
	for rows.Next() {
		entry := model.AuditLog{}
		var metaDataJSON []byte
		err = rows.Scan(&entry.ID, &entry.AuditID, &entry.Action, &entry.ActorID,
			&entry.TargetType, &entry.TargetID, &metaDataJSON, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan audit log", err)
		}
		if len(metaDataJSON) > 0 {
			if err = json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		logs = append(logs, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over audit logs", err)
	}
	return logs, nil
}
