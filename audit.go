package vault

import (
	"github.com/sirupsen/logrus"

	"github.com/propadhq/vault/model"
)

// Audit actions emitted by the payout lifecycle.
const (
	AuditPayoutRequested  = "payout.requested"
	AuditPayoutReview     = "payout.review"
	AuditPayoutApproved   = "payout.approved"
	AuditPayoutRejected   = "payout.rejected"
	AuditPayoutCancelled  = "payout.cancelled"
	AuditPayoutProcessing = "payout.processing"
	AuditPayoutSuccess    = "payout.success"
	AuditPayoutFailed     = "payout.failed"
)

const auditTargetPayoutRequest = "payout_request"

// LogAction records an audit log entry. Auditing is best-effort: a failed
// write is logged, never propagated into the action it describes.
func (v *Vault) LogAction(action, actorID, targetType, targetID string, metadata map[string]interface{}) {
	_, err := v.datasource.RecordAuditLog(&model.AuditLog{
		Action:     action,
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		MetaData:   metadata,
	})
	if err != nil {
		logrus.Errorf("failed to record audit log %s for %s %s: %v", action, targetType, targetID, err)
	}
}

// GetAuditTrail lists the audit entries recorded against one target.
func (v *Vault) GetAuditTrail(targetType, targetID string, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return v.datasource.GetAuditLogs(targetType, targetID, limit)
}
