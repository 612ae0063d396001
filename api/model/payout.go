package model

// CreatePayoutAccount is the request body for saving a payout destination.
type CreatePayoutAccount struct {
	OwnerType   string                 `json:"owner_type"`
	OwnerID     string                 `json:"owner_id"`
	Method      string                 `json:"method"`
	DisplayName string                 `json:"display_name"`
	Details     map[string]interface{} `json:"details"`
}

// CreatePayoutRequest is the request body for a new payout request.
type CreatePayoutRequest struct {
	OwnerType       string `json:"owner_type"`
	OwnerID         string `json:"owner_id"`
	Currency        string `json:"currency"`
	AmountCents     int64  `json:"amount_cents"`
	Method          string `json:"method"`
	PayoutAccountID string `json:"payout_account_id"`
}

// ActorAction carries the operator identity for admin transitions.
type ActorAction struct {
	ActorID string `json:"actor_id"`
}

// RejectPayout is the request body for rejecting a payout request.
type RejectPayout struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

// CancelPayout is the request body for an owner withdrawing their request.
type CancelPayout struct {
	OwnerID string `json:"owner_id"`
}

// RecoverStuckPayouts triggers a manual reconciliation sweep.
type RecoverStuckPayouts struct {
	ThresholdMinutes int `json:"threshold_minutes"`
}
