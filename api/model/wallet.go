package model

// RecordEntry is the request body for appending a ledger entry.
type RecordEntry struct {
	OwnerType   string                 `json:"owner_type"`
	OwnerID     string                 `json:"owner_id"`
	Currency    string                 `json:"currency"`
	Type        string                 `json:"type"`
	SourceType  string                 `json:"source_type"`
	SourceID    string                 `json:"source_id"`
	AmountCents int64                  `json:"amount_cents"`
	Description string                 `json:"description"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

// RegisterSourceRecord registers a settled business record for the integrity
// auditor to map ledger entries against.
type RegisterSourceRecord struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Settled    bool   `json:"settled"`
}
