package gateways

import (
	"context"

	"github.com/propadhq/vault/model"
)

// ManualAdapter settles payouts that never leave the platform. WALLET
// payouts route here: the ledger movement is the settlement, so the adapter
// succeeds locally without an external call.
type ManualAdapter struct{}

func NewManualAdapter() *ManualAdapter {
	return &ManualAdapter{}
}

func (m *ManualAdapter) Provider() string {
	return ProviderManual
}

func (m *ManualAdapter) ValidateConfiguration(_ context.Context) bool {
	return true
}

func (m *ManualAdapter) ValidateRecipient(method model.PayoutMethod, _ map[string]interface{}) bool {
	return method == model.MethodWallet
}

func (m *ManualAdapter) ExecutePayout(_ context.Context, input ExecutePayoutInput) *ExecutePayoutResponse {
	if input.Method != model.MethodWallet {
		return &ExecutePayoutResponse{
			Result:        ResultFailed,
			FailureReason: "Manual settlement only supports WALLET payouts",
		}
	}
	return &ExecutePayoutResponse{
		Result:     ResultSuccess,
		GatewayRef: input.Reference,
		MetaData:   map[string]interface{}{"settlement": "internal"},
	}
}
