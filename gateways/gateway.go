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

package gateways

import (
	"context"

	"github.com/propadhq/vault/config"
	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

// ExecutionResult classifies the outcome of a payout attempt. Adapters never
// return Go errors for provider failures; a failed payout is a result, and
// the processor decides what to do with it.
type ExecutionResult string

const (
	ResultSuccess       ExecutionResult = "SUCCESS"
	ResultFailed        ExecutionResult = "FAILED"
	ResultNotConfigured ExecutionResult = "NOT_CONFIGURED"
	ResultInvalidConfig ExecutionResult = "INVALID_CONFIG"
)

const (
	ProviderPaynow = "paynow"
	ProviderManual = "manual"
)

// ExecutePayoutInput carries everything an adapter needs to move money to a
// recipient.
type ExecutePayoutInput struct {
	TransactionID string
	AmountCents   int64
	Currency      string
	Method        model.PayoutMethod
	Recipient     map[string]interface{}
	Reference     string
}

// ExecutePayoutResponse is the adapter's verdict on one attempt.
type ExecutePayoutResponse struct {
	Result        ExecutionResult
	GatewayRef    string
	FailureReason string
	MetaData      map[string]interface{}
}

// Adapter is the contract every payout provider implements.
type Adapter interface {
	Provider() string
	ExecutePayout(ctx context.Context, input ExecutePayoutInput) *ExecutePayoutResponse
	ValidateConfiguration(ctx context.Context) bool
	ValidateRecipient(method model.PayoutMethod, recipient map[string]interface{}) bool
}

// ProviderForMethod maps a payout method to the provider that serves it.
// WALLET payouts settle internally through the manual adapter.
func ProviderForMethod(method model.PayoutMethod) string {
	switch method {
	case model.MethodEcocash, model.MethodBank:
		return ProviderPaynow
	case model.MethodWallet:
		return ProviderManual
	}
	return ""
}

// Registry holds the configured adapters keyed by provider name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(conf *config.Configuration) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(NewPaynowAdapter(conf.Providers.Paynow))
	r.Register(NewManualAdapter())
	return r
}

func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Provider()] = adapter
}

func (r *Registry) Get(provider string) (Adapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Unsupported payout provider: "+provider, nil)
	}
	return adapter, nil
}
