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
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/propadhq/vault/config"
	"github.com/propadhq/vault/internal/request"
	"github.com/propadhq/vault/model"
)

// ecocashNumberRe matches Zimbabwe mobile numbers: +263XXXXXXXXX or 0XXXXXXXXX.
var ecocashNumberRe = regexp.MustCompile(`^(\+263|0)[0-9]{9}$`)

const paynowTimeout = 30 * time.Second

// PaynowAdapter executes ECOCASH and BANK payouts through the Paynow
// remittance API. The wire format is form-encoded key=value pairs signed
// with an uppercase SHA-512 hash over the sorted parameters plus the
// integration key.
type PaynowAdapter struct {
	conf config.PaynowConfig
}

func NewPaynowAdapter(conf config.PaynowConfig) *PaynowAdapter {
	return &PaynowAdapter{conf: conf}
}

func (p *PaynowAdapter) Provider() string {
	return ProviderPaynow
}

func (p *PaynowAdapter) ValidateConfiguration(_ context.Context) bool {
	return p.conf.Enabled && p.conf.IntegrationID != "" && p.conf.IntegrationKey != ""
}

func (p *PaynowAdapter) ValidateRecipient(method model.PayoutMethod, recipient map[string]interface{}) bool {
	switch method {
	case model.MethodEcocash:
		number, _ := recipient["ecocash_number"].(string)
		number = strings.Join(strings.Fields(number), "")
		return ecocashNumberRe.MatchString(number)
	case model.MethodBank:
		accountNumber, _ := recipient["account_number"].(string)
		bankCode, _ := recipient["bank_code"].(string)
		return accountNumber != "" && bankCode != ""
	}
	return false
}

func (p *PaynowAdapter) ExecutePayout(ctx context.Context, input ExecutePayoutInput) *ExecutePayoutResponse {
	if !p.ValidateConfiguration(ctx) {
		return &ExecutePayoutResponse{
			Result:        ResultNotConfigured,
			FailureReason: "Paynow provider is not enabled or missing credentials",
		}
	}

	if input.Method != model.MethodEcocash && input.Method != model.MethodBank {
		return &ExecutePayoutResponse{
			Result:        ResultFailed,
			FailureReason: "Paynow does not support payout method: " + string(input.Method),
		}
	}

	if !p.ValidateRecipient(input.Method, input.Recipient) {
		return &ExecutePayoutResponse{
			Result:        ResultInvalidConfig,
			FailureReason: "Invalid recipient details for Paynow payout",
		}
	}

	amount := decimal.NewFromInt(input.AmountCents).Div(decimal.NewFromInt(100)).StringFixed(2)

	params := url.Values{}
	params.Set("id", p.conf.IntegrationID)
	params.Set("reference", input.Reference)
	params.Set("amount", amount)
	params.Set("currency", input.Currency)

	switch input.Method {
	case model.MethodEcocash:
		number, _ := input.Recipient["ecocash_number"].(string)
		params.Set("method", "ecocash")
		params.Set("recipient", strings.Join(strings.Fields(number), ""))
	case model.MethodBank:
		accountNumber, _ := input.Recipient["account_number"].(string)
		bankCode, _ := input.Recipient["bank_code"].(string)
		params.Set("method", "bank")
		params.Set("accountnumber", accountNumber)
		params.Set("bankcode", bankCode)
		if accountName, ok := input.Recipient["account_name"].(string); ok && accountName != "" {
			params.Set("accountname", accountName)
		}
	}

	params.Set("hash", p.computeHash(flattenValues(params)))

	body, _, err := request.PostForm(p.conf.Endpoint, params, paynowTimeout)
	if err != nil {
		return &ExecutePayoutResponse{
			Result:        ResultFailed,
			FailureReason: err.Error(),
			MetaData:      map[string]interface{}{"error": err.Error()},
		}
	}

	data := parseKeyValue(body)

	// A signed response must verify against our integration key.
	if providedHash, ok := data["hash"]; ok && providedHash != "" {
		if p.computeHash(data) != strings.ToUpper(providedHash) {
			return &ExecutePayoutResponse{
				Result:        ResultFailed,
				FailureReason: "Invalid Paynow response signature",
			}
		}
	}

	status := strings.ToLower(data["status"])
	if status == "ok" || status == "success" || status == "sent" {
		gatewayRef := firstNonEmpty(data["reference"], data["payoutreference"], data["transactionreference"], input.Reference)
		return &ExecutePayoutResponse{
			Result:     ResultSuccess,
			GatewayRef: gatewayRef,
			MetaData: map[string]interface{}{
				"paynow_reference": firstNonEmpty(data["payoutreference"], data["transactionreference"]),
				"status":           data["status"],
				"message":          data["message"],
			},
		}
	}

	return &ExecutePayoutResponse{
		Result:        ResultFailed,
		FailureReason: firstNonEmpty(data["message"], data["error"], "Paynow payout failed"),
		MetaData: map[string]interface{}{
			"status": data["status"],
		},
	}
}

// computeHash canonicalizes the parameters (sorted by key, hash excluded),
// appends the integration key and returns the uppercase SHA-512 hex digest.
func (p *PaynowAdapter) computeHash(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.ToLower(k) == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha512.Sum512([]byte(strings.Join(pairs, "&") + p.conf.IntegrationKey))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// parseKeyValue decodes Paynow's key=value&key=value response body. Keys are
// lowercased; values are URL-unescaped.
func parseKeyValue(body string) map[string]string {
	data := map[string]string{}
	for _, pair := range strings.Split(body, "&") {
		parts := strings.SplitN(pair, "=", 2)
		if parts[0] == "" {
			continue
		}
		value := ""
		if len(parts) == 2 {
			if unescaped, err := url.QueryUnescape(parts[1]); err == nil {
				value = unescaped
			} else {
				value = parts[1]
			}
		}
		data[strings.ToLower(parts[0])] = value
	}
	return data
}

func flattenValues(values url.Values) map[string]string {
	flat := make(map[string]string, len(values))
	for k := range values {
		flat[k] = values.Get(k)
	}
	return flat
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
