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

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (e *RecordEntry) ValidateRecordEntry() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.OwnerType, validation.Required, validation.In("USER", "AGENCY")),
		validation.Field(&e.OwnerID, validation.Required),
		validation.Field(&e.Currency, validation.Required),
		validation.Field(&e.Type, validation.Required, validation.In("CREDIT", "DEBIT", "HOLD", "RELEASE", "REFUND")),
		validation.Field(&e.SourceType, validation.Required),
		validation.Field(&e.AmountCents, validation.Required, validation.Min(int64(1))),
	)
}

func (r *RegisterSourceRecord) ValidateRegisterSourceRecord() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SourceType, validation.Required),
		validation.Field(&r.SourceID, validation.Required),
	)
}

func (a *CreatePayoutAccount) ValidateCreatePayoutAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.OwnerType, validation.Required, validation.In("USER", "AGENCY")),
		validation.Field(&a.OwnerID, validation.Required),
		validation.Field(&a.Method, validation.Required, validation.In("ECOCASH", "BANK", "WALLET")),
		validation.Field(&a.Details, validation.Required),
	)
}

func (p *CreatePayoutRequest) ValidateCreatePayoutRequest() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.OwnerType, validation.Required, validation.In("USER", "AGENCY")),
		validation.Field(&p.OwnerID, validation.Required),
		validation.Field(&p.Currency, validation.Required),
		validation.Field(&p.AmountCents, validation.Required, validation.Min(int64(1))),
		validation.Field(&p.Method, validation.Required, validation.In("ECOCASH", "BANK", "WALLET")),
		validation.Field(&p.PayoutAccountID, validation.Required),
	)
}

func (r *RejectPayout) ValidateRejectPayout() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required),
	)
}

func (c *CancelPayout) ValidateCancelPayout() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OwnerID, validation.Required),
	)
}
