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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/propadhq/vault/config"
	"github.com/propadhq/vault/internal/apierror"
	"github.com/propadhq/vault/model"
)

// StuckPayoutProcessor sweeps payout transactions that sat in PROCESSING
// past the configured timeout and settles them as failed. A provider call
// that died mid-flight leaves a debited wallet behind; the sweep restores it
// with the same compensation path a synchronous failure takes.
type StuckPayoutProcessor struct {
	vault          *Vault
	maxWorkers     int
	pollInterval   time.Duration
	stuckThreshold time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewStuckPayoutProcessor(vault *Vault) *StuckPayoutProcessor {
	maxWorkers := 10
	pollInterval := 60 * time.Second
	stuckThreshold := 30 * time.Minute

	cfg, err := config.Fetch()
	if err == nil {
		if cfg.Payouts.MaxWorkers > 0 {
			maxWorkers = cfg.Payouts.MaxWorkers
		}
		if cfg.Payouts.SweepIntervalSec > 0 {
			pollInterval = time.Duration(cfg.Payouts.SweepIntervalSec) * time.Second
		}
		if cfg.Payouts.ProcessingTimeoutMin > 0 {
			stuckThreshold = cfg.Payouts.ProcessingTimeout()
		}
	}

	return &StuckPayoutProcessor{
		vault:          vault,
		maxWorkers:     maxWorkers,
		pollInterval:   pollInterval,
		stuckThreshold: stuckThreshold,
		stopCh:         make(chan struct{}),
	}
}

func (p *StuckPayoutProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.Info("Stuck payout processor started")
}

func (p *StuckPayoutProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Stuck payout processor stopped")
}

func (p *StuckPayoutProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *StuckPayoutProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Stuck payout processor context cancelled")
			return
		case <-p.stopCh:
			logrus.Info("Stuck payout processor stop signal received")
			return
		case <-ticker.C:
			p.recoverWithThreshold(ctx, p.stuckThreshold)
		}
	}
}

// RecoverStuckPayouts triggers an immediate sweep of stuck PROCESSING
// transactions using the provided threshold. This is exposed for the manual
// trigger API endpoint.
func (v *Vault) RecoverStuckPayouts(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold < 2*time.Minute {
		threshold = 2 * time.Minute
	}

	processor := NewStuckPayoutProcessor(v)
	return processor.recoverWithThreshold(ctx, threshold), nil
}

func (p *StuckPayoutProcessor) recoverWithThreshold(ctx context.Context, threshold time.Duration) int {
	stuck, err := p.vault.datasource.GetStuckProcessingTransactions(ctx, time.Now().Add(-threshold))
	if err != nil {
		logrus.Errorf("failed to get stuck payout transactions: %v", err)
		return 0
	}

	if len(stuck) == 0 {
		return 0
	}

	logrus.Infof("Settling %d stuck payout transactions with %d workers (threshold=%v)", len(stuck), p.maxWorkers, threshold)

	sem := make(chan struct{}, p.maxWorkers)
	var batchWg sync.WaitGroup

	for _, txn := range stuck {
		sem <- struct{}{}
		batchWg.Add(1)
		go func(t *model.PayoutTransaction) {
			defer batchWg.Done()
			defer func() { <-sem }()
			if err := p.vault.failStuckTransaction(ctx, t); err != nil {
				logrus.Errorf("failed to settle stuck payout transaction %s: %v", t.TransactionID, err)
			}
		}(txn)
	}

	batchWg.Wait()
	return len(stuck)
}

// failStuckTransaction settles one timed-out transaction: it claims the
// PROCESSING row, compensates the debit and fails the request. A transaction
// another worker already settled is skipped.
func (v *Vault) failStuckTransaction(ctx context.Context, transaction *model.PayoutTransaction) error {
	request, err := v.datasource.GetPayoutRequest(transaction.RequestID)
	if err != nil {
		return err
	}

	err = v.datasource.ResolvePayoutTransaction(ctx, transaction.TransactionID, model.PayoutFailed, "", "processing timeout exceeded")
	if err != nil {
		if apierror.Is(err, apierror.ErrInvalidState) {
			return nil
		}
		return err
	}

	_, err = v.Credit(ctx, EntryInput{
		OwnerType:   request.OwnerType,
		OwnerID:     request.OwnerID,
		Currency:    request.Currency,
		AmountCents: transaction.AmountCents,
		SourceType:  model.SourceAdjustment,
		SourceID:    transaction.TransactionID,
		Description: "Compensation for timed out payout",
	})
	if err != nil {
		return err
	}

	if err := v.datasource.UpdatePayoutRequestStatus(ctx, request.RequestID,
		[]model.PayoutStatus{model.PayoutProcessing}, model.PayoutFailed); err != nil {
		logrus.Errorf("failed to mark payout request %s failed: %v", request.RequestID, err)
	}

	v.LogAction(AuditPayoutFailed, "system", auditTargetPayoutRequest, request.RequestID,
		map[string]interface{}{"reason": "processing timeout exceeded"})
	v.postPayoutActions("payout.failed", request)

	logrus.Infof("Settled stuck payout transaction %s as failed", transaction.TransactionID)
	return nil
}
