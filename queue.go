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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/propadhq/vault/config"
	redis_db "github.com/propadhq/vault/internal/redis-db"
)

// Queue wraps the asynq client used for payout and webhook tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// PayoutTaskPayload is the body of a queued payout task.
type PayoutTaskPayload struct {
	RequestID string `json:"request_id"`
	OwnerID   string `json:"owner_id"`
	ActorID   string `json:"actor_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueuePayout queues a payout request for asynchronous processing. Tasks
// are sharded across the payout queues by owner so attempts against one
// wallet process serially while different wallets spread out.
func (q *Queue) EnqueuePayout(ctx context.Context, payload PayoutTaskPayload) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	queueIndex := hashWalletID(payload.OwnerID) % cnf.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cnf.Queue.PayoutQueue, queueIndex+1)

	taskOptions := []asynq.Option{
		asynq.TaskID(payload.RequestID),
		asynq.Queue(queueName),
		asynq.MaxRetry(0),
	}
	task := asynq.NewTask(queueName, body, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued payout request: %s", payload.RequestID)
	return nil
}

// GetQueuedPayout retrieves a queued payout task by request ID, scanning all
// payout queues.
func (q *Queue) GetQueuedPayout(requestID string) (*PayoutTaskPayload, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.PayoutQueue, i)
		task, err := q.Inspector.GetTaskInfo(queueName, requestID)
		if err == nil && task != nil {
			var payload PayoutTaskPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return nil, err
			}
			return &payload, nil
		}
	}
	return nil, nil
}

// EnqueuePayout queues a payout request through the vault's queue.
func (v *Vault) EnqueuePayout(ctx context.Context, requestID, actorID string) error {
	request, err := v.datasource.GetPayoutRequest(requestID)
	if err != nil {
		return err
	}
	return v.queue.EnqueuePayout(ctx, PayoutTaskPayload{
		RequestID: request.RequestID,
		OwnerID:   request.OwnerID,
		ActorID:   actorID,
	})
}

// GetQueuedPayout reports whether a payout request is sitting on one of the
// payout queues awaiting a worker. Returns nil when it is not queued.
func (v *Vault) GetQueuedPayout(requestID string) (*PayoutTaskPayload, error) {
	return v.queue.GetQueuedPayout(requestID)
}

// ProcessQueuedPayout is the asynq handler for payout tasks.
func (v *Vault) ProcessQueuedPayout(ctx context.Context, task *asynq.Task) error {
	var payload PayoutTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	_, err := v.ProcessPayout(ctx, payload.RequestID, payload.ActorID)
	return err
}

// hashWalletID returns a consistent hash value for an owner ID.
func hashWalletID(ownerID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(ownerID))
	return int(hasher.Sum32())
}
