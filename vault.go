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
	"github.com/redis/go-redis/v9"

	"github.com/propadhq/vault/config"
	"github.com/propadhq/vault/database"
	"github.com/propadhq/vault/gateways"
	"github.com/propadhq/vault/internal/cache"
	redis_db "github.com/propadhq/vault/internal/redis-db"
)

// Vault is the wallet ledger and payout engine. All money movement flows
// through its append-only ledger; payouts ride the gateway registry.
type Vault struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	gateways   *gateways.Registry
	cache      cache.Cache
}

// NewVault initializes a new instance of Vault with the provided datasource.
// It fetches the configuration and wires up redis, the task queue, the
// balance cache and the payout gateway registry.
func NewVault(db database.IDataSource) (*Vault, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns})
	if err != nil {
		return nil, err
	}
	balanceCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	newVault := &Vault{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		gateways:   gateways.NewRegistry(configuration),
		cache:      balanceCache,
	}
	return newVault, nil
}
