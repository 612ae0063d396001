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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5401"

	// DefaultMinPayoutCents is used when no minimum payout is configured.
	DefaultMinPayoutCents = 1000
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"VAULT_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"VAULT_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"VAULT_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"VAULT_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"VAULT_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"VAULT_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"VAULT_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"VAULT_REDIS_DNS"`
}

// PayoutConfig governs the payout lifecycle: the minimum amount an owner may
// request, how long a transaction may sit in PROCESSING before the
// reconciliation sweep treats it as failed, and the kill switch.
type PayoutConfig struct {
	Disabled             bool  `json:"disabled" envconfig:"VAULT_PAYOUTS_DISABLED"`
	MinimumCents         int64 `json:"minimum_cents" envconfig:"VAULT_PAYOUTS_MINIMUM_CENTS"`
	ProcessingTimeoutMin int   `json:"processing_timeout_min" envconfig:"VAULT_PAYOUTS_PROCESSING_TIMEOUT_MIN"`
	SweepIntervalSec     int   `json:"sweep_interval_sec" envconfig:"VAULT_PAYOUTS_SWEEP_INTERVAL_SEC"`
	MaxWorkers           int   `json:"max_workers" envconfig:"VAULT_PAYOUTS_MAX_WORKERS"`
}

// PaynowConfig carries the credentials for the Paynow remittance rail.
type PaynowConfig struct {
	Enabled        bool   `json:"enabled" envconfig:"VAULT_PAYNOW_ENABLED"`
	IntegrationID  string `json:"integration_id" envconfig:"VAULT_PAYNOW_INTEGRATION_ID"`
	IntegrationKey string `json:"integration_key" envconfig:"VAULT_PAYNOW_INTEGRATION_KEY"`
	Endpoint       string `json:"endpoint" envconfig:"VAULT_PAYNOW_ENDPOINT"`
}

type ProvidersConfig struct {
	Paynow PaynowConfig `json:"paynow"`
}

type QueueConfig struct {
	PayoutQueue    string `json:"payout_queue" envconfig:"VAULT_QUEUE_PAYOUT"`
	WebhookQueue   string `json:"webhook_queue" envconfig:"VAULT_QUEUE_WEBHOOK"`
	NumberOfQueues int    `json:"number_of_queues" envconfig:"VAULT_QUEUE_NUMBER_OF_QUEUES"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"VAULT_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"VAULT_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"VAULT_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"VAULT_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Payouts      PayoutConfig     `json:"payouts"`
	Providers    ProvidersConfig  `json:"providers"`
	Queue        QueueConfig      `json:"queue"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("vault", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called vault.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Vault Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Payouts.MinimumCents <= 0 {
		cnf.Payouts.MinimumCents = DefaultMinPayoutCents
	}
	if cnf.Payouts.ProcessingTimeoutMin <= 0 {
		cnf.Payouts.ProcessingTimeoutMin = 30
	}
	if cnf.Payouts.SweepIntervalSec <= 0 {
		cnf.Payouts.SweepIntervalSec = 60
	}
	if cnf.Payouts.MaxWorkers <= 0 {
		cnf.Payouts.MaxWorkers = 10
	}

	if cnf.Queue.PayoutQueue == "" {
		cnf.Queue.PayoutQueue = "new:payout"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 4
	}

	if cnf.Providers.Paynow.Endpoint == "" {
		cnf.Providers.Paynow.Endpoint = "https://www.paynow.co.zw/interface/remittances"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// ProcessingTimeout returns the PROCESSING age threshold as a duration.
func (p PayoutConfig) ProcessingTimeout() time.Duration {
	return time.Duration(p.ProcessingTimeoutMin) * time.Minute
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
