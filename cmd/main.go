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

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/propadhq/vault"
	"github.com/propadhq/vault/config"
	"github.com/propadhq/vault/database"
	"github.com/propadhq/vault/internal/notification"
)

// Cli encapsulates the root Cobra command.
type Cli struct {
	cmd *cobra.Command
}

// vaultInstance holds the runtime Vault instance and its configuration,
// shared by all subcommands.
type vaultInstance struct {
	vault *vault.Vault
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the Vault instance before
// any command runs.
func preRun(app *vaultInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("vault.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newVault, err := setupVault(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.vault = newVault
		app.cnf = cnf

		return nil
	}
}

func setupVault(cfg *config.Configuration) (*vault.Vault, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newVault, err := vault.NewVault(db)
	if err != nil {
		return nil, fmt.Errorf("error creating vault: %v", err)
	}
	return newVault, nil
}

// NewCLI assembles the command-line interface: server, workers and migrate
// subcommands under one root.
func NewCLI() *Cli {
	var configFile string
	v := &vaultInstance{}

	var rootCmd = &cobra.Command{
		Use:   "vault",
		Short: "Wallet ledger and payout core",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./vault.json", "Configuration file for the vault server")

	rootCmd.PersistentPreRunE = preRun(v)

	rootCmd.AddCommand(serverCommands(v))
	rootCmd.AddCommand(workerCommands(v))
	rootCmd.AddCommand(migrateCommands())
	rootCmd.AddCommand(configCommands())

	return &Cli{cmd: rootCmd}
}

func (c Cli) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
