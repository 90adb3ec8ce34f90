package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/receiptwise/pocket"
)

var (
	cfgDBPath   string
	cfgProfile  string
	cfgAPIURL   string
	cfgAPIToken string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "pocket",
	Short: "Pocket - offline-first receipt CLI",
	Long: `Pocket is a CLI for managing receipts with offline-first sync.

Every write succeeds locally and is reconciled with the receipt service
when the network allows. Receipts created or edited offline are queued
durably and drained in the background or with 'pocket sync'.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db-path", "", "Path to local receipt database (default: derived from profile)")
	rootCmd.PersistentFlags().StringVar(&cfgProfile, "profile", "", "Profile to operate against (default: POCKET_PROFILE or \"default\")")
	rootCmd.PersistentFlags().StringVar(&cfgAPIURL, "api-url", "", "Base URL of the receipt service")
	rootCmd.PersistentFlags().StringVar(&cfgAPIToken, "api-token", "", "Access token for the receipt service")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(failedCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func loadConfig() (pocket.Config, error) {
	cfg, err := pocket.ConfigFromEnv()
	if err != nil {
		return pocket.Config{}, err
	}

	// Flags override environment
	if cfgDBPath != "" {
		cfg.LocalPath = cfgDBPath
	}
	if cfgProfile != "" {
		cfg.Profile = cfgProfile
	}
	if cfgAPIURL != "" {
		cfg.APIURL = cfgAPIURL
	}
	if cfgAPIToken != "" {
		cfg.APIToken = cfgAPIToken
	}

	// The CLI is one-shot; background sync belongs to long-lived hosts.
	cfg.AutoSync = false

	return cfg, nil
}

func newClient() (*pocket.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := pocket.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}
