package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Wazzap configuration",
	Long:  "View or modify the Wazzap CLI configuration stored in ~/.wazzap/config.toml.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration and the endpoints in effect",
	Long:  "Print ~/.wazzap/config.toml with the stored token masked, followed by the\nREST and realtime URLs after environment overrides are applied.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out, err := redactedConfig(cfg)
		if err != nil {
			return err
		}
		fmt.Print(out)

		apiURL, wsURL, err := endpoints(cfg)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println("# in effect")
		fmt.Printf("# api_url = %s\n", apiURL)
		fmt.Printf("# ws_url  = %s\n", wsURL)
		return nil
	},
}

// redactedConfig renders cfg as TOML with the session token masked.
func redactedConfig(cfg *Config) (string, error) {
	shown := *cfg
	if shown.Auth.Token != "" {
		shown.Auth.Token = maskToken(shown.Auth.Token)
	}
	data, err := toml.Marshal(shown)
	if err != nil {
		return "", fmt.Errorf("cannot marshal config: %w", err)
	}
	return string(data), nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value using dot notation. URLs are checked and the\n" +
		"realtime path is appended to ws_url when missing.\n" +
		"Example: wazzap config set default.ws_url wss://chat.example.com",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := setConfigValue(cfg, key, args[1]); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, configValue(cfg, key))
		return nil
	},
}

// configValue reads back a [default] field after normalization.
func configValue(cfg *Config, key string) string {
	switch key {
	case "default.api_url":
		return cfg.Default.APIURL
	case "default.ws_url":
		return cfg.Default.WSURL
	}
	return ""
}
