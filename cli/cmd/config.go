/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [server_url]",
	Short: "Gets or sets the server URL.",
	Long: `Manages configuration for the roomchat client.
If called without arguments, it displays the effective configuration.
If called with an argument, it stores the server URL in the config file.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Printf("Config File:     %s\n", configPath())
			fmt.Printf("Server URL:      %s\n", viper.GetString(serverURLKey))
			fmt.Printf("Cookie DB:       %s\n", viper.GetString(cookieDBKey))
			fmt.Printf("Log Level:       %s\n", viper.GetString(logLevelKey))
			fmt.Printf("Log File:        %s\n", viper.GetString(logFileKey))
			fmt.Printf("Request Timeout: %s\n", viper.GetDuration(requestTimeoutKey))
			return
		}

		serverURL := args[0]
		u, err := url.Parse(serverURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fmt.Fprintf(os.Stderr, "Invalid server URL %q: expected http(s)://host[:port]\n", serverURL)
			return
		}

		viper.Set(serverURLKey, serverURL)
		if err := writeConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			return
		}
		fmt.Printf("Server URL set to: %s\n", serverURL)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roomchat.yaml"
	}
	return filepath.Join(home, ".roomchat.yaml")
}

// writeConfig rewrites the config file with every effective setting.
func writeConfig() error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return viper.WriteConfigAs(path)
}
