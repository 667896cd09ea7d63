/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ponyo877/roomchat/client/adaptor"
	"github.com/ponyo877/roomchat/client/logx"
	"github.com/ponyo877/roomchat/client/repository"
)

var (
	cfgFile   string
	logger    zerolog.Logger
	cookies   *repository.CookieStore
	gateway   *adaptor.Gateway
	transport *adaptor.StreamTransport
	closeLog  func() error
)

const (
	serverURLKey      = "server_url"
	cookieDBKey       = "cookie_db"
	logLevelKey       = "log_level"
	logFileKey        = "log_file"
	requestTimeoutKey = "request_timeout"
)

// quietCommands own the terminal, so their logs never go to stderr.
var quietCommands = map[string]bool{
	"tui":   true,
	"shell": true,
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roomchat",
	Short: "A terminal client for roomchat servers",
	Long: `roomchat signs in to a chat server, lists its chatrooms and follows
the live message stream of one room at a time.

Run without a subcommand to start the interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == configCmd.Name() {
			return nil
		}

		w, closer, err := logx.Open(viper.GetString(logFileKey), quietCommands[cmd.Name()] || cmd == cmd.Root())
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		closeLog = closer
		logger = logx.New(w, viper.GetString(logLevelKey), true)

		cookies, err = repository.OpenCookieStore(viper.GetString(cookieDBKey), logger)
		if err != nil {
			return err
		}

		serverURL := viper.GetString(serverURLKey)
		client := &http.Client{Jar: cookies, Timeout: viper.GetDuration(requestTimeoutKey)}
		if gateway, err = adaptor.NewGateway(serverURL, client, logger); err != nil {
			return err
		}
		if transport, err = adaptor.NewStreamTransport(serverURL, cookies, logger); err != nil {
			return err
		}
		logger.Debug().Str("server_url", serverURL).Msg("Client ready")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		if cookies != nil {
			errs = append(errs, cookies.Close())
		}
		if closeLog != nil {
			errs = append(errs, closeLog())
		}
		return errors.Join(errs...)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.roomchat.yaml)")
	rootCmd.PersistentFlags().String("server", "", "Base URL of the chat server (e.g., http://localhost:8080)")
	rootCmd.PersistentFlags().String("cookie-db", "", "SQLite file holding the session cookie")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().Duration("request-timeout", 0, "Timeout for each REST request (0 means none)")

	viper.BindPFlag(serverURLKey, rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag(cookieDBKey, rootCmd.PersistentFlags().Lookup("cookie-db"))
	viper.BindPFlag(logLevelKey, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(logFileKey, rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag(requestTimeoutKey, rootCmd.PersistentFlags().Lookup("request-timeout"))

	viper.SetDefault(serverURLKey, "http://localhost:8080")
	viper.SetDefault(cookieDBKey, defaultCookieDB())
	viper.SetDefault(logLevelKey, "info")
	viper.SetDefault(logFileKey, "")
	viper.SetDefault(requestTimeoutKey, time.Duration(0))
}

func defaultCookieDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".roomchat", "cookies.db")
	}
	return filepath.Join(home, ".roomchat", "cookies.db")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".roomchat" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".roomchat")
	}

	viper.SetEnvPrefix("roomchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// requestContext bounds a single one-shot command.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, time.Second*10)
}
