/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ponyo877/roomchat/cli/shell"
	"github.com/ponyo877/roomchat/client/render"
	"github.com/ponyo877/roomchat/client/usecase"
)

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Starts the line-mode chat client.",
	Long: `Starts an interactive prompt. Lines starting with a slash are commands
(/login, /join, /create, ...); any other line is sent to the joined room.
Incoming messages are printed as they arrive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM)
	defer stop()

	view := render.NewWriter(os.Stdout)
	manager := usecase.NewManager(gateway, transport, view, logger)
	defer manager.Close()

	go manager.Run(ctx)

	// a failed check just leaves the shell signed out
	_ = manager.CheckAuth(ctx)

	shell.New(manager, view, os.Stdout, readPassword, logger).Run(ctx)
	return nil
}
