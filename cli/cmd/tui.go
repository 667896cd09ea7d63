/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ponyo877/roomchat/cli/tui"
	"github.com/ponyo877/roomchat/client/usecase"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Starts the full-screen chat client",
	Long: `Starts the tview-based chat client: sign in or register, pick a room on
the left and type messages at the bottom. Logs go to --log-file, or nowhere.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		app := tui.New(logger)
		manager := usecase.NewManager(gateway, transport, app, logger)
		defer manager.Close()
		app.Bind(manager)

		go manager.Run(ctx)

		if err := app.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Chat UI error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
