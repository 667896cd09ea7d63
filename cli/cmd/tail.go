/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/render"
	"github.com/ponyo877/roomchat/client/usecase"
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail [room-id]",
	Short: "Follows the message log of a chatroom.",
	Long: `Joins a chatroom and prints its messages as they arrive until interrupted.
Without an argument the first chatroom on the server is followed.`,
	Args: cobra.MaximumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 || gateway == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		ctx, cancel := requestContext(cmd)
		defer cancel()
		rooms, err := gateway.ListRooms(ctx)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		ids := make([]string, 0, len(rooms))
		for _, room := range rooms {
			ids = append(ids, room.ID+"\t"+room.Name)
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		manager := usecase.NewManager(gateway, transport, render.NewWriter(os.Stdout), logger)
		defer manager.Close()
		go manager.Run(ctx)

		if err := manager.CheckAuth(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error checking session: %v\n", err)
			return
		}
		if len(args) == 1 {
			if err := manager.JoinRoom(ctx, args[0]); err != nil && !errors.Is(err, domain.ErrSuperseded) {
				fmt.Fprintf(os.Stderr, "Error joining chatroom %s: %v\n", args[0], err)
				return
			}
		}
		if manager.Snapshot().Chatroom == nil {
			fmt.Fprintln(os.Stderr, "No chatroom to follow. Create one with mkroom.")
			return
		}

		<-ctx.Done()
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
}
