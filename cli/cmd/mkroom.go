/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// mkroomCmd represents the mkroom command
var mkroomCmd = &cobra.Command{
	Use:   "mkroom <name...>",
	Short: "Creates new chatrooms.",
	Long:  `Creates one or more chatrooms on the server.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range args {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}

			ctx, cancel := requestContext(cmd)
			room, err := gateway.CreateRoom(ctx, name)
			cancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create chatroom %s: %v\n", name, err)
				continue
			}

			if room.ID != "" {
				fmt.Printf("Chatroom created: %s (%s)\n", room.Name, room.ID)
			} else {
				fmt.Printf("Chatroom created: %s\n", room.Name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(mkroomCmd)
}
