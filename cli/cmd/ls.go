/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// lsCmd represents the ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Lists chatrooms.",
	Long:  `Lists the chatrooms on the server in the order the server returns them.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		rooms, err := gateway.ListRooms(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing chatrooms: %v\n", err)
			return
		}

		if len(rooms) == 0 {
			fmt.Println("No chatrooms yet. Create one with mkroom.")
			return
		}

		for _, room := range rooms {
			formattedTime := "           "
			if !room.CreatedAt.IsZero() {
				t := room.CreatedAt.Local()
				formattedTime = fmt.Sprintf("%s %2d %s", t.Format("1"), t.Day(), t.Format("15:04"))
			}
			fmt.Printf("%-26s  %s %s\n", room.ID, formattedTime, room.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
