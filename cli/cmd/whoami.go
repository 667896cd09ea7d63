/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"id"},
	Short:   "Prints the signed-in user.",
	Long:    `Asks the server which user the stored session cookie belongs to.`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		user, err := gateway.CheckAuth(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking session: %v\n", err)
			return
		}
		fmt.Printf("Username: %s\n", user.Username)
		fmt.Printf("ID:       %s\n", user.ID)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
