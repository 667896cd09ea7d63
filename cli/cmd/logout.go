/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Ends the server session.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		if err := gateway.Logout(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Logout failed: %v\n", err)
			return
		}
		if forget, _ := cmd.Flags().GetBool("forget"); forget {
			if err := cookies.Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "Error clearing cookies: %v\n", err)
				return
			}
		}
		fmt.Println("Logged out")
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().Bool("forget", false, "Also delete every stored cookie")
}
