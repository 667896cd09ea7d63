/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// registerCmd represents the register command
var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Creates an account and signs in.",
	Long:  `Creates a new account on the chat server. The server signs the new user in right away.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, err := passwordFromFlagOrPrompt(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			return
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()

		if err := gateway.Register(ctx, args[0], password); err != nil {
			fmt.Fprintf(os.Stderr, "Registration failed: %v\n", err)
			return
		}
		user, err := gateway.CheckAuth(ctx)
		if err != nil {
			fmt.Printf("Registered %s\n", args[0])
			return
		}
		fmt.Printf("Registered and logged in as %s\n", user.Username)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringP("password", "p", "", "Password (prompted for when omitted)")
}
