/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Signs in and stores the session cookie.",
	Long: `Signs in to the chat server. The session cookie is kept in the cookie
database so later commands run as the same user.
The password is read from the terminal unless -p is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]
		password, err := passwordFromFlagOrPrompt(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			return
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()

		if err := gateway.Login(ctx, username, password); err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			return
		}
		user, err := gateway.CheckAuth(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking session after login: %v\n", err)
			return
		}
		fmt.Printf("Logged in as %s\n", user.Username)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringP("password", "p", "", "Password (prompted for when omitted)")
}

func passwordFromFlagOrPrompt(cmd *cobra.Command) (string, error) {
	if password, _ := cmd.Flags().GetString("password"); password != "" {
		return password, nil
	}
	return readPassword("Password: ")
}

// readPassword hides the input on a terminal and reads a plain line otherwise.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
