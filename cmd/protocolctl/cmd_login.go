package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const passwordEnv = "PROTOCOLCTL_PASSWORD"

var (
	loginEmail    string
	loginPassword string
)

// loginCmd exchanges credentials for a bearer token
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print a bearer token",
	Long: `Authenticates against the backend and prints the bearer token.

Use it with:
  export PROTOCOLCTL_TOKEN=$(protocolctl login --email you@example.com)`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (or set "+passwordEnv+")")
	_ = loginCmd.MarkFlagRequired("email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return errors.New("password is required: pass --password or set " + passwordEnv)
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	tok, user, err := c.Login(ctx, loginEmail, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Logged in as %s (%s)\n", user.Name, user.Role)
	fmt.Fprintln(cmd.OutOrStdout(), string(tok))
	return nil
}
