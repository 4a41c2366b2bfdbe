// Command protocolctl drives the health protocol wizard against a running
// backend from the command line.
package main

import (
	"alcyxob/health-protocols/internal/client"
	"alcyxob/health-protocols/internal/logging"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const tokenEnv = "PROTOCOLCTL_TOKEN"

var (
	// Global flags
	serverURL string
	token     string
	verbose   bool
	timeout   time.Duration

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "protocolctl",
	Short: "Build and assign health protocols from the command line",
	Long: `protocolctl talks to the health-protocols backend.

Log in once, export the printed token as PROTOCOLCTL_TOKEN, then list your
customers and templates or run the protocol wizard with "create".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level, true)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Backend base URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "Bearer token (or set "+tokenEnv+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout")

	rootCmd.AddCommand(loginCmd, customersCmd, templatesCmd, createCmd)
}

func newClient() (*client.Client, error) {
	return client.New(serverURL,
		client.WithLogger(logger),
		client.WithTimeout(timeout),
	)
}

// bearerToken resolves the token from --token or the environment.
func bearerToken() (client.Token, error) {
	t := token
	if t == "" {
		t = os.Getenv(tokenEnv)
	}
	if t == "" {
		return "", errors.New("not logged in: pass --token or set " + tokenEnv + " (see protocolctl login)")
	}
	return client.Token(t), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
