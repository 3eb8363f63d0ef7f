package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/credentials"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the bearer token sent with every request",
	Long: `Store a bearer token in the configured credential store (a user-only
file by default, or Redis). Without --token the token is read from stdin.

The token is discarded automatically when the service answers 401.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored bearer token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginToken, "token", "t", "", "bearer token")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func persistentStore(ctx context.Context) (credentials.Store, error) {
	if cfg.Credentials.Driver == credentials.DriverMemory {
		return nil, fmt.Errorf("credentials driver is memory; set credentials.driver to file or redis to keep a token")
	}
	c := *cfg
	c.Credentials.Token = ""
	return openStore(ctx, &c)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	token := strings.TrimSpace(loginToken)
	if token == "" {
		if !ui.JSON() {
			fmt.Fprint(os.Stderr, "Token: ")
		}
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}

	store, err := persistentStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if err := store.Set(ctx, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	ui.Success("Token stored (%s)", describeStore(store))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := persistentStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	ui.Success("Token removed (%s)", describeStore(store))
	return nil
}

func describeStore(store credentials.Store) string {
	switch s := store.(type) {
	case *credentials.FileStore:
		return s.Path()
	case *credentials.RedisStore:
		return "redis"
	default:
		return "memory"
	}
}
