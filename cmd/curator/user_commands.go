package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loykin/curator/internal/auth"
	"github.com/loykin/curator/internal/config"
	"github.com/loykin/curator/internal/store/factory"
)

// UserAddFlags holds flags for user add
type UserAddFlags struct {
	Roles []string
}

// createUserCommand creates the user command group
func createUserCommand(c command, globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users in the configured auth store",
		Long: `Manage users directly in the auth store named by [auth.store] in the
config file. The server does not need to be running.

Examples:
  curator user add alice s3cret --roles=ADMIN --config=config.toml
  curator user list --config=config.toml
  curator user delete alice --config=config.toml`,
	}

	addFlags := &UserAddFlags{}
	add := &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUsers(cmd.Context(), globalFlags.ConfigPath, func(ctx context.Context, cli *auth.CLIHelper) error {
				return cli.AddUser(ctx, args[0], args[1], addFlags.Roles)
			})
		},
	}
	add.Flags().StringSliceVar(&addFlags.Roles, "roles", []string{"USER"}, "roles to grant (USER, ADMIN)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withUsers(cmd.Context(), globalFlags.ConfigPath, func(ctx context.Context, cli *auth.CLIHelper) error {
				return cli.ListUsers(ctx)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUsers(cmd.Context(), globalFlags.ConfigPath, func(ctx context.Context, cli *auth.CLIHelper) error {
				return cli.DeleteUser(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

// withUsers opens the configured auth store for the duration of fn
func (c *command) withUsers(ctx context.Context, configPath string, fn func(context.Context, *auth.CLIHelper) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if strings.EqualFold(cfg.Auth.Store.Type, "memory") {
		return fmt.Errorf("auth store is in-memory; set [auth.store] in the config to manage users")
	}
	users, err := factory.NewUserStore(cfg.Auth.Store)
	if err != nil {
		return fmt.Errorf("open auth store: %w", err)
	}
	svc, err := auth.NewAuthService(users, cfg.Auth.Service())
	if err != nil {
		_ = users.Close()
		return err
	}
	defer func() { _ = svc.Close() }()
	return fn(ctx, auth.NewCLIHelper(svc, c.out))
}
