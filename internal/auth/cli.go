package auth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// CLIHelper backs the "user" commands; output goes to out.
type CLIHelper struct {
	authService *AuthService
	out         io.Writer
}

func NewCLIHelper(authService *AuthService, out io.Writer) *CLIHelper {
	return &CLIHelper{authService: authService, out: out}
}

// AddUser creates a user and reports it.
func (cli *CLIHelper) AddUser(ctx context.Context, username, password string, roles []string) error {
	if len(roles) == 0 {
		roles = []string{"USER"}
	}
	u, err := cli.authService.CreateUser(ctx, username, password, roles)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "User '%s' created with roles %s\n", u.Username, strings.Join(u.Roles, ","))
	return nil
}

// ListUsers prints all users as a table.
func (cli *CLIHelper) ListUsers(ctx context.Context) error {
	users, err := cli.authService.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Users (%d total):\n", len(users))
	_, _ = fmt.Fprintln(tw, "USERNAME\tACTIVE\tROLES\tCREATED")
	for _, user := range users {
		active := "yes"
		if !user.Active {
			active = "no"
		}
		roles := strings.Join(user.Roles, ",")
		if roles == "" {
			roles = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", user.Username, active, roles, user.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (cli *CLIHelper) DeleteUser(ctx context.Context, username string) error {
	if err := cli.authService.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	_, _ = fmt.Fprintf(cli.out, "User '%s' deleted\n", username)
	return nil
}
