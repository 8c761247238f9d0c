package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(os.Stdout)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
}

// APIFlags selects the remote server and credentials for resource commands
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
	Username   string
	Password   string
	Token      string
	Insecure   bool
}

// command carries what every subcommand needs to run
type command struct {
	out io.Writer
}

// buildRoot creates the root command with every subcommand attached
func buildRoot(out io.Writer) *cobra.Command {
	globalFlags := &GlobalFlags{}
	apiFlags := &APIFlags{}
	c := command{out: out}

	root := createRootCommand(globalFlags, apiFlags)
	root.SetOut(out)

	root.AddCommand(
		createServeCommand(globalFlags),
		createUserCommand(c, globalFlags),
		createKindsCommand(c, globalFlags),
		createListCommand(c, apiFlags),
		createGetCommand(c, apiFlags),
		createCreateCommand(c, apiFlags),
		createUpdateCommand(c, apiFlags),
		createDeleteCommand(c, apiFlags),
		createLoginCommand(c, apiFlags),
		createLogoutCommand(c),
	)
	return root
}

// createRootCommand creates the root command with its persistent flags
func createRootCommand(flags *GlobalFlags, api *APIFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "curator",
		Short: "CRUD REST resource server",
		Long: `Curator serves configurable CRUD resources over REST with role based
access control, backed by memory, SQLite, PostgreSQL or GORM stores.

Examples:
  curator serve config.toml
  curator user add --username=alice --password=secret --roles=ADMIN
  curator login --username=alice --password=secret
  curator list books
  curator create books --data '{"title":"Algorithms","author":"Cormen","price":89.99,"year":2009}'`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&api.APIUrl, "api-url", "", "server API base URL (default: session URL or http://localhost:8080/api)")
	root.PersistentFlags().DurationVar(&api.APITimeout, "api-timeout", 10*time.Second, "API request timeout")
	root.PersistentFlags().StringVar(&api.Username, "user", "", "username for basic authentication")
	root.PersistentFlags().StringVar(&api.Password, "password", "", "password for basic authentication")
	root.PersistentFlags().StringVar(&api.Token, "token", "", "bearer token (overrides the saved session)")
	root.PersistentFlags().BoolVar(&api.Insecure, "insecure", false, "skip TLS certificate verification")

	return root
}
