package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loykin/curator/internal/config"
	"github.com/loykin/curator/pkg/client"
)

const defaultAPIUrl = "http://localhost:8080/api"

// DataFlags holds the record body for create and update
type DataFlags struct {
	Data     string
	DataFile string
}

// createKindsCommand prints the kinds a config file serves
func createKindsCommand(c command, globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "Show the resource kinds served by the configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(globalFlags.ConfigPath)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			kinds, err := cfg.Kinds()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "KIND\tROUTE\tTABLE\tFIELDS")
			for _, k := range kinds {
				fields := make([]string, 0, len(k.Fields))
				for _, f := range k.Fields {
					s := f.Name + ":" + string(f.Type)
					if f.Rules != "" {
						s += "(" + f.Rules + ")"
					}
					fields = append(fields, s)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s/%s\t%s\t%s\n", k.Name, cfg.Server.BasePath, k.Route, k.Table, strings.Join(fields, " "))
			}
			return tw.Flush()
		},
	}
}

func createListCommand(c command, api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <route>",
		Short: "List every record of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.apiClient(api)
			if err != nil {
				return err
			}
			recs, err := cl.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(recs)
		},
	}
}

func createGetCommand(c command, api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <route> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			cl, err := c.apiClient(api)
			if err != nil {
				return err
			}
			rec, err := cl.Get(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			return c.printJSON(rec)
		},
	}
}

func createCreateCommand(c command, api *APIFlags) *cobra.Command {
	data := &DataFlags{}
	cmd := &cobra.Command{
		Use:   "create <route>",
		Short: "Create a record",
		Long: `Create a record from a JSON object.

Examples:
  curator create books --data '{"title":"Algorithms","author":"Cormen","price":89.99,"year":2009}'
  curator create employees --data-file ada.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := data.load()
			if err != nil {
				return err
			}
			cl, err := c.apiClient(api)
			if err != nil {
				return err
			}
			rec, err := cl.Create(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			return c.printJSON(rec)
		},
	}
	data.bind(cmd)
	return cmd
}

func createUpdateCommand(c command, api *APIFlags) *cobra.Command {
	data := &DataFlags{}
	cmd := &cobra.Command{
		Use:   "update <route> <id>",
		Short: "Replace every field of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			body, err := data.load()
			if err != nil {
				return err
			}
			cl, err := c.apiClient(api)
			if err != nil {
				return err
			}
			rec, err := cl.Update(cmd.Context(), args[0], id, body)
			if err != nil {
				return err
			}
			return c.printJSON(rec)
		},
	}
	data.bind(cmd)
	return cmd
}

func createDeleteCommand(c command, api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <route> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			cl, err := c.apiClient(api)
			if err != nil {
				return err
			}
			res, err := cl.Delete(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.out, res.Message)
			return nil
		},
	}
}

func createLoginCommand(c command, api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Obtain a token and save it as the current session",
		Long: `Log in with --user and --password. The token is saved to
~/.curator/session.json and used by later commands until it expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Login(cmd.Context(), api)
		},
	}
}

func createLogoutCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Logout()
		},
	}
}

// Login performs login and saves session
func (c *command) Login(ctx context.Context, api *APIFlags) error {
	if api.Username == "" || api.Password == "" {
		return errors.New("--user and --password are required")
	}
	serverURL := api.APIUrl
	if serverURL == "" {
		serverURL = defaultAPIUrl
	}
	cl := client.New(client.Config{BaseURL: serverURL, Timeout: api.APITimeout, Insecure: api.Insecure})
	tok, err := cl.Login(ctx, api.Username, api.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	sm := NewSessionManager()
	if err := sm.SaveSession(&Session{
		Token:     tok.Value,
		TokenType: tok.Type,
		ExpiresAt: tok.ExpiresAt,
		Username:  api.Username,
		ServerURL: serverURL,
	}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	_, _ = fmt.Fprintf(c.out, "Login successful! Logged in as %s\n", api.Username)
	_, _ = fmt.Fprintf(c.out, "Session saved to %s\n", sm.GetSessionPath())
	return nil
}

// Logout clears the saved session
func (c *command) Logout() error {
	sm := NewSessionManager()
	if !sm.IsLoggedIn() {
		_, _ = fmt.Fprintln(c.out, "No active session found")
		return nil
	}
	if err := sm.ClearSession(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	_, _ = fmt.Fprintln(c.out, "Logged out successfully")
	return nil
}

// apiClient builds a client from flags, falling back to the saved session.
// Explicit credentials win over the session.
func (c *command) apiClient(api *APIFlags) (*client.Client, error) {
	cfg := client.Config{
		BaseURL:  api.APIUrl,
		Timeout:  api.APITimeout,
		Insecure: api.Insecure,
		Username: api.Username,
		Password: api.Password,
		Token:    api.Token,
	}
	if cfg.Token == "" && cfg.Username == "" {
		session, err := NewSessionManager().LoadSession()
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if session != nil {
			cfg.Token = session.Token
			if cfg.BaseURL == "" {
				cfg.BaseURL = session.ServerURL
			}
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIUrl
	}
	return client.New(cfg), nil
}

func (c *command) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (d *DataFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.Data, "data", "", "record fields as a JSON object")
	cmd.Flags().StringVar(&d.DataFile, "data-file", "", "read the JSON object from a file")
}

func (d *DataFlags) load() (map[string]any, error) {
	raw := []byte(d.Data)
	if d.DataFile != "" {
		if d.Data != "" {
			return nil, errors.New("--data and --data-file are mutually exclusive")
		}
		b, err := os.ReadFile(d.DataFile)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("--data or --data-file is required")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid --data: %w", err)
	}
	return body, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
