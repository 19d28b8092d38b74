package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/akashkatte-1/rag-paywatch/internal/version"
	paywatch "github.com/akashkatte-1/rag-paywatch/pkg/sdk"
)

const (
	app            = "paywatchctl"
	defaultServer  = "http://localhost:8000"
	serverEnv      = "PAYWATCH_URL"
	apiKeyEnv      = "PAYWATCH_API_KEY"
	defaultTimeout = 3 * time.Minute
)

type globalFlags struct {
	server  string
	apiKey  string
	timeout time.Duration
	json    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:          app,
		Short:        app + " uploads candidate spreadsheets to paywatch and asks questions about them",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&g.server, "server", "s", envOr(serverEnv, defaultServer),
		"paywatch server URL (env "+serverEnv+")")
	root.PersistentFlags().StringVarP(&g.apiKey, "api-key", "k", os.Getenv(apiKeyEnv),
		"API key sent as X-API-Key (env "+apiKeyEnv+")")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", defaultTimeout, "request timeout")
	root.PersistentFlags().BoolVarP(&g.json, "json", "j", false, "print raw JSON")

	root.AddCommand(
		newUploadCmd(g),
		newQueryCmd(g),
		newLogsCmd(g),
		newHealthCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globalFlags) client() (*paywatch.Client, error) {
	c, err := paywatch.New(g.server, paywatch.WithAPIKey(g.apiKey), paywatch.WithTimeout(g.timeout))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func newUploadCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.xlsx>",
		Short: "Upload a candidate spreadsheet and replace the live data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.UploadFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("upload %s: %w", args[0], err)
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nindex: %s (generation %d, %d rows, %d chunks)\n",
				res.Message, res.IndexName, res.Generation, res.Rows, res.Chunks)
			return nil
		},
	}
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question about the uploaded data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ans, err := c.Query(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, paywatch.ErrDataNotReady) {
				return errors.New("no data uploaded yet: run " + app + " upload <file.xlsx> first")
			}
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), ans)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
			return nil
		},
	}
}

func newLogsCmd(g *globalFlags) *cobra.Command {
	var date, logType string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recorded query, response, upload and error events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			page, err := c.Logs(cmd.Context(), date, logType)
			if err != nil {
				return fmt.Errorf("logs: %w", err)
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), page)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s: %d entries\n", page.Date, page.LogType, page.Count)
			for _, e := range page.Entries {
				fmt.Fprintf(out, "%v  %-13v %s\n", e["timestamp"], e["event_type"], summary(e))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to read as YYYYMMDD (default today, UTC)")
	cmd.Flags().StringVarP(&logType, "type", "t", "all", "all, queries, responses, uploads or errors")
	return cmd
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			hs, err := c.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), hs)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, hs.Status)
			names := make([]string, 0, len(hs.Checks))
			for name := range hs.Checks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %s: %s\n", name, hs.Checks[name])
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s (%s)\n", app, version.Version, version.Commit)
		},
	}
}

// summary picks the most useful field of an event for one-line output.
func summary(e map[string]any) string {
	for _, key := range []string{"query", "filename", "error_message"} {
		if v, ok := e[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
