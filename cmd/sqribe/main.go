package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mmrzaf/sqribe/internal/app"
	"github.com/mmrzaf/sqribe/internal/config"
	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/mmrzaf/sqribe/internal/infra/repos/connections"
	"github.com/mmrzaf/sqribe/internal/infra/repos/runs"
	"github.com/mmrzaf/sqribe/internal/registry"
	"github.com/mmrzaf/sqribe/internal/timeutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	sourceRef      string
	targetRef      string
	objectFilter   string
	outputPath     string
	scriptPath     string
	driver         string
	queriesDir     string
	dropsDir       string
	connectionsDir string
	runsDBPath     string
	logLevel       string
	progressMode   string
	encrypt        string
	trustCert      bool
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "sqribe",
		Short: "Script, drop and restore SQL Server schema objects",
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&sourceRef, "source", cfg.SourceDSN, "Source connection (DSN, profile name or profile path)")
	pf.StringVar(&targetRef, "target", cfg.TargetDSN, "Target connection (DSN, profile name or profile path)")
	pf.StringVar(&objectFilter, "objects", cfg.ObjectTypes, "Object types to process, comma separated (empty for all)")
	pf.StringVar(&outputPath, "output", cfg.OutputPath, "Directory generated scripts are written to")
	pf.StringVar(&scriptPath, "scripts", cfg.ScriptPath, "Directory restore scripts are read from")
	pf.StringVar(&driver, "driver", cfg.Driver, "Driver for inline DSNs (sqlserver|sqlite)")
	pf.StringVar(&queriesDir, "queries-dir", cfg.QueriesDir, "Directory overriding bundled query templates")
	pf.StringVar(&dropsDir, "drops-dir", cfg.DropsDir, "Directory overriding bundled drop templates")
	pf.StringVar(&connectionsDir, "connections-dir", cfg.ConnectionsDir, "Connection profiles directory")
	pf.StringVar(&runsDBPath, "runs-db", cfg.RunsDB, "Run history database (SQLite path or postgres:// DSN, none to disable)")
	pf.StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level")
	pf.StringVar(&progressMode, "progress", cfg.Progress, "Progress output (bar|log|none)")
	pf.StringVar(&encrypt, "encrypt", cfg.Encrypt, "SQL Server encrypt setting (true|false|disable|strict)")
	pf.BoolVar(&trustCert, "trust-server-certificate", cfg.TrustServerCertificate, "Skip SQL Server certificate validation")

	rootCmd.AddCommand(pipelineCmd(domain.RunKindGenerate, "Script object definitions from the source into files"))
	rootCmd.AddCommand(pipelineCmd(domain.RunKindDrop, "Drop objects on the target using the drop templates"))
	rootCmd.AddCommand(pipelineCmd(domain.RunKindRestore, "Replay generated scripts against the target"))
	rootCmd.AddCommand(objectsCmd())
	rootCmd.AddCommand(connectionsCmd())
	rootCmd.AddCommand(runsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func objectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Inspect object types",
	}

	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List object types in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			list := registry.DefaultObjectRegistry().Ordered(nil)

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tNAME\tSCRIPT\tDROP TEMPLATE")
			for _, ot := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ot.Tag, ot.Name, ot.Filename, ot.DropTemplate)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	cmd.AddCommand(listCmd)
	return cmd
}

func connectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Manage connection profiles",
	}

	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List connection profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := connections.NewFileRepository(connectionsDir)
			list, err := repo.List()
			if err != nil {
				return err
			}
			list = connections.RedactConnections(list)

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDRIVER\tDSN")
			for _, c := range list {
				dsn := c.DSN
				if len(dsn) > 50 {
					dsn = dsn[:47] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Driver, dsn)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a connection profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := connections.NewFileRepository(connectionsDir)
			c, err := connections.Resolve(repo, args[0], driver)
			if err != nil {
				return err
			}

			data, _ := yaml.Marshal(connections.RedactConnection(c))
			fmt.Println(string(data))
			return nil
		},
	}

	testCmd := &cobra.Command{
		Use:   "test <id|dsn>",
		Short: "Connect and report the server version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := connections.NewFileRepository(connectionsDir)
			c, err := connections.Resolve(repo, args[0], driver)
			if err != nil {
				return err
			}

			check, err := app.CheckConnection(cmd.Context(), connectorFor(c), c)
			data, _ := yaml.Marshal(check)
			fmt.Println(string(data))
			return err
		},
	}

	cmd.AddCommand(listCmd, showCmd, testCmd)
	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}

	var (
		limit  int
		kind   string
		status string
		since  string
		format string
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepo, err := openRunRepo()
			if err != nil {
				return err
			}
			defer runRepo.Close()

			filter := runs.ListFilter{
				Limit:  limit,
				Kind:   domain.RunKind(kind),
				Status: domain.RunStatus(status),
			}
			if since != "" {
				filter.Since, err = timeutil.ParseSince(since, time.Now())
				if err != nil {
					return err
				}
			}

			list, err := runRepo.List(filter)
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tHASH\tOBJECTS\tSTARTED\tDURATION")
			for _, r := range list {
				duration := "-"
				if r.CompletedAt != nil {
					duration = timeutil.FormatElapsed(r.CompletedAt.Sub(r.StartedAt))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					short(r.ID), r.Kind, r.Status, short(r.Hash), r.ObjectTypes, humanize.Time(r.StartedAt), duration)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Limit results")
	listCmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (generate|drop|restore)")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&since, "since", "", "Only runs started after a time or look-back such as 24h or 7d")
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepo, err := openRunRepo()
			if err != nil {
				return err
			}
			defer runRepo.Close()

			run, err := runRepo.Get(args[0])
			if err != nil {
				return err
			}

			// Round-trip through JSON so the stored summary prints as a
			// nested document.
			raw, _ := json.Marshal(run)
			var doc map[string]any
			_ = json.Unmarshal(raw, &doc)
			data, _ := yaml.Marshal(doc)
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func openRunRepo() (runs.Repository, error) {
	if !historyEnabled() {
		return nil, errors.New("run history is disabled (--runs-db is empty)")
	}
	return runs.Open(runsDBPath)
}

func historyEnabled() bool {
	return runsDBPath != "" && !strings.EqualFold(runsDBPath, "none")
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
