package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/mmrzaf/sqribe/internal/app"
	"github.com/mmrzaf/sqribe/internal/config"
	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/mmrzaf/sqribe/internal/infra/repos/connections"
	"github.com/mmrzaf/sqribe/internal/infra/repos/runs"
	"github.com/mmrzaf/sqribe/internal/logging"
	"github.com/mmrzaf/sqribe/internal/progress"
	"github.com/mmrzaf/sqribe/internal/registry"
	"github.com/mmrzaf/sqribe/internal/runctx"
	"github.com/mmrzaf/sqribe/internal/timeutil"
	"github.com/spf13/cobra"
)

const appName = "sqribe"

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func pipelineCmd(kind domain.RunKind, short string) *cobra.Command {
	var hash string

	cmd := &cobra.Command{
		Use:          string(kind),
		Short:        short,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), kind, hash)
		},
	}
	switch kind {
	case domain.RunKindGenerate:
		cmd.Flags().StringVar(&hash, "hash", "", "Stamp scripts with this hash instead of a fresh one")
	case domain.RunKindRestore:
		cmd.Flags().StringVar(&hash, "hash", "", "Hash the script blocks are expected to carry (reported, not enforced)")
	}
	return cmd
}

func runPipeline(parent context.Context, kind domain.RunKind, hash string) error {
	logger := logging.NewLogger(logLevel)

	repo := connections.NewFileRepository(connectionsDir)
	source, err := connections.Resolve(repo, sourceRef, driver)
	if err != nil {
		return err
	}
	target, err := connections.Resolve(repo, targetRef, driver)
	if err != nil {
		return err
	}

	settings := runctx.Settings{
		ObjectTypes: config.ObjectTags(objectFilter),
		Hash:        hash,
		OutputRoot:  outputPath,
		ScriptRoot:  scriptPath,
	}
	conn := target
	if source != nil {
		settings.SourceDSN = source.DSN
	}
	if target != nil {
		settings.TargetDSN = target.DSN
	}
	if kind == domain.RunKindGenerate {
		conn = source
	}

	var runRepo runs.Repository
	if historyEnabled() {
		runRepo, err = runs.Open(runsDBPath)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer runRepo.Close()
	}

	sink, closeSink := newSink(logger)
	svc := app.NewService(
		registry.DefaultObjectRegistry(),
		registry.NewTemplates(queriesDir, dropsDir),
		connectorFor(conn),
		runRepo,
		sink,
		logger,
	)

	run, err := svc.NewRun(kind, settings)
	if err != nil {
		closeSink()
		return err
	}
	stop := watchSignals(run)
	defer stop()

	var summary *domain.Summary
	switch kind {
	case domain.RunKindGenerate:
		summary, err = svc.Generate(parent, run)
	case domain.RunKindDrop:
		summary, err = svc.Drop(parent, run)
	case domain.RunKindRestore:
		summary, err = svc.Restore(parent, run)
	}
	closeSink()
	if err != nil {
		return err
	}

	printSummary(os.Stdout, summary)
	switch summary.Status() {
	case domain.RunStatusFailed, domain.RunStatusPartial:
		return &exitError{code: 1, msg: fmt.Sprintf("%s run finished with failures", kind)}
	case domain.RunStatusAborted:
		return &exitError{code: 130, msg: fmt.Sprintf("%s run aborted", kind)}
	}
	return nil
}

// connectorFor applies command line TLS settings to a connection profile.
// Profile values win over flags.
func connectorFor(c *domain.Connection) app.DriverConnector {
	conn := app.NewConnector(c, appName)
	if c == nil {
		conn.Driver = driver
	}
	if conn.Options.Encrypt == "" {
		conn.Options.Encrypt = encrypt
	}
	if trustCert {
		conn.Options.TrustServerCertificate = true
	}
	return conn
}

func newSink(logger *logging.Logger) (progress.Sink, func()) {
	switch strings.ToLower(progressMode) {
	case "none":
		return progress.NopSink, func() {}
	case "log":
		return progress.NewLogSink(logger), func() {}
	default:
		console := progress.NewConsoleSink(os.Stderr)
		return console, console.Close
	}
}

// watchSignals turns the first interrupt into a cooperative abort and the
// second into an immediate exit.
func watchSignals(run *runctx.Run) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-ch:
		case <-done:
			return
		}
		fmt.Fprintln(os.Stderr, color.YellowString("abort requested, finishing the current batch (press Ctrl+C again to exit now)"))
		run.RequestAbort()
		select {
		case <-ch:
			os.Exit(130)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func printSummary(out io.Writer, s *domain.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSTATUS\tOBJECTS\tBATCHES\tFAILURES\tTIME\tPATH")
	for _, st := range s.Stages {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			st.Tag,
			statusColor(st.Status)(fmt.Sprintf("%-9s", st.Status)),
			humanize.Comma(int64(st.Objects)),
			humanize.Comma(int64(st.Batches)),
			humanize.Comma(int64(st.Failures)),
			timeutil.FormatElapsed(time.Duration(st.DurationSeconds*float64(time.Second))),
			st.Path,
		)
	}
	w.Flush()

	for _, st := range s.Stages {
		if st.Error != "" && st.Status == domain.StageFailed {
			fmt.Fprintf(out, "%s %s: %s\n", color.RedString("error"), st.Tag, st.Error)
		}
	}

	fmt.Fprintf(out, "%s %s: %s completed, %d aborted, %d failed, %d skipped in %s (hash %s)\n",
		strings.ToUpper(string(s.Kind[:1]))+string(s.Kind[1:]),
		statusColor(stageStatusFor(s.Status()))(string(s.Status())),
		english.Plural(s.Count(domain.StageCompleted), "object type", ""),
		s.Count(domain.StageAborted),
		s.Count(domain.StageFailed),
		s.Count(domain.StageSkipped),
		timeutil.FormatElapsed(time.Duration(s.DurationSeconds*float64(time.Second))),
		s.Hash,
	)
}

func stageStatusFor(r domain.RunStatus) domain.StageStatus {
	switch r {
	case domain.RunStatusSuccess:
		return domain.StageCompleted
	case domain.RunStatusAborted:
		return domain.StageAborted
	case domain.RunStatusPartial, domain.RunStatusFailed:
		return domain.StageFailed
	default:
		return domain.StageSkipped
	}
}

func statusColor(st domain.StageStatus) func(a ...interface{}) string {
	switch st {
	case domain.StageCompleted:
		return color.New(color.FgGreen).SprintFunc()
	case domain.StageAborted:
		return color.New(color.FgYellow).SprintFunc()
	case domain.StageFailed:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	default:
		return color.New(color.Faint).SprintFunc()
	}
}
