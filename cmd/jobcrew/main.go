// cmd/jobcrew/main.go
package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jobcrew/internal/common/config"
	"jobcrew/internal/common/credentials"
	"jobcrew/internal/common/errors"
	"jobcrew/internal/common/observability"
	"jobcrew/internal/jobcrew"
)

type rootOptions struct {
	configPath      string
	outputFile      string
	definitionsPath string
	metricsAddr     string
	verbose         bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		if !stderrors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "jobcrew",
		Short:         "AI-powered job search assistant",
		Long:          "JobCrew asks for the position you want, then three AI agents research, analyse and report on matching openings.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), in, out, opts, cmd.Flags().Changed("verbose"))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a config file (default: configs/config.yaml when present)")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "where to write the report (default: the path in the crew definitions, jobs_report.md)")
	cmd.Flags().StringVar(&opts.definitionsPath, "definitions", "", "YAML file replacing the built-in agent and task definitions")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log agent progress at info level")

	cmd.AddCommand(newHistoryCmd(out, opts), newKeysCmd(in, out), newDefinitionsCmd(out))
	return cmd
}

func runInteractive(ctx context.Context, in io.Reader, out io.Writer, opts *rootOptions, verboseSet bool) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if verboseSet {
		cfg.Crew.Verbose = opts.verbose
	}

	zapLog, log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = zapLog.Sync() }()

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	crewOpts := crewOptions(cfg, opts)

	var svc *services
	defer func() {
		if svc != nil {
			svc.Close()
		}
	}()

	a := &app{
		in:               bufio.NewReader(in),
		out:              out,
		logger:           log,
		reporter:         errors.NewReporter(log),
		checkCredentials: credentials.Check,
		recordRun:        obs.RecordRun,
	}
	// Backends are connected only once the inputs are known, so an aborted
	// prompt never touches the network.
	a.newRunner = func(ctx context.Context, creds credentials.Result) (crewRunner, error) {
		svc = setupServices(ctx, cfg, zapLog, log)
		if svc.history != nil {
			a.history = svc.history
		}
		if svc.notifier != nil {
			a.notifier = svc.notifier
		}
		return svc.newRunner(ctx, creds, crewOpts)
	}
	return a.run(ctx)
}

// crewOptions merges flags over config. An empty output path leaves the
// report where the crew definitions put it.
func crewOptions(cfg *config.Config, opts *rootOptions) jobcrew.Options {
	return jobcrew.Options{
		DefinitionsPath: firstNonEmpty(opts.definitionsPath, cfg.Crew.DefinitionsPath),
		OutputFile:      firstNonEmpty(opts.outputFile, cfg.Crew.OutputFile),
		Verbose:         cfg.Crew.Verbose,
		MaxIterations:   cfg.LLM.MaxIterations,
	}
}

func newHistoryCmd(out io.Writer, root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent job searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if cfg.History.Driver == "" {
				return fmt.Errorf("run history is disabled; set history.driver to sqlite or postgres")
			}
			zapLog, log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = zapLog.Sync() }()

			svc := &services{cfg: cfg, zapLog: zapLog, log: log}
			defer svc.Close()
			if err := svc.openHistory(cmd.Context()); err != nil {
				return err
			}

			runs, err := svc.history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No job searches recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSTATUS\tPOSITION\tLOCATION\tTOKENS\tID")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Status, r.Inputs.Position, r.Inputs.Location, r.TotalTokens, r.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func newKeysCmd(in io.Reader, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys stored in the OS keyring",
	}

	set := &cobra.Command{
		Use:       "set NAME",
		Short:     "Store an API key (read from stdin)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.Required,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToUpper(args[0])
			fmt.Fprintf(out, "Enter value for %s: ", name)
			value, err := bufio.NewReader(in).ReadString('\n')
			if err != nil && !(err == io.EOF && value != "") {
				return fmt.Errorf("read value: %w", err)
			}
			if err := credentials.Store(name, strings.TrimSpace(value)); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n🔑 %s saved to the keyring.\n", name)
			return nil
		},
	}

	del := &cobra.Command{
		Use:       "delete NAME",
		Short:     "Remove a stored API key",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.Required,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToUpper(args[0])
			if err := credentials.Delete(name); err != nil {
				return err
			}
			fmt.Fprintf(out, "🗑️  %s removed from the keyring.\n", name)
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
