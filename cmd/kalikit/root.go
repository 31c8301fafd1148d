package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/observability"
	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/tools"
	"github.com/kbukum/kalikit/workload/docker"
)

// app holds the state shared by the commands of one execution.
type app struct {
	cfgFile string
	output  string

	stdin          io.Reader
	stdout, stderr io.Writer

	cfg      *AppConfig
	log      *logger.Logger
	metrics  *observability.Metrics
	shutdown func(context.Context) error
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kalikit",
		Short:         "Run security tools under memory, time and network policy",
		Long:          "kalikit runs nm, tshark and other external tools in a sandboxed process with enforced memory, timeout and network policy.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.WithoutCancel(cmd.Context()))
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (default: search ./config.yml, $XDG_CONFIG_HOME/kalikit, /etc/kalikit)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "output format: text, json or yaml")

	root.AddCommand(
		newActionsCommand(a),
		newRunCommand(a),
		newExecCommand(a),
		newServeCommand(a),
		newTokenCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	if err := checkOutput(a.output); err != nil {
		return err
	}
	cfg, err := loadConfig(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger.Init(&cfg.Logging)
	logger.RegisterDefaults("process", "tools", "httpapi", "docker")
	a.log = logger.Get("kalikit")

	shutdown, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	a.shutdown = shutdown
	if cfg.Observability.Metrics.Enabled {
		m, err := observability.NewMetrics(observability.Meter(serviceName))
		if err != nil {
			return fmt.Errorf("observability: %w", err)
		}
		a.metrics = m
	}
	return nil
}

func (a *app) executor() (*process.Executor, error) {
	opts := []process.Option{process.WithLogger(logger.Get("process"))}
	if a.metrics != nil {
		opts = append(opts, process.WithMetrics(a.metrics))
	}
	return process.New(a.cfg.Process, opts...)
}

// catalog builds the action catalog over exec, or over containers when the
// container runner is enabled, retrying when the config asks for more than
// one attempt.
func (a *app) catalog(exec *process.Executor) (*tools.Catalog, error) {
	specs, err := a.cfg.ToolSpecs()
	if err != nil {
		return nil, err
	}
	opts := []tools.Option{
		tools.WithLogger(logger.Get("tools")),
		tools.WithServiceName(a.cfg.Name),
	}
	for _, spec := range specs {
		opts = append(opts, tools.WithSpec(spec))
	}
	if a.metrics != nil {
		opts = append(opts, tools.WithMetrics(a.metrics))
	}
	var runner tools.Runner = exec
	if a.cfg.Container.Enabled {
		r, err := docker.NewRunner(a.cfg.Container, logger.Get("docker"))
		if err != nil {
			return nil, err
		}
		a.log.Info("running actions in containers", logger.Fields("image", a.cfg.Container.Image))
		runner = r
	}
	if a.cfg.Process.Retry.MaxAttempts > 1 {
		runner = process.RetryRunner(runner, a.cfg.Process.Retry, logger.Get("process"))
	}
	opts = append(opts, tools.WithRunner(runner))
	return tools.NewCatalog(exec, opts...), nil
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdin: os.Stdin, stdout: stdout, stderr: stderr}
	root := newRootCommand(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if !errors.As(err, &exit) || exit.err != nil {
		fmt.Fprintf(stderr, "kalikit: %v\n", err)
	}
	return exitCode(err)
}
