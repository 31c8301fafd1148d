package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/tools"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		params []string
		async  bool
	)
	cmd := &cobra.Command{
		Use:   "run <action>",
		Short: "Run a catalog action",
		Long: "Run a catalog action and print the tool's output.\n\n" +
			"With --async the action is started in the background and its invocation id\n" +
			"is reported before waiting; interrupting the wait cancels it.",
		Example: "  kalikit run nm.dynamic --param target=/usr/bin/ssh\n" +
			"  kalikit run tshark.capture_live -p interface=eth0 -p duration=10 --async",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			exec, err := a.executor()
			if err != nil {
				return err
			}
			catalog, err := a.catalog(exec)
			if err != nil {
				return err
			}
			if async {
				return a.runAsync(cmd.Context(), catalog, args[0], p)
			}
			res, err := catalog.Run(cmd.Context(), args[0], p)
			if werr := a.writeResult(res); werr != nil && err == nil {
				err = werr
			}
			return resultError(res, err)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "action parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&async, "async", false, "start the action and report its invocation id before waiting")
	return cmd
}

func (a *app) runAsync(ctx context.Context, catalog *tools.Catalog, name string, params tools.Params) error {
	pending, err := catalog.Invoke(context.WithoutCancel(ctx), name, params)
	if err != nil {
		return err
	}
	a.log.Info("invocation started", logger.Fields(
		logger.FieldInvocationID, pending.ID(),
		logger.FieldAction, name,
	))

	res, err := pending.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		// The wait was interrupted; stop the tool and collect what it wrote.
		pending.Cancel()
		res, err = pending.Wait(context.Background())
	}
	if werr := a.writeResult(res); werr != nil && err == nil {
		err = werr
	}
	return resultError(res, err)
}

func parseParams(kvs []string) (tools.Params, error) {
	p := make(tools.Params, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		p[k] = v
	}
	return p, nil
}
