package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/kalikit/process"
)

type execFlags struct {
	tool    string
	network bool
	memory  string
	timeout time.Duration
	retries int
	dir     string
	env     []string
	stdin   bool
}

func newExecCommand(a *app) *cobra.Command {
	var f execFlags
	cmd := &cobra.Command{
		Use:   "exec --tool <tool> [flags] -- [args...]",
		Short: "Run any tool under an explicit policy",
		Long: "Run a tool with the given arguments under memory, timeout and network policy.\n" +
			"Arguments are passed to the tool as-is and never through a shell.",
		Example: "  kalikit exec --tool strings --memory 256m --timeout 30s -- -n 8 /usr/bin/ssh\n" +
			"  kalikit exec --tool curl --network --retries 2 -- -sI https://example.com",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := process.NewSpec(f.tool,
				process.WithNetwork(f.network),
				process.WithMemory(f.memory),
				process.WithTimeout(f.timeout),
			)
			if err != nil {
				return err
			}
			req := process.Request{
				Argv: append([]string{f.tool}, args...),
				Dir:  f.dir,
				Env:  f.env,
			}
			if f.stdin {
				req.Stdin = cmd.InOrStdin()
			}

			exec, err := a.executor()
			if err != nil {
				return err
			}
			policy := a.cfg.Process.Retry
			if cmd.Flags().Changed("retries") {
				policy.MaxAttempts = f.retries + 1
			}
			var res *process.Result
			if policy.MaxAttempts > 1 {
				res, err = process.NewRetrying(exec, policy).Run(cmd.Context(), spec, req)
			} else {
				res, err = exec.Run(cmd.Context(), spec, req)
			}
			if werr := a.writeResult(res); werr != nil && err == nil {
				err = werr
			}
			return resultError(res, err)
		},
	}
	cmd.Flags().StringVar(&f.tool, "tool", "", "tool name (looked up in PATH) or path")
	cmd.Flags().BoolVar(&f.network, "network", false, "allow network access")
	cmd.Flags().StringVar(&f.memory, "memory", "1g", "memory limit, e.g. 512m or 2g")
	cmd.Flags().DurationVar(&f.timeout, "timeout", process.DefaultTimeout, "wall-clock timeout")
	cmd.Flags().IntVar(&f.retries, "retries", 0, "retries after a timeout or memory kill, each with a larger budget (default process.retry.max_attempts - 1)")
	cmd.Flags().StringVar(&f.dir, "dir", "", "working directory")
	cmd.Flags().StringArrayVarP(&f.env, "env", "e", nil, "extra environment entry KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "pass standard input to the tool")
	_ = cmd.MarkFlagRequired("tool")
	return cmd
}
