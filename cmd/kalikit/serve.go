package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/kalikit/httpapi"
	"github.com/kbukum/kalikit/logger"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the action catalog over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.HTTP
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			exec, err := a.executor()
			if err != nil {
				return err
			}
			catalog, err := a.catalog(exec)
			if err != nil {
				return err
			}
			opts := []httpapi.Option{
				httpapi.WithLogger(logger.Get("httpapi")),
				httpapi.WithServiceName(a.cfg.Name),
			}
			if a.metrics != nil {
				opts = append(opts, httpapi.WithMetrics(a.metrics))
			}
			srv, err := httpapi.New(cfg, catalog, exec, opts...)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := srv.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			a.log.Info("shutdown signal received")
			return srv.Stop(context.WithoutCancel(ctx))
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides http.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides http.port)")
	return cmd
}
