// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/contentforge/internal/httpapi"
	"github.com/pdiddy/contentforge/internal/metrics"
	"github.com/pdiddy/contentforge/internal/publish"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes generation and publishing over HTTP:

  GET  /health                    liveness and version
  GET  /metrics                   Prometheus metrics
  POST /api/v1/content/generate   generate a document
  POST /api/v1/publish            publish a generated report

The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
	if err := viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rec := metrics.NewRecorder(prometheus.DefaultRegisterer)
	a, err := newApp(rec, true)
	if err != nil {
		return err
	}
	defer a.close()

	srv := httpapi.New(a.service, httpapi.Config{
		Version:        version,
		RequestTimeout: cfg.Server.RequestTimeout,
		Publish:        publish.Destination{Folder: cfg.Publish.Folder, Channel: cfg.Publish.Channel},
		Gatherer:       prometheus.DefaultGatherer,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx, cfg.Server.Addr)
}
