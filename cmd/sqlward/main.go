package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Missing .env is fine; env vars and flags still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "sqlward",
		Short:         "Query safety gateway and execution audit pipeline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newCheckCmd())

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errQueryRejected) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// serveFlags captures CLI flag values; only flags the user actually set
// override environment variables.
type serveFlags struct {
	databaseURL  string
	httpAddr     string
	maxRows      int
	queryTimeout time.Duration
	auditSink    string
	auditLog     string
	policyFile   string
	logLevel     string
	otelEnabled  bool
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.databaseURL, "database-url", "", "query endpoint URL of the analytical database")
	cmd.Flags().StringVar(&f.httpAddr, "http-addr", "", "HTTP listen address (default \":8080\")")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "row ceiling declared to the database")
	cmd.Flags().DurationVar(&f.queryTimeout, "query-timeout", 0, "query execution timeout")
	cmd.Flags().StringVar(&f.auditSink, "audit-sink", "", "audit sink: clickhouse, postgres, file, or none")
	cmd.Flags().StringVar(&f.auditLog, "audit-log", "", "path for the file audit sink")
	cmd.Flags().StringVar(&f.policyFile, "policy-file", "", "path to a YAML policy file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, or error")
	cmd.Flags().BoolVar(&f.otelEnabled, "otel", false, "enable OpenTelemetry tracing and metrics")
}
