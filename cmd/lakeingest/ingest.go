package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arkilian/lakeingest/internal/catalog"
	"github.com/arkilian/lakeingest/internal/config"
	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/internal/ingest"
	"github.com/arkilian/lakeingest/internal/ledger"
	"github.com/arkilian/lakeingest/internal/observability"
	"github.com/arkilian/lakeingest/internal/source"
	"github.com/arkilian/lakeingest/internal/storage"
)

// ingestFlags mirror config fields; only flags set on the command line
// override the loaded configuration.
type ingestFlags struct {
	workers       int
	chunkSize     int
	commitRetries int
	namespace     string
	table         string
	catalogURL    string
	warehouse     string
	catalogName   string
	token         string
	ledgerPath    string
	metricsFile   string
	delimiter     string
}

func newIngestCmd(state *rootState) *cobra.Command {
	f := &ingestFlags{}

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest a data file into the target table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, state.cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cmd.OutOrStdout(), state.cfg, state.logger, args[0])
		},
	}

	d := config.DefaultConfig()
	flags := cmd.Flags()
	flags.IntVar(&f.workers, "workers", d.Ingest.Workers, "number of parallel workers")
	flags.IntVar(&f.chunkSize, "chunk-size", d.Ingest.ChunkSize, "number of rows per chunk")
	flags.IntVar(&f.commitRetries, "commit-retries", d.Ingest.CommitRetries, "retries for an append that lost a commit race")
	flags.StringVar(&f.namespace, "namespace", d.Target.Namespace, "target namespace")
	flags.StringVar(&f.table, "table", d.Target.Table, "target table")
	flags.StringVar(&f.catalogURL, "catalog-url", d.Catalog.URL, "Iceberg REST catalog URL")
	flags.StringVar(&f.warehouse, "warehouse", d.Catalog.Warehouse, "catalog warehouse")
	flags.StringVar(&f.catalogName, "catalog-name", d.Catalog.Name, "catalog name")
	flags.StringVar(&f.token, "token", d.Catalog.Token, "catalog bearer token")
	flags.StringVar(&f.ledgerPath, "ledger", "", "record the run in this SQLite ledger")
	flags.StringVar(&f.metricsFile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	flags.StringVar(&f.delimiter, "delimiter", "", `field delimiter (default "," or tab for .tsv; "\t" accepted)`)
	return cmd
}

func (f *ingestFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	setInt := func(name string, dst *int, v int) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	setString := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}

	setInt("workers", &cfg.Ingest.Workers, f.workers)
	setInt("chunk-size", &cfg.Ingest.ChunkSize, f.chunkSize)
	setInt("commit-retries", &cfg.Ingest.CommitRetries, f.commitRetries)
	setString("namespace", &cfg.Target.Namespace, f.namespace)
	setString("table", &cfg.Target.Table, f.table)
	setString("catalog-url", &cfg.Catalog.URL, f.catalogURL)
	setString("warehouse", &cfg.Catalog.Warehouse, f.warehouse)
	setString("catalog-name", &cfg.Catalog.Name, f.catalogName)
	setString("token", &cfg.Catalog.Token, f.token)
	setString("ledger", &cfg.Ledger.Path, f.ledgerPath)
	setString("metrics-textfile", &cfg.Metrics.Textfile, f.metricsFile)
	setString("delimiter", &cfg.Source.Delimiter, f.delimiter)
}

// runIngest performs one ingestion. Configuration is validated and the input
// is read before any catalog request is made.
func runIngest(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, objectPath, err := storage.ForPath(ctx, path, storage.S3Config{
		Region:       cfg.Source.S3.Region,
		Endpoint:     cfg.Source.S3.Endpoint,
		UsePathStyle: cfg.Source.S3.PathStyle,
	})
	if err != nil {
		return ingesterr.NewSourceError(ingesterr.CodeFileNotFound, fmt.Sprintf("cannot access %s", path), err)
	}
	exists, err := store.Exists(ctx, objectPath)
	if err != nil {
		return ingesterr.NewSourceError(ingesterr.CodeFileNotFound, fmt.Sprintf("cannot access %s", path), err)
	}
	if !exists {
		return ingesterr.NewSourceError(ingesterr.CodeFileNotFound, fmt.Sprintf("file %s does not exist", path), nil)
	}

	fmt.Fprintf(out, "Starting ingestion of %s\n", path)

	ds, err := source.Load(ctx, store, objectPath, source.Options{
		Delimiter: cfg.DelimiterRune(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewIngestMetrics(registry)
	if err != nil {
		return ingesterr.NewInternalError("failed to set up metrics", err)
	}
	requests := observability.NewRequestStats()

	client, err := catalog.NewRESTClient(ctx, catalog.RESTConfig{
		Name:          cfg.Catalog.Name,
		URL:           cfg.Catalog.URL,
		Warehouse:     cfg.Catalog.Warehouse,
		Token:         cfg.Catalog.Token,
		Prefix:        cfg.Catalog.Prefix,
		CommitRetries: cfg.Ingest.CommitRetries,
		Transport:     catalog.NewTransport(nil, catalog.MultiObserver(metrics.ObserveRequest, requests.Record), logger),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	engine := ingest.NewEngine(client, ingest.MultiObserver(ingest.NewLoggingObserver(logger), metrics), logger)
	report, err := engine.Run(ctx, ds, ingest.Options{
		Namespace: cfg.Target.Namespace,
		Table:     cfg.Target.Table,
		Workers:   cfg.Ingest.Workers,
		ChunkSize: cfg.Ingest.ChunkSize,
	})
	if err != nil {
		return err
	}

	printSummary(out, report)
	for _, ep := range requests.Top(5) {
		logger.Debug("Catalog endpoint",
			"endpoint", ep.Endpoint,
			"requests", ep.Frequency,
			"failures", ep.Failures,
			"mean_duration", ep.MeanDuration())
	}

	if cfg.Ledger.Path != "" {
		if err := recordRun(ctx, cfg.Ledger.Path, report, path); err != nil {
			logger.Warn("Failed to record run in ledger", "path", cfg.Ledger.Path, "error", err)
		}
	}
	if cfg.Metrics.Textfile != "" {
		if err := observability.WriteTextfile(cfg.Metrics.Textfile, registry); err != nil {
			logger.Warn("Failed to write metrics", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	if !report.Verdict.OverallSuccess {
		return fmt.Errorf("some chunks failed to ingest (%d of %d)", report.Verdict.Failed, report.Verdict.TotalChunks)
	}
	return nil
}

func printSummary(out io.Writer, report *ingest.Report) {
	v := report.Verdict
	fmt.Fprintf(out, "Run %s: %d chunks, %d succeeded, %d failed, %d rows appended in %s\n",
		report.RunID, v.TotalChunks, v.Succeeded, v.Failed, report.RowsAppended(),
		report.Finished.Sub(report.Started).Round(time.Millisecond))
	for _, o := range report.Failures() {
		fmt.Fprintf(out, "  chunk %d (%d rows): %s\n", o.ChunkIndex, o.Rows, o.Description())
	}
	if v.OverallSuccess {
		fmt.Fprintln(out, "All chunks ingested successfully!")
	} else {
		fmt.Fprintln(out, "Some chunks failed to ingest")
	}
}

// recordRun writes the report to the ledger. It detaches from ctx's
// cancellation so an interrupted run is still recorded.
func recordRun(ctx context.Context, path string, report *ingest.Report, sourceFile string) error {
	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()
	return l.RecordRun(context.WithoutCancel(ctx), report, sourceFile)
}
