// Command obsingest runs one ingestion batch: it extracts metadata from the
// supplied header dumps, resolves observation and plane identities, merges
// the finalized records into the archive store, and reconciles away planes
// that earlier runs of the same processing jobs left behind.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"obsingest/internal/docarchive"
	"obsingest/internal/infra/repo"
	"obsingest/internal/infra/repo/memory"
	"obsingest/internal/infra/repo/postgres"
	"obsingest/internal/infra/repo/sqlite"
	"obsingest/internal/ingest"
	"obsingest/internal/ingest/aggregate"
	"obsingest/internal/ingest/reconcile"
	"obsingest/internal/ingest/resolve"
	"obsingest/internal/ingest/syncer"
	"obsingest/internal/logging"
	"obsingest/internal/observability"
)

var exitFunc = os.Exit

// batchFile mirrors one entry of a batch document: the archive file name
// plus the raw headers read from it.
type batchFile struct {
	Name          string         `json:"name"`
	Primary       map[string]any `json:"primary"`
	Extension     map[string]any `json:"extension,omitempty"`
	Coverage      *batchCoverage `json:"moc,omitempty"`
	ContentType   string         `json:"content_type,omitempty"`
	ContentLength int64          `json:"content_length,omitempty"`
}

// batchCoverage is the pre-extracted coverage summary a batch entry may
// carry for a catalogue product.
type batchCoverage struct {
	AreaSqDeg float64 `json:"area_sq_deg"`
	Sources   int     `json:"sources"`
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("obsingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dryRun      bool
		allowRemove bool
		archive     bool
		aliasPath   string
		metricsAddr string
		tracePath   string
		debug       bool
	)
	fs.BoolVar(&dryRun, "dry-run", false, "perform every merge and check but discard all write-backs")
	fs.BoolVar(&allowRemove, "allow-remove", false, "permit plane and observation removal")
	fs.BoolVar(&archive, "archive", false, "record each written observation in the document archive")
	fs.StringVar(&aliasPath, "aliases", "", "path to a JSON map of run id aliases")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address for the run")
	fs.StringVar(&tracePath, "trace", "", "write JSON trace spans to this file")
	fs.BoolVar(&debug, "debug", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: obsingest [flags] batch.json...")
		return 2
	}

	zl, err := newZap(debug)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = zl.Sync() }()
	log := logging.NewZap(zl)

	opts := syncer.Options{DryRun: dryRun, AllowRemove: allowRemove}
	if err := run(context.Background(), fs.Args(), opts, archive, aliasPath, metricsAddr, tracePath, log, stdout); err != nil {
		fmt.Fprintf(stderr, "obsingest: %v\n", err)
		return 1
	}
	return 0
}

func newZap(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func run(ctx context.Context, batchPaths []string, opts syncer.Options, archive bool, aliasPath, metricsAddr, tracePath string, log logging.Logger, stdout io.Writer) error {
	store, err := repo.Open(repo.DriverConstructors{
		Memory:   func() repo.Store { return memory.NewStore() },
		SQLite:   func(path string) (repo.Store, error) { return sqlite.NewStore(path) },
		Postgres: func(dsn string) (repo.Store, error) { return postgres.NewStore(dsn) },
	})
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer func() { _ = store.Close() }()

	metrics := observability.NewExpvarMetricsRecorder("")
	var tracer observability.Tracer = observability.NoopTracer{}
	if tracePath != "" {
		traceFile, err := os.Create(tracePath)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer func() { _ = traceFile.Close() }()
		tracer = observability.NewJSONTracer(traceFile)
	}
	if metricsAddr != "" {
		prom := observability.NewPrometheusMetricsRecorder()
		srv := &http.Server{Addr: metricsAddr, Handler: prom.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
		metricsPair := multiMetrics{metrics, prom}
		return runBatches(ctx, store, batchPaths, opts, archive, aliasPath, metricsPair, tracer, log, stdout)
	}
	return runBatches(ctx, store, batchPaths, opts, archive, aliasPath, metrics, tracer, log, stdout)
}

func runBatches(ctx context.Context, store repo.Store, batchPaths []string, opts syncer.Options, archive bool, aliasPath string, metrics observability.MetricsRecorder, tracer observability.Tracer, log logging.Logger, stdout io.Writer) error {
	aliases, err := loadAliases(aliasPath)
	if err != nil {
		return err
	}

	resolver := resolve.NewSession(syncer.StoreSource{Store: store}, log)
	builder := ingest.NewBuilder(resolver, aggregate.NewSession(log), log)

	ingested := 0
	for _, path := range batchPaths {
		files, err := loadBatch(path)
		if err != nil {
			return err
		}
		for _, bf := range files {
			file := ingest.File{
				Name:          bf.Name,
				Primary:       bf.Primary,
				Extension:     bf.Extension,
				ContentType:   bf.ContentType,
				ContentLength: bf.ContentLength,
			}
			if bf.Coverage != nil {
				file.Coverage = &ingest.Coverage{
					AreaSqDeg: bf.Coverage.AreaSqDeg,
					Sources:   bf.Coverage.Sources,
				}
			}
			err := observability.Timed(ctx, metrics, tracer, "ingest_file", func(ctx context.Context) error {
				return builder.Add(ctx, file)
			})
			if err != nil {
				return fmt.Errorf("ingest %s: %w", bf.Name, err)
			}
			ingested++
		}
	}

	observations, err := builder.Finish(ctx)
	if err != nil {
		return fmt.Errorf("finalize batch: %w", err)
	}

	reconciler := reconcile.New(syncer.RunRegistry{Store: store}, aliases, log)
	sync := syncer.New(store, reconciler, opts, log,
		syncer.WithMetricsRecorder(metrics), syncer.WithTracer(tracer))
	result, err := sync.Run(ctx, observations)
	if err != nil {
		return fmt.Errorf("synchronize: %w", err)
	}

	if archive && !opts.DryRun {
		if err := archiveWritten(ctx, store, result, log); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "ingested %d files into %d observations: %d written, %d removed, %d stale planes, %d superseded artifacts, %d orphaned planes\n",
		ingested, len(observations), len(result.Written), len(result.Removed),
		result.StalePlanes, result.SupersededArtifacts, result.OrphanPlanes)

	if len(result.Failed) > 0 {
		uris := make([]string, 0, len(result.Failed))
		for uri := range result.Failed {
			uris = append(uris, uri.String())
		}
		sort.Strings(uris)
		for _, uri := range uris {
			fmt.Fprintf(stdout, "failed: %s\n", uri)
		}
		return fmt.Errorf("%d observations failed", len(result.Failed))
	}
	return nil
}

// archiveWritten records the post-merge state of every written observation
// in the document archive, stamped with the archival time.
func archiveWritten(ctx context.Context, store repo.Store, result *syncer.Result, log logging.Logger) error {
	docStore, err := docarchive.Open(ctx)
	if err != nil {
		return fmt.Errorf("open document archive: %w", err)
	}
	arch := docarchive.New(docStore, log)
	now := time.Now().UTC()
	for _, uri := range result.Written {
		obs, err := store.Get(ctx, uri)
		if err != nil {
			return fmt.Errorf("fetch %s for archival: %w", uri, err)
		}
		if _, err := arch.Record(ctx, obs, now); err != nil {
			return fmt.Errorf("archive %s: %w", uri, err)
		}
	}
	return nil
}

func loadBatch(path string) ([]batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var files []batchFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	for i, bf := range files {
		if bf.Name == "" {
			return nil, fmt.Errorf("parse batch %s: entry %d has no name", path, i)
		}
		if len(bf.Primary) == 0 {
			return nil, fmt.Errorf("parse batch %s: entry %s has no primary header", path, bf.Name)
		}
	}
	return files, nil
}

func loadAliases(path string) (map[string][]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	var aliases map[string][]string
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	return aliases, nil
}

// multiMetrics fans one observation out to both recorders.
type multiMetrics [2]observability.MetricsRecorder

func (m multiMetrics) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, rec := range m {
		rec.Observe(ctx, operation, success, duration)
	}
}

func (m multiMetrics) Add(counter string, delta int64) {
	for _, rec := range m {
		observability.AddCounter(rec, counter, delta)
	}
}

var (
	_ observability.MetricsRecorder = multiMetrics{}
	_ observability.CounterRecorder = multiMetrics{}
)
