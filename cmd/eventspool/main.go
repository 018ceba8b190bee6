package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/spool-labs/eventspool/internal/adapters/httpsession"
	"github.com/spool-labs/eventspool/internal/adapters/kv"
	"github.com/spool-labs/eventspool/internal/adapters/s3archive"
	"github.com/spool-labs/eventspool/internal/app"
	"github.com/spool-labs/eventspool/internal/cliconfig"
	"github.com/spool-labs/eventspool/internal/delivery"
	"github.com/spool-labs/eventspool/internal/ports"
	"github.com/spool-labs/eventspool/internal/queue"
	logpkg "github.com/spool-labs/eventspool/pkg/log"
)

const longHelp = `Buffer analytics events on local disk and ship them in batches.

eventspool reads newline-delimited JSON events on stdin, appends them to
crash-safe batch files under the queue directory, and delivers sealed
batches to the ingestion endpoint, removing each file only after the
server acknowledges it. Retriable failures leave batches queued; a 400
drops the batch (optionally archiving it to S3 first).`

var exampleUsage = strings.TrimSpace(`
  tail -F app-events.ndjson | eventspool --write-key wk_123
  eventspool --write-key wk_123 --once < backlog.ndjson
  eventspool --config $HOME/.eventspool/config.toml
`)

// maxEventBytes bounds a single stdin event line.
const maxEventBytes = 1 << 20

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return delivery.Version
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "eventspool",
		Short:   "Durable local buffer and batch shipper for analytics events",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Flags win over env, env wins over file.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			zl := cfg.Logger()
			logger := logpkg.NewZerologAdapterWithLogger(zl)

			logCfg := cfg
			if len(logCfg.AuthToken) > 0 {
				logCfg.AuthToken = "*****"
			}
			zl.Info().Interface("config", logCfg).Msg("configuration")

			return run(cmd.Context(), cfg, cfgFile, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.eventspool/config.toml)")
	root.Flags().StringVar(&cfg.WriteKey, "write-key", cfg.WriteKey, "project write key")
	root.Flags().StringVar(&cfg.Dir, "dir", cfg.Dir, "queue directory (default: $HOME/.eventspool/<write-key>)")
	root.Flags().StringVar(&cfg.BaseName, "base-name", cfg.BaseName, "batch file base name")

	root.Flags().StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "ingestion API base URL")
	root.Flags().StringVar(&cfg.CDN, "cdn", cfg.CDN, "settings CDN base URL")
	root.Flags().StringVar(&cfg.AuthToken, "auth-token", cfg.AuthToken, "bearer token added to outgoing requests")

	root.Flags().IntVar(&cfg.MaxFileSize, "max-file-size", cfg.MaxFileSize, "batch file rotation threshold in bytes")
	root.Flags().DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "how often ready batches are shipped")
	root.Flags().IntVar(&cfg.MaxFetchFiles, "max-fetch-files", cfg.MaxFetchFiles, "max sealed files per flush (0 = unbounded)")
	root.Flags().IntVar(&cfg.MaxFetchBytes, "max-fetch-bytes", cfg.MaxFetchBytes, "max cumulative bytes per flush (0 = unbounded)")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout per request")

	root.Flags().StringVar(&cfg.IndexBackend, "index-backend", cfg.IndexBackend, `index counter store: "file" or "sqlite"`)

	root.Flags().StringVar(&cfg.ArchiveRegion, "archive-region", cfg.ArchiveRegion, "AWS region for the rejected-batch archive")
	root.Flags().StringVar(&cfg.ArchiveBucket, "archive-bucket", cfg.ArchiveBucket, "S3 bucket for rejected batches (empty disables archiving)")
	root.Flags().StringVar(&cfg.ArchivePrefix, "archive-prefix", cfg.ArchivePrefix, "S3 key prefix for rejected batches")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "console log output instead of JSON")
	root.Flags().BoolVar(&cfg.Verify, "verify", cfg.Verify, "verify batch file structure after sealing (debug)")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "drain stdin and the queue, then exit")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, cfgFile string, logger logpkg.Logger) error {
	index, closeIndex, err := openIndexStore(cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	storeOpts := []queue.Option{
		queue.WithLogger(logger),
		queue.WithErrorReporter(func(err error) {
			logger.Warn("event dropped", logpkg.Err(err))
		}),
	}
	if cfg.Verify {
		storeOpts = append(storeOpts, queue.WithValidator(queue.NewVerifier(logger)))
	}
	store, err := queue.NewStore(queue.Config{
		WriteKey:    cfg.WriteKey,
		Directory:   cfg.Dir,
		BaseName:    cfg.BaseName,
		MaxFileSize: int64(cfg.MaxFileSize),
	}, index, storeOpts...)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()

	session := httpsession.New(
		&http.Client{Timeout: cfg.HTTPTimeout},
		httpsession.WithLogger(logger),
	)
	pipeline, err := delivery.NewPipeline(delivery.Config{
		Endpoint:        cfg.Endpoint,
		CDN:             cfg.CDN,
		WriteKey:        cfg.WriteKey,
		DecorateRequest: bearerDecorator(cfg.AuthToken),
	}, session, delivery.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	shipperOpts := []app.ShipperOption{app.WithLogger(logger)}
	if cfg.ArchiveBucket != "" {
		archiver, err := s3archive.New(ctx, s3archive.Config{
			Region: cfg.ArchiveRegion,
			Bucket: cfg.ArchiveBucket,
			Prefix: cfg.ArchivePrefix,
		})
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		shipperOpts = append(shipperOpts, app.WithArchiver(archiver))
	}
	shipper := app.NewShipper(app.ShipperConfig{
		FlushInterval: cfg.FlushInterval,
		MaxFetchFiles: cfg.MaxFetchFiles,
		MaxFetchBytes: int64(cfg.MaxFetchBytes),
		Once:          cfg.Once,
	}, store, pipeline, shipperOpts...)

	if cfgFile != "" && !cfg.Once {
		watcher := cliconfig.NewWatcher(cfgFile, cfg, logger, func(next cliconfig.Config) {
			shipper.SetTuning(next.FlushInterval, next.MaxFetchFiles, int64(next.MaxFetchBytes))
		})
		go watcher.Run(ctx)
	}

	if cfg.Once {
		// Drain stdin first so every event makes it into the queue, then
		// ship everything in one pass.
		readEvents(ctx, store, logger)
		return shipper.Run(ctx)
	}

	// Unblock the stdin reader on shutdown; a quiet pipe would otherwise
	// hold Scan open past the final flush.
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()
	go readEvents(ctx, store, logger)

	if err := shipper.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// readEvents appends newline-delimited JSON events from stdin until EOF or
// cancellation. Event contents are opaque; only non-empty lines count.
func readEvents(ctx context.Context, store *queue.Store, logger logpkg.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), maxEventBytes)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		store.Append(line)
	}
	if err := scanner.Err(); err != nil {
		logger.Error("stdin read failed", logpkg.Err(err))
	}
}

func openIndexStore(cfg cliconfig.Config) (ports.IndexStore, func(), error) {
	switch cfg.IndexBackend {
	case "sqlite":
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", cfg.Dir, err)
		}
		s, err := kv.NewSQLiteStore(filepath.Join(cfg.Dir, "index.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open index store: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		s := kv.NewFileStore(filepath.Join(cfg.Dir, "index.json"))
		return s, func() {}, nil
	}
}

// bearerDecorator injects the Authorization header when a token is set; the
// pipeline itself stays auth-agnostic.
func bearerDecorator(token string) func(*http.Request) *http.Request {
	if token == "" {
		return nil
	}
	return func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}
}
