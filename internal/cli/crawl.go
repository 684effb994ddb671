package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/paperboy/internal/config"
	"github.com/BenjaminSRussell/paperboy/internal/crawler"
	"github.com/BenjaminSRussell/paperboy/internal/logging"
	"github.com/BenjaminSRussell/paperboy/internal/seeding"
	"github.com/BenjaminSRussell/paperboy/internal/server"
	"github.com/BenjaminSRussell/paperboy/internal/storage"
	"github.com/BenjaminSRussell/paperboy/internal/types"
	"github.com/BenjaminSRussell/paperboy/internal/visited"
)

var crawlFlagKeys = map[string]string{
	"crawler.concurrency":  "concurrency",
	"output.path":          "output",
	"seeds.start":          "start",
	"seeds.end":            "end",
	"storage.journal_path": "journal",
	"metrics.addr":         "metrics-addr",
	"transport.kind":       "transport",
	"visited.backend":      "visited-backend",
}

func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured date range",
		Long: `Queue one front page per day, crawl every issue page reachable from it and
append each article URL to the output file.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags(), crawlFlagKeys)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Decode(v)
			if err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.Int("concurrency", crawler.DefaultConcurrency, "maximum concurrent fetches")
	flags.String("output", "urls.txt", "file that article URLs are appended to")
	flags.String("start", seeding.DefaultStart, "first issue date (YYYY-MM-DD)")
	flags.String("end", seeding.DefaultEnd, "last issue date (YYYY-MM-DD)")
	flags.String("journal", "", "SQLite journal recording every fetched page")
	flags.String("metrics-addr", "", "serve /metrics, /status and /healthz on this address")
	flags.String("transport", crawler.TransportHTTP, "page transport: http or chrome")
	flags.String("visited-backend", visited.BackendExact, "visited set: exact or bloom")

	return cmd
}

func runCrawl(ctx context.Context, cfg types.Config, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration", zap.Any("settings", config.Summary(cfg)))

	seeds, err := seeding.FromConfig(cfg.Seeds)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c, closeFetcher, err := crawler.NewFromConfig(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	sink, err := storage.OpenURLSink(cfg.Output.Path)
	if err != nil {
		return err
	}
	defer sink.Close()

	var journal *storage.Journal
	var recorder crawler.Recorder
	if cfg.Storage.JournalPath != "" {
		journal, err = storage.OpenJournal(cfg.Storage.JournalPath, c.Classifier())
		if err != nil {
			return err
		}
		defer journal.Close()

		runID, err := journal.BeginRun(ctx, len(seeds))
		if err != nil {
			return err
		}
		logger.Info("journal run started", zap.String("run_id", runID), zap.String("path", cfg.Storage.JournalPath))
		recorder = journal
	}

	if cfg.Metrics.Addr != "" {
		srv, err := server.Listen(cfg.Metrics.Addr, server.NewRouter(reg, c.Results), logger)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		srvCtx, cancelSrv := context.WithCancel(context.Background())
		srvDone := make(chan error, 1)
		go func() { srvDone <- srv.Serve(srvCtx) }()
		defer func() {
			cancelSrv()
			if err := <-srvDone; err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("crawl starting", zap.Int("seeds", len(seeds)))
	results, crawlErr := c.Crawl(ctx, seeds, sink, recorder)
	if results == nil {
		results = c.Results()
	}

	if journal != nil {
		if err := journal.FinishRun(context.Background(), results); err != nil {
			logger.Warn("journal run not finished", zap.Error(err))
		}
	}

	logger.Info("crawl finished",
		zap.Int("discovered", results.Discovered),
		zap.Int("fetched", results.Fetched),
		zap.Int("errors", results.Errors),
		zap.Int("discarded", results.Discarded),
		zap.Int("written", results.Written),
		zap.Int64("panics", c.PanicCount()))
	fmt.Fprintf(out, "Discovered: %d, Fetched: %d, Errors: %d, Discarded: %d, Written: %d\n",
		results.Discovered, results.Fetched, results.Errors, results.Discarded, results.Written)

	if crawlErr != nil {
		if errors.Is(crawlErr, context.Canceled) {
			logger.Warn("crawl interrupted")
			return nil
		}
		return fmt.Errorf("crawl failed: %w", crawlErr)
	}
	return nil
}
