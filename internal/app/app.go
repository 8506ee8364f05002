// Package app wires configuration into the running pipeline and the one-shot commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mempool-sniper/internal/config"
	"mempool-sniper/internal/decoder"
	"mempool-sniper/internal/fetcher"
	"mempool-sniper/internal/intake"
	"mempool-sniper/internal/mempool"
	"mempool-sniper/internal/metrics"
	"mempool-sniper/internal/pipeline"
	"mempool-sniper/internal/report"
	"mempool-sniper/internal/scheduler"
	"mempool-sniper/internal/source"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger}
}

func (a *App) newFetcher() *fetcher.Transactions {
	return fetcher.NewTransactions(fetcher.TransactionsOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newClassifier() (*decoder.Classifier, error) {
	registry, err := decoder.NewRegistry(a.Config.Decoder.ExtraSelectors)
	if err != nil {
		return nil, err
	}
	return decoder.New(registry), nil
}

// Run executes the long-running sniper until SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := a.Logger.With().Str("component", "app").Logger()
	cfg := a.Config
	if cfg.Ethereum.WSURL == "" {
		return errors.New("ethereum.ws_url is required to run")
	}

	classifier, err := a.newClassifier()
	if err != nil {
		return err
	}

	txs := a.newFetcher()
	defer txs.Close()
	chainID, err := txs.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	sink, closers, err := a.newSink(ctx, recorder)
	if err != nil {
		return err
	}
	defer closeAll(closers, log)

	queue := intake.New[mempool.RawEvent](cfg.Pipeline.QueueCapacity)

	var govOpts []pipeline.Option
	if recorder != nil {
		govOpts = append(govOpts, pipeline.WithObserver(recorder))
	}
	gov := pipeline.New(queue, txs, classifier, sink, pipeline.Options{
		MaxConcurrent:   cfg.Pipeline.MaxConcurrentFetches,
		ShutdownTimeout: cfg.Pipeline.ShutdownTimeout,
	}, a.Logger, govOpts...)

	src := source.New(source.WebSocketDialer(cfg.Ethereum.WSURL), queue.Offer, source.Options{
		InitialBackoff: cfg.Ethereum.ReconnectInitial,
		MaxBackoff:     cfg.Ethereum.ReconnectMax,
		ProgressEvery:  cfg.Pipeline.ProgressEvery,
		BufferSize:     cfg.Pipeline.SubscriptionBuffer,
	}, a.Logger)

	reporter := report.NewReporter(collectSample(queue, gov, src), report.NewSeries(cfg.Stats.MaxPoints), a.Logger)
	sched := scheduler.New(a.statsSchedule(), a.Logger)

	if recorder != nil {
		if err := recorder.RegisterSnapshots(metrics.Snapshots{
			Queue:    queue.Stats,
			Pipeline: gov.Stats,
			Source:   src.Stats,
		}); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	log.Info().
		Str("chain_id", chainID.String()).
		Int("queue_capacity", cfg.Pipeline.QueueCapacity).
		Int("permits", cfg.Pipeline.MaxConcurrentFetches).
		Strs("channels", cfg.Alerting.Channels).
		Msg("starting mempool sniper")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Stop admitting hashes once the subscription ends.
		defer queue.Close()
		return src.Run(gctx)
	})
	g.Go(func() error {
		return gov.Run(gctx)
	})
	g.Go(func() error {
		return sched.Run(gctx, reporter.Tick)
	})
	if recorder != nil {
		g.Go(func() error {
			return recorder.Serve(gctx, cfg.Metrics.ListenAddr, cfg.Metrics.Path, a.Logger)
		})
	}

	err = g.Wait()
	_ = reporter.Tick(context.Background(), time.Now().UTC())
	a.exportStats(reporter.Series(), log)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("sniper terminated with error")
		return err
	}

	log.Info().Msg("mempool sniper stopped")
	return nil
}

func (a *App) statsSchedule() scheduler.Options {
	return scheduler.Options{
		Interval:     a.Config.Stats.Interval,
		AlignToStart: a.Config.Stats.Align,
		StartupDelay: a.Config.Stats.StartupDelay,
	}
}

func collectSample(queue *intake.Queue[mempool.RawEvent], gov *pipeline.Governor, src *source.Source) report.CollectFunc {
	return func() report.Sample {
		q, p, s := queue.Stats(), gov.Stats(), src.Stats()
		return report.Sample{
			Received:       s.Received,
			Offered:        q.Offered,
			Evicted:        q.Evicted,
			Dispatched:     p.Dispatched,
			FetchFailed:    p.FetchFailed,
			Delivered:      p.Delivered,
			RateLimited:    p.RateLimited,
			DeliveryFailed: p.DeliveryFailed,
			QueueDepth:     q.Depth,
			InFlight:       p.InFlight,
		}
	}
}

func (a *App) exportStats(series *report.Series, log zerolog.Logger) {
	opts := report.ExportOptions{
		CSVPath:   a.Config.Stats.CSVPath,
		PNGPath:   a.Config.Stats.PNGPath,
		MaxPoints: a.Config.Stats.MaxPoints,
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return
	}

	samples := series.Samples()
	if err := report.Export(samples, opts); err != nil {
		log.Error().Err(err).Msg("stats export failed")
		return
	}
	log.Info().Int("samples", len(samples)).Str("csv", opts.CSVPath).Str("png", opts.PNGPath).Msg("stats exported")
}
