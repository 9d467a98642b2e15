package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"equity-analyst/internal/alerting"
	"equity-analyst/internal/config"
	"equity-analyst/internal/executor"
	"equity-analyst/internal/fetcher"
	"equity-analyst/internal/jobs"
	"equity-analyst/internal/pipeline"
	"equity-analyst/internal/scheduler"
	"equity-analyst/internal/server"
	"equity-analyst/internal/service"
	"equity-analyst/internal/staleness"
	"equity-analyst/internal/storage"
	"equity-analyst/internal/ticker"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newPriceFetcher() *fetcher.Yahoo {
	return fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
		RateLimit: a.Config.Market.RateLimit,
	}, a.Logger)
}

func (a *App) newProducer(ctx context.Context, history fetcher.HistoryFetcher) pipeline.Producer {
	llm, err := pipeline.NewLLM(ctx, a.Config.Pipeline, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("language model unavailable; analysis jobs will fail")
		return pipeline.Unavailable{Reason: err}
	}

	var news pipeline.NewsSearcher
	if s := pipeline.NewSerperSearch(pipeline.SerperOptions{
		BaseURL: a.Config.News.BaseURL,
		APIKey:  a.Config.News.APIKey,
		Results: a.Config.News.Results,
		Timeout: a.Config.News.RequestTimeout,
	}, a.Logger); s != nil {
		news = s
	} else {
		a.Logger.Info().Msg("news.api_key not configured; news role runs without search results")
	}

	return pipeline.NewCommittee(llm, history, news, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.ReportStore, func(), error) {
	store, err := storage.Open(ctx, a.Config, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close report store")
		}
	}
	return store, closer, nil
}

// runtime bundles the in-process analysis machinery shared by serve and warm.
type runtime struct {
	svc      *service.Service
	pool     *executor.Pool
	registry *jobs.MemoryRegistry
}

func (a *App) startRuntime(ctx context.Context, store storage.ReportStore) *runtime {
	prices := a.newPriceFetcher()
	registry := jobs.NewMemoryRegistry(a.Config.Jobs.Retention, a.Logger)
	pool := executor.New(executor.Options{
		Workers:   a.Config.Jobs.Workers,
		QueueSize: a.Config.Jobs.QueueSize,
	}, a.Logger)

	svc := service.New(service.Deps{
		Normalizer: ticker.NewNormalizer(a.Config.Market.DefaultSuffix),
		Prices:     prices,
		Store:      store,
		Policy:     staleness.NewPolicy(a.Config.Staleness.MaxAge, a.Config.Staleness.MaxPriceDelta),
		Registry:   registry,
		Producer:   a.newProducer(ctx, prices),
		Dispatcher: pool,
		Notifier:   a.newNotifier(),
	}, a.Logger)

	pool.Start(ctx, svc.Execute)
	return &runtime{svc: svc, pool: pool, registry: registry}
}

// Serve runs the HTTP API, the executor and the optional watchlist scheduler.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rt := a.startRuntime(ctx, store)
	defer rt.pool.Stop()

	if tickers := a.Config.Watchlist.Tickers; len(tickers) > 0 {
		sched, err := scheduler.New(scheduler.Options{
			Interval:     a.Config.Watchlist.Interval,
			AlignToStart: a.Config.Watchlist.AlignToBucket,
			StartupDelay: a.Config.Watchlist.StartupDelay,
			RunOnStart:   true,
			Cron:         a.Config.Watchlist.Cron,
		}, a.Logger)
		if err != nil {
			return err
		}
		go func() {
			if err := sched.Run(ctx, rt.svc.WarmTick(tickers)); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("watchlist scheduler stopped")
			}
		}()
		a.Logger.Info().Strs("tickers", tickers).Dur("interval", a.Config.Watchlist.Interval).Msg("watchlist warm-up enabled")
	}

	srv := server.New(server.Options{
		Addr:            a.Config.Server.Addr,
		Mode:            a.Config.Server.Mode,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, rt.svc, a.Logger)

	a.Logger.Info().Msg("starting analysis service")
	if err := srv.Run(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http server terminated with error")
		return err
	}

	a.Logger.Info().Msg("analysis service stopped")
	return nil
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	Ticker  string
	JSON    bool
	BaseURL string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions configure the export command.
type ExportOptions struct {
	CSVPath string
	Limit   int
}

// WarmOptions configure the one-shot warm command.
type WarmOptions struct {
	Tickers []string
	Timeout time.Duration
}
