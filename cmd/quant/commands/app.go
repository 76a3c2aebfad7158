package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/aegis-swing/internal/api"
	"github.com/wonny/aegis-swing/internal/api/handlers"
	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/execution"
	"github.com/wonny/aegis-swing/internal/external/broker"
	"github.com/wonny/aegis-swing/internal/external/marketdata"
	"github.com/wonny/aegis-swing/internal/external/newsfeed"
	"github.com/wonny/aegis-swing/internal/external/notify"
	"github.com/wonny/aegis-swing/internal/invalidation"
	"github.com/wonny/aegis-swing/internal/metrics"
	"github.com/wonny/aegis-swing/internal/news"
	"github.com/wonny/aegis-swing/internal/pipeline"
	"github.com/wonny/aegis-swing/internal/portfolio"
	"github.com/wonny/aegis-swing/internal/realtime"
	"github.com/wonny/aegis-swing/internal/scheduler"
	"github.com/wonny/aegis-swing/internal/scheduler/jobs"
	"github.com/wonny/aegis-swing/internal/storage"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/database"
	"github.com/wonny/aegis-swing/pkg/httputil"
	"github.com/wonny/aegis-swing/pkg/logger"
	"github.com/wonny/aegis-swing/pkg/redis"
)

// quoteTTL bounds how long a quote is shared between scans, exits and paper fills
const quoteTTL = 5 * time.Second

// app holds every wired component of one process
// ⭐ SSOT: 의존성 조립은 buildApp 에서만
type app struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	logger   *logger.Logger

	db         *database.DB // nil for the memory backend
	redis      *redis.Client
	store      contracts.Storage
	metrics    *metrics.Registry
	dispatcher *notify.Dispatcher

	marketData *marketdata.Client
	quotes     *realtime.QuoteCache
	broker     contracts.Broker
	book       *portfolio.Book

	pipeline  *pipeline.Controller
	binder    *execution.Binder
	engine    *invalidation.Engine
	monitor   *news.Monitor
	scheduler *scheduler.Scheduler
	hub       *api.Hub
}

// buildApp loads configuration and wires the trading core
func buildApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	scfg, _, err := strategyconfig.Load(cfg.Trading.StrategyConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy config: %w", err)
	}
	for _, w := range strategyconfig.Warn(scfg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	if cfg.News.PollInterval > 0 {
		scfg.News.PollInterval = cfg.News.PollInterval
	}
	loc := scfg.Location()

	a := &app{cfg: cfg, strategy: scfg, logger: log}

	// 3. Storage
	a.redis, err = redis.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	// 4. External adapters (rate limit shared across processes via redis)
	limiter := redis.NewRateLimiter(a.redis)
	a.marketData = marketdata.NewClient(
		cfg.MarketData,
		httputil.NewWithTimeout(cfg, log, cfg.MarketData.Timeout).
			WithRateLimiter(limiter, redis.MarketDataRateLimit),
		redis.NewCache(a.redis, "marketdata"),
		log,
	)
	a.quotes = realtime.NewQuoteCache(a.marketData, quoteTTL, log)
	if cfg.Broker.Paper {
		a.broker = broker.NewPaperBroker(a.quotes, cfg.Broker.PaperCash, log)
	} else {
		brokerHTTP := httputil.NewWithTimeout(cfg, log, cfg.Broker.Timeout).
			WithRateLimiter(limiter, redis.BrokerRateLimit)
		a.broker = broker.NewClient(cfg.Broker, brokerHTTP, log)
	}
	sinks := []contracts.Notifier{notify.NewLog(log)}
	if cfg.Telegram.Enabled() {
		sinks = append(sinks, notify.NewTelegram(cfg.Telegram, httputil.New(cfg, log)))
	}
	a.dispatcher = notify.NewDispatcher(log, sinks...)

	// 5. Position book
	a.book = portfolio.NewBook(a.store, scfg.Caps(), log)
	restored, err := a.book.Restore(ctx, jobs.SessionStart(time.Now(), loc))
	if err != nil {
		a.Close()
		return nil, err
	}
	log.WithField("positions", restored).Info("Position book restored")

	// 6. Weekend pipeline & weekday execution
	a.pipeline = pipeline.NewController(scfg, pipeline.Deps{
		Instruments: a.marketData,
		MarketData:  a.marketData,
		Earnings:    a.marketData,
		Store:       a.store,
		Notifier:    a.dispatcher,
		Metrics:     a.metrics,
	}, log)
	a.binder = execution.NewBinder(a.store, scfg, execution.Deps{
		Broker:     a.broker,
		MarketData: a.quotes,
		Book:       a.book,
		Notifier:   a.dispatcher,
		Metrics:    a.metrics,
	}, log, execution.WithDryRun(cfg.Trading.DryRun))

	// 7. Invalidation & news
	a.engine = invalidation.NewEngine(scfg, invalidation.Deps{
		Broker:     a.broker,
		MarketData: a.quotes,
		Book:       a.book,
		Notifier:   a.dispatcher,
		Metrics:    a.metrics,
	}, log)
	a.monitor = news.NewMonitor(scfg.News, news.Deps{
		Source:   newsfeed.NewScraper(cfg.News, httputil.New(cfg, log).WithRateLimiter(limiter, redis.NewsRateLimit), loc, log),
		Holdings: a.book,
		Sink:     a.engine,
		Notifier: a.dispatcher,
		Metrics:  a.metrics,
	}, log)

	a.hub = api.NewHub(log)
	a.engine.AddListener(a.hub.BroadcastExit)

	// 8. Scheduler
	if err := a.buildScheduler(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	var inner contracts.Storage
	switch a.cfg.Trading.StorageBackend {
	case "memory":
		inner = storage.NewMemoryStore()
	case "postgres":
		db, err := database.New(a.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		inner = storage.NewPostgresStore(db.Pool)
	default:
		return fmt.Errorf("%w: unknown storage backend %q", contracts.ErrConfiguration, a.cfg.Trading.StorageBackend)
	}

	if a.redis.Enabled() {
		a.store = storage.NewCachedStore(inner, redis.NewCache(a.redis, "store"), a.logger)
	} else {
		a.store = inner
	}
	a.logger.WithFields(map[string]interface{}{
		"backend": a.cfg.Trading.StorageBackend,
		"cached":  a.redis.Enabled(),
	}).Info("Storage ready")
	return nil
}

func (a *app) buildScheduler() error {
	a.scheduler = scheduler.New(a.strategy.Location(), a.logger)

	fixed := []scheduler.Job{
		jobs.NewWeekendJob(a.pipeline, a.logger),
		jobs.NewSessionResetJob(a.book, a.broker, a.logger),
		jobs.NewDailySummaryJob(a.book, a.dispatcher, a.strategy.Location(), a.logger),
		jobs.NewReconcileJob(a.broker, a.book, a.dispatcher, a.logger),
		jobs.NewCacheCleanupJob(a.quotes, a.logger),
	}
	for _, job := range fixed {
		if err := a.scheduler.AddJob(job); err != nil {
			return err
		}
	}

	for _, id := range a.strategy.EnabledStrategies() {
		s, _ := a.strategy.Strategy(id)
		job, err := jobs.NewScanJob(id, s.CheckTime, a.binder, a.logger)
		if err != nil {
			return err
		}
		if err := a.scheduler.AddJob(job); err != nil {
			return err
		}
	}
	return nil
}

// router builds the HTTP API over the wired components
func (a *app) router() http.Handler {
	h := api.Handlers{
		Universe: handlers.NewUniverseHandler(a.store, a.binder.CurrentWeek, a.logger),
		Trading:  handlers.NewTradingHandler(a.book, a.engine, a.logger),
		Pipeline: handlers.NewPipelineHandler(a.pipeline, a.scheduler, a.logger),
		Hub:      a.hub,
	}
	if a.metrics != nil {
		h.Metrics = a.metrics.Handler()
	}
	return api.NewRouter(h, a.logger)
}

// Close releases connections and drains pending notifications
func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
