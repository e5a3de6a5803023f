package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/steward-lb/steward/internal/config"
	"github.com/steward-lb/steward/internal/director"
	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/httpserver"
	"github.com/steward-lb/steward/internal/httpserver/deps"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
	"github.com/steward-lb/steward/internal/probe"
	"github.com/steward-lb/steward/internal/provision"
	"github.com/steward-lb/steward/internal/redis"
	"github.com/steward-lb/steward/internal/scheduler"
	"github.com/steward-lb/steward/internal/sources/rulesfile"
	redisstore "github.com/steward-lb/steward/internal/store/redis"
	"github.com/steward-lb/steward/internal/version"
)

// PoolName is the single managed target pool routing rules refer to.
const PoolName = "web"

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	director    *director.Director
	redisClient *goredis.Client
	provisioner *provision.LocalProvisioner
	roster      *pool.Roster
	gate        *scheduler.HealthGate
	reconciler  *scheduler.Reconciler
	reloader    *scheduler.RulesReloader
	reaper      *scheduler.Reaper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Redis is optional; when configured, fail fast if unavailable
	var redisClient *goredis.Client
	var store *redisstore.Store
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		redisClient = client
		store = redisstore.NewStore(client)
		loggerClient.Info("Redis initialized successfully")
	} else {
		loggerClient.Warn("STEWARD_REDIS_ADDR not set, running without persistence")
	}

	// Initialize the pool roster
	roster := pool.NewRoster(PoolName)

	// Try to re-seed members from Redis on startup
	if store != nil {
		syncer := scheduler.NewRosterSyncer(store, roster, loggerClient)
		if err := syncer.Sync(context.Background()); err != nil {
			loggerClient.Warn("failed to sync roster from redis on startup, starting empty",
				logger.Error(err))
		}
	}

	// Health check policy from configuration
	policy := domain.HealthCheckPolicy{
		Path:               cfg.ProbePath,
		ExpectStatus:       cfg.ProbeExpectStatus,
		Interval:           cfg.ProbeInterval,
		Timeout:            cfg.ProbeTimeout,
		HealthyThreshold:   cfg.HealthyThreshold,
		UnhealthyThreshold: cfg.UnhealthyThreshold,
	}

	// Routing table: from the rules file when present, built-in
	// catch-all otherwise
	mapper := rulesfile.NewMapper(cfg.LBPort, []string{PoolName})
	table := loadInitialTable(cfg, mapper, loggerClient)

	// Data plane
	dir := director.New(roster, table, loggerClient)

	// Control loops
	reconcileTrigger := make(chan struct{}, 1)
	prober := probe.NewHTTPProber(policy)
	gate := scheduler.NewHealthGate(roster, prober, policy, store, loggerClient, reconcileTrigger)

	prov := provision.NewLocalProvisioner(cfg.ServerPort, loggerClient)
	reconciler := scheduler.NewReconciler(
		roster,
		prov,
		store,
		gate,
		loggerClient,
		cfg.MinSize,
		cfg.MaxSize,
		cfg.ReconcileInterval,
		policy,
		reconcileTrigger,
	)

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewRulesReloader(
		cfg.RulesFile,
		mapper,
		dir,
		loggerClient,
		cfg.RulesReloadInterval,
		reloadTrigger,
	)

	reaper := scheduler.NewReaper(store, roster, loggerClient, cfg.ReaperInterval, cfg.ReaperThreshold)

	// Dependencies passed to admin routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		Roster:        roster,
		Director:      dir,
		Store:         store,
		RedisClient:   redisClient,
		DNSName:       cfg.DNSName(),
		MinSize:       cfg.MinSize,
		MaxSize:       cfg.MaxSize,
		RulesFile:     cfg.RulesFile,
		ReloadTrigger: reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		director:    dir,
		redisClient: redisClient,
		provisioner: prov,
		roster:      roster,
		gate:        gate,
		reconciler:  reconciler,
		reloader:    reloader,
		reaper:      reaper,
	}
}

// loadInitialTable reads the rules file once at boot. A missing or broken
// file falls back to the catch-all table so the listener always has a
// rule set; the reloader picks the file up once it becomes valid.
func loadInitialTable(cfg *config.Config, mapper *rulesfile.Mapper, log logger.Logger) *domain.Table {
	schema, err := rulesfile.NewLoader(cfg.RulesFile).Load()
	if err == nil {
		if table, mapErr := mapper.Map(schema); mapErr == nil {
			return table
		} else {
			err = mapErr
		}
	}

	log.Warn("rules file unusable, using built-in catch-all table",
		logger.String("file", cfg.RulesFile),
		logger.Error(err))

	table, buildErr := domain.NewTable(
		domain.Listener{
			Port:          cfg.LBPort,
			Protocol:      rulesfile.DefaultProtocol,
			DefaultStatus: rulesfile.DefaultStatus,
			DefaultBody:   rulesfile.DefaultBody,
		},
		[]domain.Rule{{Priority: 100, Pattern: "*", Pool: PoolName}},
	)
	if buildErr != nil {
		panic(buildErr) // static table, cannot fail
	}
	return table
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting steward v%s", version.Version)
	a.logger.Infof("steward %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	a.logger.Info("traffic director address",
		logger.String("dns_name", a.cfg.DNSName()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the health gate before the reconciler so the first launched
	// members are probed immediately
	if err := a.gate.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health gate: %w", err)
	}
	a.logger.Info("health gate started",
		logger.Duration("interval", a.cfg.ProbeInterval))

	if err := a.reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	a.logger.Info("capacity reconciler started",
		logger.Int("min_size", a.cfg.MinSize),
		logger.Int("max_size", a.cfg.MaxSize),
		logger.Duration("interval", a.cfg.ReconcileInterval))

	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start rules reloader: %w", err)
	}
	a.logger.Info("rules reloader started",
		logger.Duration("interval", a.cfg.RulesReloadInterval))

	if err := a.reaper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reaper: %w", err)
	}
	a.logger.Info("reaper started",
		logger.Duration("interval", a.cfg.ReaperInterval))

	errCh := make(chan error, 2)
	go func() {
		if err := a.director.Start(); err != nil {
			errCh <- fmt.Errorf("traffic director error: %w", err)
		}
	}()
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Stop control loops
	a.gate.Stop()
	a.reconciler.Stop()
	a.reloader.Stop()
	a.reaper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.director.Stop(shutdownCtx); err != nil {
		a.logger.Warnf("failed to stop traffic director: %v", err)
	}
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop admin server: %w", err)
	}

	// Tear down local workers
	a.provisioner.Close(shutdownCtx)

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ steward stopped cleanly")
	return nil
}
