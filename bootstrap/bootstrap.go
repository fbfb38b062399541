// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ledgerdesk/ledgerdesk/adapters/clock"
	"github.com/ledgerdesk/ledgerdesk/adapters/crm"
	"github.com/ledgerdesk/ledgerdesk/adapters/erp"
	"github.com/ledgerdesk/ledgerdesk/adapters/hasher"
	"github.com/ledgerdesk/ledgerdesk/adapters/idgen"
	"github.com/ledgerdesk/ledgerdesk/adapters/memory"
	"github.com/ledgerdesk/ledgerdesk/adapters/metrics"
	"github.com/ledgerdesk/ledgerdesk/adapters/partner"
	"github.com/ledgerdesk/ledgerdesk/adapters/payment"
	"github.com/ledgerdesk/ledgerdesk/adapters/rediscache"
	"github.com/ledgerdesk/ledgerdesk/adapters/sqlite"
	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/config"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/domain/ratelimit"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/ledgerdesk/ledgerdesk/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services needing lifecycle management
	notifyService *app.NotifyService
	janitor       *app.Janitor

	redisClient *redis.Client
	sweepEvery  time.Duration
	retryEvery  time.Duration
}

// stores groups the persistence ports so the sqlite and memory backends
// can be swapped by configuration.
type stores struct {
	clients    ports.ClientStore
	contracts  ports.ContractStore
	billings   ports.BillingStore
	users      ports.UserStore
	deliveries ports.DeliveryStore
}

// New creates and initializes the application from a config file path.
// An empty path falls back to environment variables.
func New(cfgPath string) (*App, error) {
	var (
		cfg    *config.Config
		holder *config.Holder
	)

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			h, err := config.NewHolder(cfgPath, logger)
			if err != nil {
				return nil, err
			}
			holder = h
			cfg = h.Get()
		}
	}
	if cfg == nil {
		c, err := config.LoadWithFallback(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	logger = setupLogger(cfg.Logging)
	logger.Info().Msg("initializing ledgerdesk")

	if holder != nil {
		holder.OnChange(func(c *config.Config) {
			if lvl, err := zerolog.ParseLevel(c.Logging.Level); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
		})
	}

	a := &App{
		Logger: logger,
		Config: cfg,
		Holder: holder,
	}

	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.Config

	st, err := a.initStores()
	if err != nil {
		return fmt.Errorf("init stores: %w", err)
	}

	a.Metrics = metrics.New()

	clk := clock.Real{}
	ids := idgen.UUID{}
	bcryptHasher := hasher.NewBcrypt(0)

	// External platforms
	var payments ports.PaymentProvider
	if cfg.Asaas.APIKey != "" {
		payments = payment.NewAsaasProvider(payment.AsaasConfig{
			APIKey:       cfg.Asaas.APIKey,
			BaseURL:      cfg.Asaas.BaseURL,
			WebhookToken: cfg.Asaas.WebhookToken,
			BillingType:  cfg.Asaas.BillingType,
		})
	} else {
		a.Logger.Warn().Msg("asaas api key not set, payments disabled")
		payments = payment.NewNoopProvider()
	}

	var bookkeeper ports.Bookkeeper
	if cfg.Omie.AppKey != "" {
		bookkeeper = erp.NewOmieBookkeeper(erp.OmieConfig{
			AppKey:    cfg.Omie.AppKey,
			AppSecret: cfg.Omie.AppSecret,
			BaseURL:   cfg.Omie.BaseURL,
		})
	} else {
		a.Logger.Warn().Msg("omie app key not set, erp sync disabled")
		bookkeeper = erp.NewNoopBookkeeper()
	}

	var crmNotifier ports.CRMNotifier
	if cfg.CRM.WebhookURL != "" {
		crmNotifier = crm.NewClintNotifier(crm.ClintConfig{
			WebhookURL: cfg.CRM.WebhookURL,
			Timeout:    cfg.CRM.Timeout,
		})
	} else {
		a.Logger.Warn().Msg("crm webhook url not set, notifications disabled")
		crmNotifier = crm.NewNoopNotifier()
	}

	partnerClient := partner.NewBomControleClient(partner.BomControleConfig{
		APIKey:  cfg.Partner.APIKey,
		BaseURL: cfg.Partner.BaseURL,
	})

	partnerCache, err := a.initPartnerCache(clk)
	if err != nil {
		return fmt.Errorf("init partner cache: %w", err)
	}

	// Application services
	a.notifyService = app.NewNotifyService(
		crmNotifier, st.deliveries, clk, ids,
		cfg.CRM.Secret, cfg.CRM.MaxAttempts, a.Logger,
	)
	a.notifyService.SetDeliveryHook(func(status notify.DeliveryStatus) {
		a.Metrics.NotifyDeliveries.WithLabelValues(string(status)).Inc()
	})

	clientSvc := app.NewClientService(st.clients, st.contracts, payments, bookkeeper, a.notifyService, clk, ids, a.Logger)
	contractSvc := app.NewContractService(st.clients, st.contracts, st.billings, payments, bookkeeper, a.notifyService, clk, ids, a.Logger)
	billingSvc := app.NewBillingService(st.clients, st.contracts, st.billings, payments, clk, ids, a.Logger)
	userSvc := app.NewUserService(st.users, bcryptHasher, clk, ids, a.Logger)

	reconciler := app.NewReconcileService(st.clients, st.contracts, st.billings, a.notifyService, clk, ids, a.Logger)
	reconciler.SetTransitionHook(func(entity, status string) {
		a.Metrics.ReconcileChanges.WithLabelValues(entity, status).Inc()
	})

	partnerSvc := app.NewPartnerService(partnerClient, partnerCache, clk, partnerConfig(cfg), a.Logger)
	if a.Holder != nil {
		a.Holder.OnChange(func(c *config.Config) {
			partnerSvc.Reconfigure(partnerConfig(c))
		})
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.Handler()
		a.Logger.Info().Msg("prometheus metrics enabled")
	}

	handler := web.NewHandler(web.Deps{
		Clients:        clientSvc,
		Contracts:      contractSvc,
		Billings:       billingSvc,
		Users:          userSvc,
		Partner:        partnerSvc,
		Reconciler:     reconciler,
		Notify:         a.notifyService,
		Payments:       payments,
		UserStore:      st.users,
		Metrics:        a.Metrics,
		MetricsHandler: metricsHandler,
		EnableDocs:     cfg.OpenAPI.Enabled,
		SessionTTL:     cfg.Session.TTL,
		Logger:         a.Logger,
	})

	a.janitor = app.NewJanitor(reconciler, partnerSvc, handler.Sessions(), clk, a.Logger)
	a.sweepEvery = cfg.Partner.SweepInterval
	a.retryEvery = cfg.CRM.RetryInterval

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return nil
}

func (a *App) initStores() (stores, error) {
	cfg := a.Config

	if cfg.Database.Driver == "memory" {
		a.Logger.Warn().Msg("using in-memory storage, data is lost on restart")
		return stores{
			clients:    memory.NewClientStore(),
			contracts:  memory.NewContractStore(),
			billings:   memory.NewBillingStore(),
			users:      memory.NewUserStore(),
			deliveries: memory.NewDeliveryStore(),
		}, nil
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return stores{}, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return stores{}, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")

	return stores{
		clients:    sqlite.NewClientStore(db),
		contracts:  sqlite.NewContractStore(db),
		billings:   sqlite.NewBillingStore(db),
		users:      sqlite.NewUserStore(db),
		deliveries: sqlite.NewDeliveryStore(db),
	}, nil
}

func (a *App) initPartnerCache(clk ports.Clock) (ports.PartnerCache, error) {
	cfg := a.Config

	if cfg.Partner.Cache != "redis" {
		return memory.NewPartnerCache(clk), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	a.redisClient = rdb
	a.Logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis partner cache enabled")
	return rediscache.New(rdb), nil
}

// Run starts the workers and the HTTP server, then blocks until shutdown.
func (a *App) Run() error {
	ctx := context.Background()

	a.notifyService.StartRetryWorker(ctx, a.retryEvery)
	a.janitor.Start(ctx, a.sweepEvery)

	if a.Holder != nil {
		if err := a.Holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.Holder.WatchSignals()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.notifyService != nil {
		a.notifyService.StopRetryWorker()
	}
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.Close()
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Close releases held resources without the graceful drain.
func (a *App) Close() {
	if a.Holder != nil {
		a.Holder.Stop()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
}

func partnerConfig(cfg *config.Config) app.PartnerConfig {
	return app.PartnerConfig{
		Budget: ratelimit.Config{
			Limit:  cfg.Partner.BudgetLimit,
			Window: cfg.Partner.BudgetWindow,
		},
		TTL:   cfg.Partner.TTL,
		RPS:   cfg.Partner.RPS,
		Burst: cfg.Partner.Burst,
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
