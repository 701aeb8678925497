package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sanjeevika-api/internal/account"
	"sanjeevika-api/internal/app"
	"sanjeevika-api/internal/auth"
	"sanjeevika-api/internal/booking"
	"sanjeevika-api/internal/clinical"
	"sanjeevika-api/internal/config"
	"sanjeevika-api/internal/events"
	"sanjeevika-api/internal/geo"
	"sanjeevika-api/internal/handler"
	"sanjeevika-api/internal/hospital"
	"sanjeevika-api/internal/middleware"
	"sanjeevika-api/internal/store"
	"sanjeevika-api/internal/store/memory"
	"sanjeevika-api/internal/telemetry"
)

// dataStore is everything the services need from a backing store.
type dataStore interface {
	account.UserRepository
	booking.Ledger
	booking.Providers
	clinical.RecordStore
	clinical.ResourceStore
	hospital.Directory
	Ping(ctx context.Context) error
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "sanjeevika",
		Short: "Health records and appointment booking API",
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{MaxConns: 1})
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := store.Migrate(ctx, pool, dir)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			for _, f := range applied {
				fmt.Println("applied", f)
			}
			return nil
		},
	}
	cmd.Flags().String("dir", "", "migrations directory (default MIGRATIONS_DIR)")
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampling,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("flush traces")
		}
	}()

	var (
		st     dataStore
		checks []app.ReadyCheck
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; data is lost on exit")
		st = memory.New()
	default:
		pool, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info().Msg("connected to postgres")

		if cfg.AutoMigrate {
			applied, err := store.Migrate(ctx, pool, cfg.MigrationsDir)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Strs("files", applied).Msg("migrations applied")
		}
		st = store.New(pool)
	}
	checks = append(checks, app.ReadyCheck{Name: "store", Check: st.Ping})

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		window := time.Duration(float64(cfg.RateLimitBurst) / cfg.RateLimitRPS * float64(time.Second))
		limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimitBurst, window, "sanjeevika:rl")
		checks = append(checks, app.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info().Msg("rate limiting through redis")
	} else {
		limiter = middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	var pub events.Publisher = events.Discard{}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kp.Close()
		pub = kp
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("publishing appointment events")
	}

	if cfg.LocationURI == "" {
		logger.Warn().Msg("LOCATION_URI not set; nearby hospital lookups will fail")
	}

	proxies, err := cfg.ProxyNets()
	if err != nil {
		return err
	}

	accounts := account.New(st)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	h := handler.New(handler.Deps{
		Accounts:  accounts,
		Tokens:    tokens,
		Bookings:  booking.New(st, st, pub, logger),
		Clinical:  clinical.New(st, st),
		Hospitals: hospital.New(st, geo.NewClient(cfg.LocationURI), logger),
		Log:       logger,
	})
	e := app.New(app.Deps{
		Handler:        h,
		Tokens:         tokens,
		Identities:     accounts,
		Limiter:        limiter,
		Checks:         checks,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: proxies,
		Log:            logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(e, cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
