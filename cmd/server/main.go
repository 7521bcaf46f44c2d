package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"localdeals/controlplane"
	"localdeals/controlplane/application"
	"localdeals/controlplane/domain"
	"localdeals/controlplane/infra"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	setupLogging(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func run(ctx context.Context, cfg config) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	repos, closeRepos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepos()

	var publisher domain.OrderPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := infra.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kp.Close() }()
		publisher = kp
	}

	locker := infra.NewRedisLocker(rdb)
	pool := infra.NewRebuildPool(cfg.RebuildWorkers, cfg.RebuildQueue)
	shopCache := infra.NewShopCache(rdb, locker, pool, repos.shops,
		infra.WithCacheTTL(cfg.CacheTTL),
		infra.WithNullTTL(cfg.NullTTL),
		infra.WithLogicalTTL(cfg.LogicalTTL),
		infra.WithRebuildLease(cfg.RebuildLease),
		infra.WithMutexRetry(cfg.MutexRetryDelay, cfg.MutexMaxRetries),
	)

	queue := infra.NewRedisStreamQueue(rdb,
		infra.WithStream(cfg.Stream),
		infra.WithGroup(cfg.Group),
		infra.WithReadBlock(cfg.ReadBlock),
	)
	if err := queue.EnsureGroup(ctx); err != nil {
		return err
	}
	admitter := infra.NewRedisAdmitter(rdb, infra.WithAdmissionStream(cfg.Stream))

	var stats domain.StatsStore
	if cfg.StatsEnabled {
		stats = infra.NewRedisStatsStore(rdb, infra.WithStatsTTL(cfg.StatsTTL))
	}

	strategy, valid := domain.ParseStrategy(cfg.DefaultStrategy)
	if !valid {
		return fmt.Errorf("unknown CACHE_STRATEGY %q", cfg.DefaultStrategy)
	}

	limiter := infra.NewLimiterStore(cfg.ThrottleRPS, cfg.ThrottleBurst)
	limiter.StartJanitor(ctx)

	handler := controlplane.NewRouter(controlplane.Services{
		Catalog: application.CatalogService{
			Shops:    repos.shops,
			Cache:    shopCache,
			Strategy: strategy,
		},
		Vouchers: application.VoucherService{
			Vouchers:  repos.vouchers,
			Admission: admitter,
		},
		Seckill: application.SeckillService{
			IDs:       infra.NewRedisIDWorker(rdb),
			Admission: admitter,
			Stats:     stats,
		},
	}, controlplane.RouterOptions{
		Throttle: controlplane.ThrottleOptions{
			Store:               limiter,
			RetryAfter:          cfg.RetryAfter,
			AddRateLimitHeaders: cfg.RateLimitHeaders,
		},
		Concurrency: controlplane.ConcurrencyOptions{
			Max:            cfg.ConcurrencyMax,
			AcquireTimeout: cfg.ConcurrencyTimeout,
			PerVoucher:     cfg.ConcurrencyPerVoucher,
		},
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for i := 0; i < cfg.Workers; i++ {
		w := &application.OrderWorker{
			Queue:     queue,
			Locker:    locker,
			Orders:    repos.orders,
			Publisher: publisher,
			Consumer:  consumerName(cfg.Consumer, i),
			LockLease: cfg.OrderLockLease,
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	log.Info().
		Str("redis", cfg.RedisAddr).
		Bool("postgres", cfg.PostgresDSN != "").
		Bool("kafka", publisher != nil).
		Str("stream", cfg.Stream).
		Int("workers", cfg.Workers).
		Str("strategy", string(strategy)).
		Msg("control plane ready")

	err = g.Wait()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDrain()
	if perr := pool.Close(drainCtx); perr != nil {
		log.Warn().Err(perr).Msg("rebuild pool abandoned tasks")
	}
	log.Info().Msg("shut down")
	return err
}

// consumerName é estável entre reinícios: o pending set de cada worker
// só é recuperado se ele voltar com o mesmo nome.
func consumerName(base string, i int) string {
	if i == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, i+1)
}

type repositories struct {
	shops    domain.ShopRepository
	orders   domain.OrderRepository
	vouchers domain.VoucherRepository
}

func openRepositories(ctx context.Context, cfg config) (repositories, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("POSTGRES_DSN not set, using in-memory repositories")
		return repositories{
			shops:    infra.NewMemoryShops(),
			orders:   infra.NewMemoryOrders(),
			vouchers: infra.NewMemoryVouchers(),
		}, func() {}, nil
	}

	db, err := infra.NewDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return repositories{}, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return repositories{
		shops:    db.Shops(),
		orders:   db.Orders(),
		vouchers: db.Vouchers(),
	}, db.Close, nil
}

type config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	PostgresDSN string `env:"POSTGRES_DSN"`
	Migrate     bool   `env:"POSTGRES_MIGRATE" envDefault:"true"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"orders"`

	Stream         string        `env:"ORDER_STREAM" envDefault:"stream.orders"`
	Group          string        `env:"ORDER_GROUP" envDefault:"g1"`
	Consumer       string        `env:"ORDER_CONSUMER" envDefault:"c1"`
	Workers        int           `env:"ORDER_WORKERS" envDefault:"1"`
	ReadBlock      time.Duration `env:"ORDER_READ_BLOCK" envDefault:"2s"`
	OrderLockLease time.Duration `env:"ORDER_LOCK_LEASE" envDefault:"5s"`

	DefaultStrategy string        `env:"CACHE_STRATEGY" envDefault:"passthrough"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"30m"`
	NullTTL         time.Duration `env:"CACHE_NULL_TTL" envDefault:"2m"`
	LogicalTTL      time.Duration `env:"CACHE_LOGICAL_TTL" envDefault:"30m"`
	RebuildLease    time.Duration `env:"CACHE_REBUILD_LEASE" envDefault:"10s"`
	MutexRetryDelay time.Duration `env:"CACHE_MUTEX_RETRY_DELAY" envDefault:"50ms"`
	MutexMaxRetries int           `env:"CACHE_MUTEX_MAX_RETRIES" envDefault:"20"`
	RebuildWorkers  int           `env:"CACHE_REBUILD_WORKERS" envDefault:"10"`
	RebuildQueue    int           `env:"CACHE_REBUILD_QUEUE" envDefault:"100"`

	// IMPORTANTE: o burst permite uma rajada inicial por comprador. Com RPS
	// baixo e burst alto o throttle parece não funcionar.
	ThrottleRPS   float64       `env:"THROTTLE_RPS" envDefault:"5"`
	ThrottleBurst int           `env:"THROTTLE_BURST" envDefault:"10"`
	RetryAfter    time.Duration `env:"RETRY_AFTER" envDefault:"1s"`

	RateLimitHeaders bool `env:"RATE_LIMIT_HEADERS" envDefault:"true"`

	ConcurrencyMax        int           `env:"CONCURRENCY_MAX" envDefault:"1000"`
	ConcurrencyTimeout    time.Duration `env:"CONCURRENCY_TIMEOUT" envDefault:"0s"`
	ConcurrencyPerVoucher int           `env:"CONCURRENCY_PER_VOUCHER" envDefault:"200"`

	StatsEnabled bool          `env:"SECKILL_STATS_ENABLED" envDefault:"true"`
	StatsTTL     time.Duration `env:"SECKILL_STATS_TTL" envDefault:"24h"`
}

func readConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required")
	}
	if cfg.Workers < 1 {
		return config{}, errors.New("ORDER_WORKERS must be >= 1")
	}
	if cfg.OrderLockLease <= 0 || cfg.RebuildLease <= 0 {
		return config{}, errors.New("lock leases must be > 0")
	}
	if cfg.ThrottleRPS <= 0 {
		return config{}, errors.New("THROTTLE_RPS must be > 0")
	}
	if cfg.ThrottleBurst <= 0 {
		return config{}, errors.New("THROTTLE_BURST must be > 0")
	}
	if cfg.RebuildWorkers <= 0 {
		return config{}, errors.New("CACHE_REBUILD_WORKERS must be > 0")
	}
	if cfg.ConcurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.ConcurrencyPerVoucher < 0 {
		return config{}, errors.New("CONCURRENCY_PER_VOUCHER must be >= 0")
	}
	return cfg, nil
}
