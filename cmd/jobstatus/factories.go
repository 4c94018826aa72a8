package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/mohans/jobstatus"
	"github.com/mohans/jobstatus/asynqgw"
	"github.com/mohans/jobstatus/internal/config"
	"github.com/mohans/jobstatus/internal/logger"
	"github.com/mohans/jobstatus/redisqueue"
	"github.com/mohans/jobstatus/redisstore"
	"github.com/mohans/jobstatus/sqlstore"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sweepInterval = time.Minute

// env holds the components shared by every command.
type env struct {
	cfg      *config.Config
	log      *logger.Logger
	rdb      *redis.Client
	store    *jobstatus.Store
	registry *jobstatus.Registry

	closers []func() error
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableSource,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(appLogger.Logger)

	e := &env{
		cfg:      cfg,
		log:      appLogger,
		rdb:      newRedis(cfg),
		registry: newRegistry(),
	}
	e.closers = append(e.closers, e.rdb.Close)

	if err := e.initStore(c.Context); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if lvl := c.String(flagLogLevel); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if c.IsSet(flagPort) {
		cfg.Server.Port = c.Int(flagPort)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func (e *env) redisConnOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     e.cfg.Redis.Addr,
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
	}
}

// Store ===================================

func (e *env) initStore(ctx context.Context) error {
	opts := []jobstatus.StoreOption{
		jobstatus.WithCodec(jobstatus.GetCodec(e.cfg.Store.Codec)),
		jobstatus.WithExpireIn(e.cfg.Store.ExpireIn),
		jobstatus.WithLogger(e.log.Logger),
	}

	switch e.cfg.Store.Backend {
	case config.StoreRedis:
		e.store = jobstatus.NewStore(redisstore.New(e.rdb), opts...)
		return nil
	case config.StorePostgres, config.StoreSQLite:
		backend, err := e.openSQL(ctx)
		if err != nil {
			return err
		}
		e.store = jobstatus.NewStore(backend, opts...)
		return nil
	default:
		return fmt.Errorf("invalid store backend: %q", e.cfg.Store.Backend)
	}
}

func (e *env) openSQL(ctx context.Context) (*sqlstore.Backend, error) {
	db, err := sqlx.Open(e.cfg.Store.Backend, e.cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", e.cfg.Store.Backend, err)
	}
	e.closers = append(e.closers, db.Close)
	if e.cfg.Store.Backend == config.StoreSQLite {
		db.SetMaxOpenConns(1)
	}

	backend := sqlstore.New(db)
	if err := backend.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", e.cfg.Store.Backend, err)
	}
	if err := backend.Migrate(ctx); err != nil {
		return nil, err
	}

	if e.cfg.Store.ExpireIn > 0 {
		stop := make(chan struct{})
		go e.sweep(backend, stop)
		e.closers = append(e.closers, func() error {
			close(stop)
			return nil
		})
	}
	return backend, nil
}

// sweep reclaims expired rows until stop is closed.
func (e *env) sweep(backend *sqlstore.Backend, stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := backend.Sweep(context.Background())
			if err != nil {
				e.log.Warn("Sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				e.log.Debug("Swept expired statuses", slog.Int64("count", n))
			}
		}
	}
}

// Queue ===================================

func (e *env) newGateway() jobstatus.Gateway {
	switch e.cfg.Queue.Backend {
	case config.QueueAsynq:
		gw := asynqgw.NewGateway(e.redisConnOpt(), asynqgw.GatewayOptions{
			MaxRetry: e.cfg.Queue.MaxRetry,
		})
		e.closers = append(e.closers, gw.Close)
		return gw
	default:
		return e.newRedisQueue()
	}
}

func (e *env) newRedisQueue() *redisqueue.Queue {
	return redisqueue.New(e.rdb, redisqueue.WithNamespace(e.cfg.Queue.Namespace))
}

func (e *env) newClient() *jobstatus.Client {
	return jobstatus.NewClient(e.store, e.newGateway(), e.registry,
		jobstatus.WithClientLogger(e.log.Logger),
	)
}

func (e *env) newRunner() *jobstatus.Runner {
	return jobstatus.NewRunner(e.store, e.registry,
		jobstatus.WithRunnerLogger(e.log.Logger),
		jobstatus.WithMiddleware(
			jobstatus.Tracing(),
			jobstatus.Metrics(),
			jobstatus.Logging(e.log.Logger),
		),
	)
}

// Close releases everything opened by newEnv, last opened first.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn("Close failed", slog.String("error", err.Error()))
		}
	}
	_ = e.log.Close()
}
