package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MyNameIsWhaaat/threadtree/internal/comment/events"
	commenthttp "github.com/MyNameIsWhaaat/threadtree/internal/comment/handler/http"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/service"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage/cache"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage/inmemory"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/storage/postgres"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/config"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/httpserver"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/logging"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/natsconn"
)

func main() {
	cfgPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service exited with error", zap.Error(err))
		stop()
		_ = log.Sync()
		os.Exit(1)
	}
}

type readiness []func(context.Context) error

func (rs readiness) check() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, r := range rs {
		if err := r(ctx); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, cfg config.AppConfig, log *zap.Logger) error {
	var (
		repo  storage.Repository
		ready readiness
	)

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer db.Close()

		pg := postgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		repo = pg
		ready = append(ready, db.PingContext)
		log.Info("storage: postgres")
	} else {
		repo = inmemory.New()
		log.Info("storage: in-memory")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		repo = cache.New(repo, client, cfg.Redis.TTL, log)
		ready = append(ready, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		log.Info("thread cache: redis", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	svc := service.New(repo, log, service.WithDefaultQuery(storage.FetchQuery{
		Limit:    cfg.Thread.PageLimit,
		MaxDepth: cfg.Thread.MaxDepth,
	}))

	if cfg.NATS.URL != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATS.URL, Name: cfg.ServiceName, Logger: log})
		if err != nil {
			return err
		}
		defer func() { _ = nc.Drain() }()

		if _, err := events.NewConsumer(svc, log).Subscribe(nc, cfg.NATS.Subject); err != nil {
			return err
		}
		ready = append(ready, func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		})
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		ReadyFunc:      ready.check,
		Logger:         log,
	})
	commenthttp.New(svc, log).Register(r)

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Router:      r,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
