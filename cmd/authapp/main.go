package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oof2win2/library-review-site/internal/config"
	httpserver "github.com/oof2win2/library-review-site/internal/http"
	"github.com/oof2win2/library-review-site/internal/outbox"
	"github.com/oof2win2/library-review-site/internal/pkg/cookie"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
	"github.com/oof2win2/library-review-site/internal/services/auth"
	"github.com/oof2win2/library-review-site/internal/storage/inmemory"
	"github.com/oof2win2/library-review-site/internal/storage/postgres"
	"github.com/oof2win2/library-review-site/internal/storage/redis"
)

const (
	envLocal = "local"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting application", slog.String("env", cfg.Env))

	log.Info("server params",
		slog.String("addr", cfg.Addr),
		slog.String("storage", cfg.StorageConfig.Backend),
		slog.Duration("session ttl", cfg.SessionConfig.TTL),
	)

	var (
		sessions auth.SessionStorage
		users    auth.UserStorage
		events   interface {
			auth.EventRecorder
			outbox.EventsProvider
		}
	)

	switch cfg.StorageConfig.Backend {
	case "inmemory":
		store := inmemory.New(log)
		sessions, users, events = store, store, store
	case "postgres", "redis":
		pg, err := postgres.NewWithOptions(log, postgres.ConnectOptions{
			Host:     cfg.StorageConfig.Postgres.Host,
			Port:     cfg.StorageConfig.Postgres.Port,
			User:     cfg.StorageConfig.Postgres.User,
			Password: cfg.StorageConfig.Postgres.Password,
			DBname:   cfg.StorageConfig.Postgres.DBname,
		})
		if err != nil {
			log.Error("can't connect to postgres", sl.Err(err))
			panic(err.Error())
		}
		defer pg.Close()

		sessions, users, events = pg, pg, pg

		if cfg.StorageConfig.Backend == "redis" {
			rd, err := redis.NewRedis(log, redis.RedisOptions{
				Addr:     cfg.StorageConfig.Redis.Addr,
				Password: cfg.StorageConfig.Redis.Password,
				DB:       cfg.StorageConfig.Redis.DB,
			})
			if err != nil {
				log.Error("can't connect to redis", sl.Err(err))
				panic(err.Error())
			}
			defer rd.Close()

			sessions = rd
		}
	default:
		panic("unknown storage backend: " + cfg.StorageConfig.Backend)
	}

	transport := cookie.NewTransport(cfg.SessionConfig.CookieName, cfg.SessionConfig.SecureCookie)

	service := auth.NewSessionService(log, sessions, users, transport, auth.SessionParams{
		TTL:    cfg.SessionConfig.TTL,
		Secret: []byte(cfg.SessionConfig.JwtSecret),
	}).WithEvents(events)

	if cfg.KafkaConfig.Enabled {
		publisher, err := outbox.New(log, events, outbox.ConnectOptions{
			Brokers:  cfg.KafkaConfig.Brokers,
			Topic:    cfg.KafkaConfig.Topic,
			Interval: cfg.KafkaConfig.PublishInterval,
		})
		if err != nil {
			log.Error("can't connect to kafka", sl.Err(err))
			panic(err.Error())
		}
		publisher.ServePublish()
		defer publisher.Stop()
	}

	server := httpserver.New(
		httpserver.WithLogger(log),
		httpserver.WithAddr(cfg.Addr),
		httpserver.WithRequestTimeout(cfg.RequestTimeout),
		httpserver.WithAuth(service, transport),
	)
	server.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	<-stop

	log.Info("stopping application")
	server.Stop()
	log.Info("application stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		panic("unknown enviroment")
	}

	return log
}
