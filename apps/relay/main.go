package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahaj/relay/pkg/auth"
	"github.com/mahaj/relay/pkg/bus"
	"github.com/mahaj/relay/pkg/config"
	"github.com/mahaj/relay/pkg/dispatch"
	"github.com/mahaj/relay/pkg/gateway"
	"github.com/mahaj/relay/pkg/presence"
	"github.com/mahaj/relay/pkg/registry"
	"github.com/mahaj/relay/pkg/router"
	"github.com/mahaj/relay/pkg/snowflake"
	"github.com/mahaj/relay/pkg/store"
	"github.com/mahaj/relay/pkg/unread"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}

	log := newLogger(cfg)

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid snowflake node id")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewScylla(cfg.ScyllaHosts, cfg.ScyllaKeyspace, node, log)
	if err != nil {
		log.Fatal().Err(err).Msg("scylla connection failed")
	}
	defer st.Close()
	if err := st.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	var sink bus.Sink = bus.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := bus.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	reg := registry.New(log)
	tracker := presence.NewTracker(log)
	tracker.Watch(presence.NewRedisMirror(rdb, log).OnPresence)
	counters := unread.New()
	disp := dispatch.New(reg, log)
	rt := router.New(st, reg, tracker, counters, disp, sink, log)
	reg.OnEdge(rt.OnSessionEdge)

	go reg.RunReaper(ctx, cfg.HeartbeatInterval, 2*cfg.HeartbeatInterval)

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))
	gw := gateway.New(reg, rt, verifier, cfg.HeartbeatInterval, log)

	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = os.Stderr
	logger := zerolog.New(out)
	if !cfg.LogJSON {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
