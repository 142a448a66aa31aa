// main.go - Shielded pool daemon.
//
// poold hosts a single pool behind the HTTP API of internal/api:
//   - configuration comes from a YAML file, a .env file and POOLD_* variables
//   - pool state is restored from and periodically snapshotted to state_path
//   - token ledgers are in-memory and funded from configuration
//   - committed events go to the audit log and, when nats.url is set, to NATS
//
// Usage:
//
//	poold -config poold.yaml

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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"shielder/internal/api"
	"shielder/internal/backend"
	"shielder/internal/events"
	"shielder/internal/metrics"
	"shielder/internal/shielder"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "poold.yaml", "path to the YAML configuration")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, "poold:", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind, _ := backend.ParseKind(cfg.Backend.Kind)
	log.Info().Str("backend", string(kind)).Msg("preparing proving backend")
	b, err := backend.New(backend.Config{Kind: kind, KeyDir: cfg.Backend.KeyDir, Logger: log.Logger})
	if err != nil {
		return err
	}

	state, err := loadState(cfg, log)
	if err != nil {
		return err
	}

	sinks := events.Fanout{log}
	health := NewHealthChecker(version)
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(events.Config{
			URL:      cfg.NATS.URL,
			Prefix:   cfg.NATS.Prefix,
			SenderID: cfg.NATS.SenderID,
			Timeout:  cfg.NATS.Timeout,
		}, log.Logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		health.RegisterComponent("nats", func() (HealthStatus, error) {
			if err := pub.Healthy(); err != nil {
				return Degraded, err
			}
			return Healthy, nil
		})
	}

	pool := shielder.NewPool(state, metrics.InstrumentBackend(b),
		shielder.WithLogger(log.Logger),
		shielder.WithEventSink(sinks),
	)

	l, err := buildLedgers(cfg.Tokens, pool.Address())
	if err != nil {
		return err
	}
	if err := attach(ctx, pool, cfg.Tokens, l, log); err != nil {
		return err
	}
	if unbound := pool.UnboundTokens(); len(unbound) > 0 {
		log.Warn().Strs("tokens", shielder.ScalarStrings(unbound)).Msg("registered tokens without a ledger")
	}

	health.RegisterComponent("pool", func() (HealthStatus, error) {
		if free := (uint32(1) << shielder.MerkleTreeDepth) - pool.NextLeafIndex(); free == 0 {
			return Degraded, shielder.ErrCapacityExceeded
		}
		return Healthy, nil
	})
	health.RegisterComponent("tokens", func() (HealthStatus, error) {
		if unbound := pool.UnboundTokens(); len(unbound) > 0 {
			return Degraded, fmt.Errorf("%d registered tokens have no ledger", len(unbound))
		}
		return Healthy, nil
	})

	limiter := NewClientRateLimiter(cfg.RateLimit)
	server := api.NewServer(pool, api.Options{
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		Resolver:   l.resolve(pool.Address()),
		Logger:     log.Logger,
		Middleware: []gin.HandlerFunc{limiter.Middleware()},
		Health:     health.Handler(),
	})
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("auth.jwt_secret is empty, admin routes are disabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Listen).Str("version", version).Msg("poold listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	go maintain(ctx, cfg, pool, limiter, log)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	return snapshot(cfg, pool, log)
}

// loadState restores the snapshot at cfg.StatePath, or starts an empty pool.
func loadState(cfg *Config, log *Logger) (*shielder.PoolState, error) {
	if cfg.StatePath != "" {
		state, err := shielder.LoadStateFromFile(cfg.StatePath)
		switch {
		case err == nil:
			log.Info().
				Str("path", cfg.StatePath).
				Uint32("leaves", state.Tree.NextLeafIndex()).
				Int("nullifiers", state.Nullifiers.Len()).
				Msg("pool state restored")
			return state, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("restoring %s: %w", cfg.StatePath, err)
		}
	}
	return shielder.NewPoolState(shielder.MustParseScalar(cfg.Owner), shielder.MustParseScalar(cfg.Address)), nil
}

// maintain snapshots the pool and prunes idle rate limiter buckets until ctx is done.
func maintain(ctx context.Context, cfg *Config, pool *shielder.Pool, limiter *ClientRateLimiter, log *Logger) {
	interval := cfg.SnapshotInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
			if cfg.SnapshotInterval > 0 {
				if err := snapshot(cfg, pool, log); err != nil {
					log.Error().Err(err).Msg("snapshot failed")
				}
			}
		}
	}
}

func snapshot(cfg *Config, pool *shielder.Pool, log *Logger) error {
	if cfg.StatePath == "" {
		return nil
	}
	if err := pool.SaveToFile(cfg.StatePath); err != nil {
		return fmt.Errorf("saving pool state: %w", err)
	}
	log.Debug().Str("path", cfg.StatePath).Msg("pool state saved")
	return nil
}
