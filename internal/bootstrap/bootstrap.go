// Package bootstrap assembles the store, replication worker and application
// service from configuration. Every binary under cmd/ starts here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"demand-ledger/internal/app"
	"demand-ledger/internal/config"
	"demand-ledger/internal/core"
	"demand-ledger/internal/db"
	"demand-ledger/internal/replication"
	"demand-ledger/internal/store/memory"
	"demand-ledger/internal/store/postgres"

	"github.com/sirupsen/logrus"
)

type store interface {
	core.Store
	core.OutboxStore
}

// Options select optional startup steps.
type Options struct {
	// Migrate applies pending schema migrations before opening the pool.
	Migrate bool
}

// Runtime holds everything a binary needs. Worker is nil when sync is disabled.
type Runtime struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Clock    *core.BusinessClock
	Store    core.Store
	Outbox   core.OutboxStore
	Postgres *postgres.Store
	Worker   *replication.Worker
	Service  app.ApplicationService

	closers []func() error
}

// Open builds a Runtime. On error everything opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts Options) (*Runtime, error) {
	clock, err := cfg.Clock()
	if err != nil {
		return nil, fmt.Errorf("failed to build clock: %w", err)
	}
	rt := &Runtime{Config: cfg, Log: log, Clock: clock}

	var st store
	if cfg.UseMemoryStore() {
		log.Warn("STORE=memory: data lives only as long as this process")
		st = memory.New()
	} else {
		if opts.Migrate {
			if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
				return nil, fmt.Errorf("failed to migrate: %w", err)
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.Postgres = postgres.New(pool)
		st = rt.Postgres
	}
	rt.Store, rt.Outbox = st, st
	rt.closers = append(rt.closers, func() error { st.Close(); return nil })

	deps := app.Deps{
		Store:              st,
		Outbox:             st,
		Clock:              clock,
		Thresholds:         cfg.Thresholds(),
		VelocityWindowDays: cfg.VelocityWindowDays,
		SyncDisabled:       !cfg.SyncEnabled,
		Log:                log,
	}
	if cfg.SyncEnabled {
		gateway, err := rt.gateway(ctx)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Worker = replication.NewWorker(st, replication.NewStoreSource(st, clock), gateway, clock, cfg.Worker(), log)
		deps.Notifier = rt.Worker
	}
	rt.Service = app.NewAppService(deps)
	return rt, nil
}

// gateway builds the configured remotes, falling back to logging only.
func (rt *Runtime) gateway(ctx context.Context) (replication.Gateway, error) {
	cfg := rt.Config
	var fan replication.Fanout
	if cfg.GCSBucket != "" {
		g, err := replication.NewGCSGateway(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentialsJSON)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, g.Close)
		fan = append(fan, g)
	}
	if cfg.PubSubProjectID != "" {
		g, err := replication.NewPubSubGateway(ctx, cfg.PubSubProjectID, cfg.PubSubTopic, cfg.PubSubCredentialsJSON, cfg.PubSubCreateTopic)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, g.Close)
		fan = append(fan, g)
	}
	switch len(fan) {
	case 0:
		rt.Log.Info("no sync remote configured; changes are logged only")
		return replication.NewLogGateway(rt.Log), nil
	case 1:
		return fan[0], nil
	default:
		return fan, nil
	}
}

// Pusher returns the worker as a cli.Pusher, or nil when sync is disabled.
func (rt *Runtime) Pusher() interface {
	ProcessOnce(ctx context.Context) (int, error)
} {
	if rt.Worker == nil {
		return nil
	}
	return rt.Worker
}

// Close releases gateways first and the store last.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
