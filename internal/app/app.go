// Package app wires the stores and services shared by the API and bot
// daemons.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hustled/internal/business"
	"hustled/internal/config"
	"hustled/internal/economy"
	"hustled/internal/kv"
	"hustled/internal/notify"
	"hustled/internal/roulette"
)

type App struct {
	Accounts     *kv.Store[economy.Account]
	Businesses   *kv.Store[business.Business]
	Applications *kv.Store[business.Application]

	Economy  *economy.Service
	Registry *business.Registry
	Roulette *roulette.Engine

	pool *pgxpool.Pool
}

// New opens the three collections on the configured backend and builds the
// service graph on top of them.
func New(ctx context.Context, store config.StoreConfig, rouletteDelay time.Duration, notifier notify.Notifier, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}

	if store.DatabaseURL != "" {
		pool, err := kv.Connect(ctx, store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.pool = pool
	}

	accountsSnap, err := a.openSnapshot(ctx, store, "accounts")
	if err != nil {
		return nil, err
	}
	businessesSnap, err := a.openSnapshot(ctx, store, "businesses")
	if err != nil {
		return nil, err
	}
	applicationsSnap, err := a.openSnapshot(ctx, store, "applications")
	if err != nil {
		return nil, err
	}

	if a.Accounts, err = kv.Open[economy.Account](ctx, accountsSnap); err != nil {
		return nil, err
	}
	if a.Businesses, err = kv.Open[business.Business](ctx, businessesSnap); err != nil {
		return nil, err
	}
	if a.Applications, err = kv.Open[business.Application](ctx, applicationsSnap); err != nil {
		return nil, err
	}

	a.Registry = business.NewRegistry(a.Businesses, a.Applications, a.Accounts, notifier, logger)
	a.Economy = economy.NewService(a.Accounts, a.Registry, logger)
	a.Roulette = roulette.NewEngine(a.Accounts, notifier, rouletteDelay, logger)
	return a, nil
}

func (a *App) openSnapshot(ctx context.Context, store config.StoreConfig, collection string) (kv.Snapshot, error) {
	if a.pool != nil {
		return kv.NewPostgresSnapshot(ctx, a.pool, collection)
	}
	return kv.NewFileSnapshot(store.DataDir, collection)
}

// Close waits for armed settlements and releases the backend.
func (a *App) Close() {
	if a.Roulette != nil {
		a.Roulette.Wait()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
