package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FairportRobotics/scouting-sync/internal/config"
	"github.com/FairportRobotics/scouting-sync/internal/snapshot"
	"github.com/FairportRobotics/scouting-sync/internal/store"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
)

// objectBackend bundles the Postgres-backed object store with its pool so
// callers can close both.
type objectBackend struct {
	pool  *pgxpool.Pool
	store *store.PostgresStore
}

func (b *objectBackend) Close() {
	b.pool.Close()
}

// openObjectStore connects the pooled Postgres object store and verifies
// the connection.
func openObjectStore(ctx context.Context, cfg *config.Config) (*objectBackend, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ObjectStore.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing object store URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.ObjectStore.MaxConns)
	poolConfig.MinConns = int32(cfg.ObjectStore.MinConns)
	poolConfig.MaxConnLifetime = cfg.ObjectStore.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to object store: %w", err)
	}

	objects, err := store.NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	if u, err := url.Parse(cfg.ObjectStore.URL); err == nil {
		slog.Info("connected to object store", "database", strings.TrimPrefix(u.Path, "/"))
	}
	return &objectBackend{pool: pool, store: objects}, nil
}

// openMirror connects the MongoDB document mirror.
func openMirror(ctx context.Context, cfg *config.Config) (*store.MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()

	docs, err := store.NewMongoStore(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to document mirror: %w", err)
	}
	slog.Info("connected to document mirror", "database", cfg.Mongo.Database)
	return docs, nil
}

// buildPipeline assembles the upsert engine and service from connected
// stores.
func buildPipeline(cfg *config.Config, objects store.ObjectStore, docs store.DocumentStore) (*snapshot.Store, *sync.Service) {
	snapshots := snapshot.NewStore(objects, cfg.ObjectStore.Container)
	engine := sync.NewEngine(snapshots, objects, cfg.ObjectStore.Container, sync.EngineOptions{
		MaxAttempts: cfg.Sync.MaxRetries,
		Backoff:     cfg.Sync.RetryBackoff,
	})
	service := sync.NewService(engine, sync.NewMirror(docs), cfg.Sync.OpTimeout)
	return snapshots, service
}
