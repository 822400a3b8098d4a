package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/auth"
	"github.com/barq-desk/barq/internal/notifications"
	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/requests"
	"github.com/barq-desk/barq/internal/users"
)

// Stores bundles the repositories of one backing database.
type Stores struct {
	Driver        string
	RBAC          rbac.Store
	Auth          auth.Repository
	Requests      requests.Repository
	Users         users.RepositoryPort
	Notifications notifications.Repository

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks the database is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// PostgresStores builds pgx-backed repositories over pool.
func PostgresStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Driver:        StorePostgres,
		RBAC:          rbac.NewRepository(pool),
		Auth:          auth.NewRepository(pool),
		Requests:      requests.NewRepository(pool),
		Users:         users.NewRepository(pool),
		Notifications: notifications.NewRepository(pool),
		ping:          pool.Ping,
		close:         pool.Close,
	}
}

// SQLiteStores builds gorm-backed repositories over gdb.
func SQLiteStores(gdb *gorm.DB) *Stores {
	s := &Stores{
		Driver:        StoreSQLite,
		RBAC:          rbac.NewGormRepository(gdb),
		Auth:          auth.NewGormRepository(gdb),
		Requests:      requests.NewGormRepository(gdb),
		Users:         users.NewGormRepository(gdb),
		Notifications: notifications.NewGormRepository(gdb),
	}
	if sqlDB, err := gdb.DB(); err == nil {
		s.ping = sqlDB.PingContext
		s.close = func() { _ = sqlDB.Close() }
	}
	return s
}

// OpenStores connects to the database selected by STORE_DRIVER. PostgreSQL
// schemas are applied by `barqctl migrate`; SQLite migrates on open.
func OpenStores(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case StoreSQLite:
		gdb, err := db.OpenSQLite(cfg.SQLitePath, cfg.LogLevel == "debug")
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite store", slog.String("path", cfg.SQLitePath))
		return SQLiteStores(gdb), nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
		return PostgresStores(pool), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// SyncPolicy loads the configured RBAC policy, or the embedded default, and
// applies it with the configured mode.
func SyncPolicy(ctx context.Context, cfg *Config, service *rbac.Service) (rbac.SyncReport, error) {
	policy, err := loadPolicy(cfg.RBACPolicyFile)
	if err != nil {
		return rbac.SyncReport{}, err
	}
	return service.Sync(ctx, policy, cfg.SyncMode())
}

func loadPolicy(path string) (rbac.Policy, error) {
	if path == "" {
		return rbac.DefaultPolicy()
	}
	return rbac.LoadPolicy(path)
}
