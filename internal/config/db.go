package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	featurespg "github.com/sawpanic/bottomrun/internal/features/postgres"
	inferlogpg "github.com/sawpanic/bottomrun/internal/inferlog/postgres"
	ohlcvpg "github.com/sawpanic/bottomrun/internal/ohlcv/postgres"
	promotionpg "github.com/sawpanic/bottomrun/internal/promotion/postgres"
	registrypg "github.com/sawpanic/bottomrun/internal/registry/postgres"
	settingspg "github.com/sawpanic/bottomrun/internal/settings/postgres"
	tradingpg "github.com/sawpanic/bottomrun/internal/trading/postgres"

	"github.com/sawpanic/bottomrun/internal/features"
	"github.com/sawpanic/bottomrun/internal/inferlog"
	"github.com/sawpanic/bottomrun/internal/ohlcv"
	"github.com/sawpanic/bottomrun/internal/promotion"
	"github.com/sawpanic/bottomrun/internal/registry"
	"github.com/sawpanic/bottomrun/internal/settings"
	"github.com/sawpanic/bottomrun/internal/trading"
)

// Stores bundles every Postgres-backed repository this platform wires at
// boot, the domain analog of the teacher's persistence.Repository.
type Stores struct {
	Bars       ohlcv.BarStore
	Gaps       ohlcv.GapStore
	Features   features.Store
	Logs       inferlog.Store
	Registry   registry.Registry
	Settings   settings.Store
	Trading    trading.Store
	Promotions promotion.Store
}

// DBManager owns the Postgres connection pool and the repository
// collection built on top of it, grounded on the teacher's db.Manager
// (Enabled-gated Open, pool tuning, ping-on-boot, Close).
type DBManager struct {
	db     *sqlx.DB
	cfg    DatabaseConfig
	stores *Stores
}

// NewDBManager opens the pool when cfg.Enabled, pings it once to fail
// fast on a bad DSN, and wires every repository constructor in the
// module against the resulting *sqlx.DB. When disabled it returns a
// Manager with a nil Stores - callers must fall back to the in-memory
// Store implementations (ohlcv.Memory, inferlog.Memory, ...) themselves.
func NewDBManager(cfg DatabaseConfig) (*DBManager, error) {
	if !cfg.Enabled {
		return &DBManager{cfg: cfg}, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stores := &Stores{
		Bars:       ohlcvpg.NewBarStore(db, cfg.QueryTimeout),
		Gaps:       ohlcvpg.NewGapStore(db, cfg.QueryTimeout),
		Features:   featurespg.NewStore(db, cfg.QueryTimeout),
		Logs:       inferlogpg.NewStore(db, cfg.QueryTimeout),
		Registry:   registrypg.NewRegistry(db, cfg.QueryTimeout),
		Settings:   settingspg.NewStore(db, cfg.QueryTimeout),
		Trading:    tradingpg.NewStore(db, cfg.QueryTimeout),
		Promotions: promotionpg.NewStore(db, cfg.QueryTimeout),
	}

	return &DBManager{db: db, cfg: cfg, stores: stores}, nil
}

// Stores returns the wired repository collection, or nil if the
// database is disabled.
func (m *DBManager) Stores() *Stores { return m.stores }

// Enabled reports whether a live Postgres connection backs this manager.
func (m *DBManager) Enabled() bool { return m.cfg.Enabled && m.db != nil }

// DB returns the underlying pool, for migrations or direct queries.
func (m *DBManager) DB() *sqlx.DB { return m.db }

// Ping re-checks connectivity, used by a health endpoint.
func (m *DBManager) Ping(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()
	return m.db.PingContext(pingCtx)
}

// Close closes the pool, a no-op when the database was never opened.
func (m *DBManager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
