package resilience

import (
	"context"
	"database/sql"
)

// DBGuard wraps a database handle with the protection pipeline. It
// prevents cascading failures when the database becomes unavailable or
// slow: statements run under the manager's timeout, retry and circuit
// breaker layers.
type DBGuard struct {
	mgr  *Manager
	db   *sql.DB
	name string
	cfg  Config
}

// NewDBGuard wraps db with the protection pipeline owned by mgr. The
// name keys the circuit breaker shared by every call through the
// guard. A zero cfg falls back to DatabaseProfile. The breaker is
// registered eagerly so status reads work before the first call.
func NewDBGuard(mgr *Manager, db *sql.DB, name string, cfg Config) *DBGuard {
	if cfg.Timeout == nil && cfg.Retry == nil && cfg.Breaker == nil {
		cfg = DatabaseProfile()
	}
	if cfg.Breaker != nil {
		mgr.Registry().GetOrCreate(name, *cfg.Breaker)
	}
	return &DBGuard{
		mgr:  mgr,
		db:   db,
		name: name,
		cfg:  cfg,
	}
}

// QueryContext executes a query under the breaker and retry layers.
// If the circuit is open, it fails fast without hitting the database.
//
// The per-attempt timeout layer is skipped for queries: the returned
// rows stay bound to the attempt context, and cancelling it on return
// would close them before the caller scans.
func (g *DBGuard) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	cfg := g.cfg
	cfg.Timeout = nil
	return Do(ctx, g.mgr, g.name, cfg, func(ctx context.Context) (*sql.Rows, error) {
		return g.db.QueryContext(ctx, query, args...)
	})
}

// ExecContext executes a statement under the full pipeline.
// If the circuit is open, it fails fast without hitting the database.
func (g *DBGuard) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return Do(ctx, g.mgr, g.name, g.cfg, func(ctx context.Context) (sql.Result, error) {
		return g.db.ExecContext(ctx, query, args...)
	})
}

// QueryRowContext executes a query that returns at most one row.
// Note: sql.Row doesn't surface an error until Scan is called, so the
// pipeline cannot observe the outcome and the call goes straight
// through.
func (g *DBGuard) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return g.db.QueryRowContext(ctx, query, args...)
}

// PingContext verifies the database connection under the full pipeline.
func (g *DBGuard) PingContext(ctx context.Context) error {
	return g.mgr.Execute(ctx, g.name, g.cfg, func(ctx context.Context) error {
		return g.db.PingContext(ctx)
	})
}

// Status returns the current status of the guard's circuit breaker and
// false when the guard runs without one.
func (g *DBGuard) Status() (Status, bool) {
	if g.cfg.Breaker == nil {
		return Status{}, false
	}
	cb := g.mgr.Registry().Get(g.name)
	if cb == nil {
		return Status{}, false
	}
	return cb.Status(), true
}

// IsOpen returns true if the guard's circuit breaker is open.
func (g *DBGuard) IsOpen() bool {
	st, ok := g.Status()
	return ok && st.State == StateOpen
}

// DB returns the underlying database handle. This should only be used
// for operations that don't need protection.
func (g *DBGuard) DB() *sql.DB {
	return g.db
}
