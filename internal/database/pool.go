package database

import (
	"context"
	"fmt"
	"os"
	"sync"

	"products-api/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pool is the process-wide connection pool. It is created once at startup,
// handed to every repository and closed at shutdown.
type Pool struct {
	*pgxpool.Pool

	logger          *zap.Logger
	maxUses         int
	exitOnIdleError bool
	exit            func(code int)

	mu        sync.Mutex
	uses      map[*pgx.Conn]int
	uncounted map[*pgx.Conn]struct{}
}

// PoolOption customises a Pool.
type PoolOption func(*Pool)

// WithExitFunc replaces os.Exit for the fail-fast idle error policy.
func WithExitFunc(exit func(code int)) PoolOption {
	return func(p *Pool) {
		p.exit = exit
	}
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func newPool(cfg config.DatabaseConfig, logger *zap.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		logger:          logger.With(zap.String("component", "pool")),
		maxUses:         cfg.MaxUsesPerConnection,
		exitOnIdleError: cfg.ExitOnIdleError,
		exit:            os.Exit,
		uses:            make(map[*pgx.Conn]int),
		uncounted:       make(map[*pgx.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPool creates the PostgreSQL connection pool and verifies it can reach the server.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger, opts ...PoolOption) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	p := newPool(cfg, logger, opts...)

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	if cfg.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = cfg.IdleTimeout
	}
	if cfg.ConnectionTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout
	}
	// created_at is a TIMESTAMP without zone; pgx reads it back as UTC, so sessions must write UTC.
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolConfig.AfterConnect = p.afterConnect
	poolConfig.AfterRelease = p.afterRelease
	poolConfig.BeforeClose = p.beforeClose

	p.logger.Info("Creating database connection pool",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("sslmode", cfg.SSLMode),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("idle_timeout", cfg.IdleTimeout),
		zap.Duration("connection_timeout", cfg.ConnectionTimeout),
		zap.Int("max_uses", cfg.MaxUsesPerConnection),
		zap.Bool("exit_on_idle_error", cfg.ExitOnIdleError),
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	p.Pool = pool

	pingCtx := ctx
	if cfg.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectionTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p.logger.Info("Database connection pool created successfully")
	return p, nil
}

// Stats returns the current pool counters.
func (p *Pool) Stats() PoolStats {
	s := p.Stat()
	return PoolStats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
	}
}

// HandleIdleError reports an error raised by a connection sitting idle in the
// pool. Under the exit-on-idle-error policy the process terminates.
func (p *Pool) HandleIdleError(err error) {
	p.logger.Warn("Unexpected error on idle database connection", zap.Error(err))

	if p.exitOnIdleError {
		p.logger.Error("Terminating process on idle connection error", zap.Error(err))
		_ = p.logger.Sync()
		p.exit(1)
	}
}

func (p *Pool) afterConnect(ctx context.Context, conn *pgx.Conn) error {
	cfg := conn.Config()
	p.logger.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.Uint32("pid", conn.PgConn().PID()),
	)
	return nil
}

// afterRelease retires a connection once it has served maxUses borrows.
// Releases marked by markUncounted do not count.
func (p *Pool) afterRelease(conn *pgx.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.uncounted[conn]; ok {
		delete(p.uncounted, conn)
		return true
	}
	if p.maxUses <= 0 {
		return true
	}

	p.uses[conn]++
	if p.uses[conn] >= p.maxUses {
		delete(p.uses, conn)
		p.logger.Debug("Retiring database connection after max uses", zap.Int("max_uses", p.maxUses))
		return false
	}
	return true
}

func (p *Pool) beforeClose(conn *pgx.Conn) {
	p.mu.Lock()
	delete(p.uses, conn)
	delete(p.uncounted, conn)
	p.mu.Unlock()
}

// markUncounted excludes the next release of conn from its use count.
func (p *Pool) markUncounted(conn *pgx.Conn) {
	p.mu.Lock()
	p.uncounted[conn] = struct{}{}
	p.mu.Unlock()
}

// releaseUncounted hands a maintenance borrow back without spending a use.
func (p *Pool) releaseUncounted(conn *pgxpool.Conn) {
	p.markUncounted(conn.Conn())
	conn.Release()
}
