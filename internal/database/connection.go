package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// Pool wraps the pgxpool.Pool used by the verdict archive.
type Pool struct {
	Pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPool creates a new archive connection pool from the database
// configuration.
func NewPool(ctx context.Context, cfg *domain.DatabaseConfig, logger *logrus.Logger) (*Pool, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, cfg.SSLMode,
	)
	return NewPoolFromURL(ctx, dsn, cfg, logger)
}

// NewPoolFromURL creates a new archive connection pool from a DSN or URL.
// cfg may be nil, in which case pgx pool defaults apply.
func NewPoolFromURL(ctx context.Context, dsn string, cfg *domain.DatabaseConfig, logger *logrus.Logger) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if cfg != nil {
		if cfg.MaxOpenConns > 0 {
			poolConfig.MaxConns = int32(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			poolConfig.MinConns = int32(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"database":  poolConfig.ConnConfig.Database,
		"host":      poolConfig.ConnConfig.Host,
		"max_conns": poolConfig.MaxConns,
	}).Info("Archive connection pool established")

	return &Pool{
		Pool: pool,
		log:  logger,
	}, nil
}

// Close closes the connection pool
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		p.log.Info("Archive connection pool closed")
	}
}

// Health checks the database connection health
func (p *Pool) Health(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Stats returns connection pool statistics
func (p *Pool) Stats() *pgxpool.Stat {
	return p.Pool.Stat()
}
