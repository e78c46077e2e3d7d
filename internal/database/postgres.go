package database

import (
	"context"
	"fmt"
	"time"

	"aitale-server/internal/config"
	"aitale-server/internal/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	connectMaxRetries = 30
	connectRetryDelay = 2 * time.Second
)

// DSN builds the postgres connection string from config.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
}

// ConnectPostgres создает пул соединений, повторяя попытки, пока БД не станет доступна.
func ConnectPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConnections)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	logger.Info("Attempting to connect to PostgreSQL",
		zap.String("host", cfg.DBHost),
		zap.Int("max_retries", connectMaxRetries),
		zap.Duration("retry_delay", connectRetryDelay),
	)

	var lastErr error
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err == nil {
			err = pool.Ping(connectCtx)
			if err != nil {
				pool.Close()
			}
		}
		connectCancel()

		if err == nil {
			logger.Info("Successfully connected and pinged PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}

		lastErr = err
		logger.Warn("Postgres connection failed, retrying...", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("postgres connection aborted: %w", ctx.Err())
		case <-time.After(connectRetryDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", connectMaxRetries, lastErr)
}

// PoolTxManager implements interfaces.TxManager on top of a pgx pool.
type PoolTxManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ interfaces.TxManager = (*PoolTxManager)(nil)

func NewPoolTxManager(pool *pgxpool.Pool, logger *zap.Logger) *PoolTxManager {
	return &PoolTxManager{pool: pool, logger: logger.Named("TxManager")}
}

func (m *PoolTxManager) Querier() interfaces.DBTX {
	return m.pool
}

// Acquire takes a dedicated connection. Caller must call Release.
func (m *PoolTxManager) Acquire(ctx context.Context) (interfaces.Conn, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// WithinTx выполняет функцию в транзакции.
func (m *PoolTxManager) WithinTx(ctx context.Context, fn func(tx interfaces.DBTX) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			m.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
