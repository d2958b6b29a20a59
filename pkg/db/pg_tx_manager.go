package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"virtual_trader/pkg/logger"
)

type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type PgTxManager struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPgTxManager(pool *pgxpool.Pool, log *logger.Logger) *PgTxManager {
	return &PgTxManager{pool: pool, log: log}
}

func (m *PgTxManager) Close() {
	m.pool.Close()
}

func (m *PgTxManager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// NewPool: журналу хватает пары соединений, значения по умолчанию маленькие.
func NewPool(ctx context.Context, conf PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("db.NewPool: parse dsn: %w", err)
	}
	pc.MaxConns = 4
	if conf.MaxConns > 0 {
		pc.MaxConns = conf.MaxConns
	}
	if conf.MinConns > 0 {
		pc.MinConns = conf.MinConns
	}
	if conf.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = conf.MaxConnLifetime
	}
	return pgxpool.NewWithConfig(ctx, pc)
}

func (m *PgTxManager) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx Transaction) error) error {
	return m.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// RunReadOnly — согласованный снимок для чтения журнала.
func (m *PgTxManager) RunReadOnly(ctx context.Context, fn func(ctxTx context.Context, tx Transaction) error) error {
	return m.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (m *PgTxManager) inTx(
	ctx context.Context,
	options pgx.TxOptions,
	f func(ctxTx context.Context, tx Transaction) error,
) (err error) {
	tx, err := m.pool.BeginTx(ctx, options)
	if err != nil {
		return fmt.Errorf("failed to begin tx, err: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			m.log.Error("[DB] panic in tx: %v", p)
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("failed to commit tx, err: %w", err)
		}
	}()

	if err = f(ctx, tx); err != nil {
		return fmt.Errorf("failed to run fn, err: %w", err)
	}
	return nil
}
