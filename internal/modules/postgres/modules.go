package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"virtual_trader/internal/modules/config"
	"virtual_trader/pkg/db"
	"virtual_trader/pkg/logger"
)

// Module: пул Postgres для журнала сделок. Без db_dsn журнал выключен
// и провайдер отдаёт nil.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					log.Info("[DB] db_dsn не задан, журнал сделок выключен")
					return nil, nil
				}

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				pool, err := db.NewPool(ctx, db.PoolConfig{
					DSN:             cfg.DB,
					MaxConnLifetime: time.Hour,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create pool: %w", err)
				}

				m := db.NewPgTxManager(pool, log)
				if err = m.Ping(ctx); err != nil {
					m.Close()
					return nil, fmt.Errorf("postgres ping: %w", err)
				}
				log.Info("[DB] журнал сделок подключён")
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						m.Close()
						return nil
					},
				})
				return m, nil
			},
		),
	)
}
