package okx_market

import (
	"context"

	"go.uber.org/fx"

	"virtual_trader/internal/modules/config"
	"virtual_trader/internal/modules/okx_market/service"
	"virtual_trader/pkg/logger"
)

func newClient(cfg *config.Config, log *logger.Logger) *service.Client {
	m := cfg.Market
	return service.NewClient(service.Config{
		BaseURL:     m.BaseURL,
		WSURL:       m.WSURL,
		MinInterval: m.MinInterval,
		MaxRetries:  m.MaxRetries,
		RetryDelay:  m.RetryDelay,
	}, log)
}

// Module поднимает клиент рыночных данных OKX и, если включено,
// WS-поток последних цен по списку символов из конфига.
func Module() fx.Option {
	return fx.Module("okx_market",
		fx.Provide(newClient),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, c *service.Client, log *logger.Logger) {
			if !cfg.Market.StreamTickers || len(cfg.Trading.Symbols) == 0 {
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go c.StreamTickers(ctx, cfg.Trading.Symbols)
					log.Info("[MARKET] поток тикеров запущен: %d символов", len(cfg.Trading.Symbols))
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
