package bootstrap

import (
	"go.uber.org/fx"

	"virtual_trader/internal/modules/bootstrap/service"
	"virtual_trader/internal/modules/config"
	okx "virtual_trader/internal/modules/okx_market/service"
	"virtual_trader/pkg/logger"
)

func newWatchlist(cfg *config.Config, mx *okx.Client, log *logger.Logger) *service.Watchlist {
	return service.NewWatchlist(service.Config{
		Symbols:         cfg.Trading.Symbols,
		TopN:            cfg.Trading.WatchTopN,
		IntervalMinutes: cfg.Strategy.IntervalMinutes,
		MinCandles:      cfg.Strategy.DonchianPeriod + 30,
	}, mx, log)
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(newWatchlist),
	)
}
