package main

import (
	"go.uber.org/fx"

	"virtual_trader/internal/modules/archive"
	"virtual_trader/internal/modules/bootstrap"
	"virtual_trader/internal/modules/config"
	"virtual_trader/internal/modules/health"
	"virtual_trader/internal/modules/okx_market"
	"virtual_trader/internal/modules/postgres"
	"virtual_trader/internal/modules/strategy"
	telegram "virtual_trader/internal/modules/telegram_bot"
	"virtual_trader/internal/trader"
	"virtual_trader/pkg/logger"
	"virtual_trader/pkg/tracing"
)

func main() {
	fx.New(
		config.Module(),
		logger.Module(),
		tracing.Module(),
		postgres.Module(),
		archive.Module(),
		okx_market.Module(),
		strategy.Module(),
		bootstrap.Module(),
		telegram.Module(),
		health.Module(),
		trader.Module(),
	).Run()
}
