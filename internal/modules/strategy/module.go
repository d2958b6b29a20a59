package strategy

import (
	"go.uber.org/fx"

	"virtual_trader/internal/modules/config"
	okx "virtual_trader/internal/modules/okx_market/service"
	"virtual_trader/internal/modules/strategy/service"
	"virtual_trader/pkg/logger"
)

func newGenerator(cfg *config.Config, market *okx.Client, log *logger.Logger) *service.Generator {
	s := cfg.Strategy
	return service.NewGenerator(service.Config{
		IntervalMinutes: s.IntervalMinutes,
		EMAShort:        s.EMAShort,
		EMALong:         s.EMALong,
		RSIPeriod:       s.RSIPeriod,
		RSIOverbought:   s.RSIOverbought,
		RSIOversold:     s.RSIOversold,
		DonchianPeriod:  s.DonchianPeriod,
		MinConfidence:   s.MinConfidence,
		Cooldown:        s.Cooldown,
	}, market, log)
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(newGenerator),
	)
}
