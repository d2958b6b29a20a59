package config

import (
	"go.uber.org/fx"

	"virtual_trader/pkg/logger"
	"virtual_trader/pkg/tracing"
)

// Module: *Config и параметры логгера и трейсера из него.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
			func(c *Config) logger.Params {
				return logger.Params{Service: c.Service.Name, Level: c.Service.LogLevel}
			},
			func(c *Config) tracing.Params {
				return tracing.Params{
					Enabled:       c.Tracing.Enabled,
					ServiceName:   c.Service.Name,
					AgentHostPort: c.Tracing.AgentHost,
				}
			},
		),
	)
}
