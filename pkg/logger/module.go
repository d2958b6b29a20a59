package logger

import (
	"context"

	"go.uber.org/fx"
)

type Params struct {
	Service string
	Level   string
}

func Module() fx.Option {
	return fx.Module("logger",
		fx.Provide(func(p Params) (*Logger, error) {
			return New(p.Service, p.Level)
		}),
		fx.Invoke(func(lc fx.Lifecycle, l *Logger) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					l.Sync()
					return nil
				},
			})
		}),
	)
}
