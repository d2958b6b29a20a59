package tracing

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tracing",
		fx.Provide(func(lc fx.Lifecycle, p Params) (opentracing.Tracer, error) {
			tracer, closer, err := InitTracer(p)
			if err != nil {
				return nil, fmt.Errorf("tracing.InitTracer: %w", err)
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return closer.Close()
				},
			})
			return tracer, nil
		}),
	)
}
