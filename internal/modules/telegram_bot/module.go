package telegram

import (
	"context"

	"go.uber.org/fx"

	"virtual_trader/internal/modules/config"
	"virtual_trader/internal/notify"
	"virtual_trader/pkg/logger"
)

// newTelegram: без токена бот не поднимается, уведомления идут в лог.
func newTelegram(cfg *config.Config, log *logger.Logger) (*notify.Telegram, error) {
	if cfg.Telegram.Token == "" {
		log.Info("[TG] токен не задан, уведомления только в лог")
		return nil, nil
	}
	return notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
}

func newNotifier(t *notify.Telegram, log *logger.Logger) notify.Notifier {
	if t == nil {
		return notify.NewStdout(log)
	}
	return t
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			newTelegram,
			newNotifier,
		),
		// Команды чата слушаем, пока живёт приложение
		fx.Invoke(
			func(lc fx.Lifecycle, t *notify.Telegram) {
				if t == nil {
					return
				}
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						return t.Start(ctx)
					},
					OnStop: func(context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
