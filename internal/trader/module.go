package trader

import (
	"context"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"

	"virtual_trader/internal/ledger"
	bootstrap "virtual_trader/internal/modules/bootstrap/service"
	"virtual_trader/internal/modules/config"
	healthsvc "virtual_trader/internal/modules/health/service"
	okx "virtual_trader/internal/modules/okx_market/service"
	strategy "virtual_trader/internal/modules/strategy/service"
	"virtual_trader/internal/notify"
	"virtual_trader/internal/position"
	"virtual_trader/internal/report"
	"virtual_trader/internal/stats"
	"virtual_trader/internal/storage/pg"
	"virtual_trader/internal/storage/s3archive"
	"virtual_trader/internal/timing"
	"virtual_trader/pkg/db"
	"virtual_trader/pkg/logger"
)

// SessionID — идентификатор запуска, им помечаются журнал и архив.
type SessionID string

func newSessionID() SessionID { return SessionID(uuid.NewString()) }

func newLedger(cfg *config.Config, log *logger.Logger) *ledger.Ledger {
	t := cfg.Trading
	return ledger.New(ledger.Config{
		InitialBalance:      t.InitialBalance,
		PositionSizePercent: t.PositionSizePercent,
		MaxExposurePercent:  t.MaxExposurePercent,
	}, log)
}

func newTiming(cfg *config.Config, log *logger.Logger) *timing.Manager {
	return timing.NewManager(timing.Config{IntervalMinutes: cfg.Strategy.IntervalMinutes}, log)
}

func newCalculator(log *logger.Logger) *stats.Calculator {
	return stats.NewCalculator(stats.DefaultTolerance, log)
}

func newJournal(tx *db.PgTxManager, sid SessionID, log *logger.Logger) *pg.Journal {
	if tx == nil {
		return nil
	}
	return pg.NewJournal(tx, string(sid), log)
}

func newWriter(cfg *config.Config, sid SessionID, a *s3archive.Archive, log *logger.Logger) (*report.Writer, error) {
	var arch report.Archiver
	if a != nil {
		arch = a
	}
	return report.NewWriter(cfg.Trading.ResultsDir, string(sid), arch, log)
}

// newPositions подключает уведомления и журнал к событиям позиций.
func newPositions(l *ledger.Ledger, n notify.Notifier, j *pg.Journal, log *logger.Logger) *position.Manager {
	m := position.NewManager(l, log)
	m.AddSink(notify.NewEvents(n))
	if j != nil {
		m.AddSink(j)
	}
	return m
}

type traderParams struct {
	fx.In

	Cfg       *config.Config
	SessionID SessionID
	Market    *okx.Client
	Signals   *strategy.Generator
	Watchlist *bootstrap.Watchlist
	Timing    *timing.Manager
	Positions *position.Manager
	Stats     *stats.Calculator
	Writer    *report.Writer
	Notifier  notify.Notifier
	Journal   *pg.Journal
	Health    *healthsvc.State
	Tracer    opentracing.Tracer
	Log       *logger.Logger
}

func newTrader(p traderParams) *Trader {
	t := p.Cfg.Trading
	d := Deps{
		Market:    p.Market,
		Signals:   p.Signals,
		Watchlist: p.Watchlist,
		Timing:    p.Timing,
		Positions: p.Positions,
		Stats:     p.Stats,
		Writer:    p.Writer,
		Notifier:  p.Notifier,
		Health:    p.Health,
		Tracer:    p.Tracer,
	}
	if p.Journal != nil {
		d.Sessions = p.Journal
	}
	return New(Config{
		Symbols:           t.Symbols,
		WatchTopN:         t.WatchTopN,
		CycleInterval:     t.CycleInterval,
		MaxCycles:         t.MaxCycles,
		ReportEveryCycles: t.ReportEveryCycles,
		SaveEveryCycles:   t.SaveEveryCycles,
		ShutdownBudget:    t.ShutdownBudget,
		FreshnessMaxWait:  t.FreshnessMaxWait,
		FreshnessMaxDrift: t.FreshnessMaxDrift,
	}, d, string(p.SessionID), p.Log)
}

func Module() fx.Option {
	return fx.Module("trader",
		fx.Provide(
			newSessionID,
			newLedger,
			newTiming,
			newCalculator,
			newJournal,
			newWriter,
			newPositions,
			newTrader,
		),
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, t *Trader, tg *notify.Telegram, log *logger.Logger) {
			if tg != nil {
				tg.SetStatusProvider(t)
			}
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					t.Start(func(err error) {
						if err != nil {
							log.Error("[TRADER] цикл завершился с ошибкой: %v", err)
						} else if !t.Finished() {
							return
						}
						// сессия закончилась сама: останавливаем приложение
						if err := sd.Shutdown(); err != nil {
							log.Error("[TRADER] shutdown: %v", err)
						}
					})
					return nil
				},
				OnStop: func(ctx context.Context) error {
					t.Shutdown(ctx)
					return nil
				},
			})
		}),
	)
}
