package trader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"

	"virtual_trader/internal/models"
	healthsvc "virtual_trader/internal/modules/health/service"
	"virtual_trader/internal/notify"
	"virtual_trader/internal/position"
	"virtual_trader/internal/report"
	"virtual_trader/internal/stats"
	"virtual_trader/internal/timing"
	"virtual_trader/pkg/logger"
)

// MarketData — всё, что трейдер берёт с биржи.
type MarketData interface {
	GetOHLCV(ctx context.Context, symbol string, intervalMinutes, limit int) []models.CandleTick
	GetCurrentPrice(ctx context.Context, symbol string) float64
	TopVolatile(ctx context.Context, n int) []string
}

type SignalSource interface {
	Generate(ctx context.Context, symbols []string) []models.Signal
}

// SessionStore — журнал снимков сессии (Postgres), может отсутствовать.
type SessionStore interface {
	SaveSession(ctx context.Context, startedAt, savedAt time.Time, reason string, snapshot any) error
}

// Watchlist — список символов с прогревом свечей.
type Watchlist interface {
	Resolve(ctx context.Context) []string
}

type HealthReporter interface {
	SetReady(v bool)
	TouchCycle(t time.Time, snap healthsvc.Snapshot)
}

type Config struct {
	Symbols           []string
	WatchTopN         int
	CycleInterval     time.Duration
	MaxCycles         int // 0 — без ограничения
	ReportEveryCycles int
	SaveEveryCycles   int
	ShutdownBudget    time.Duration
	FreshnessMaxWait  time.Duration
	FreshnessMaxDrift float64
}

func (c Config) withDefaults() Config {
	if c.WatchTopN <= 0 {
		c.WatchTopN = 10
	}
	if c.CycleInterval <= 0 {
		c.CycleInterval = time.Minute
	}
	if c.ReportEveryCycles <= 0 {
		c.ReportEveryCycles = 10
	}
	if c.SaveEveryCycles <= 0 {
		c.SaveEveryCycles = 5
	}
	if c.ShutdownBudget <= 0 {
		c.ShutdownBudget = 30 * time.Second
	}
	if c.FreshnessMaxWait <= 0 {
		c.FreshnessMaxWait = timing.DefaultMaxWait
	}
	if c.FreshnessMaxDrift <= 0 {
		c.FreshnessMaxDrift = timing.DefaultMaxDrift
	}
	return c
}

type Deps struct {
	Market    MarketData
	Signals   SignalSource
	Watchlist Watchlist
	Timing    *timing.Manager
	Positions *position.Manager
	Stats     *stats.Calculator
	Writer    *report.Writer
	Notifier  notify.Notifier
	Sessions  SessionStore
	Health    HealthReporter
	Tracer    opentracing.Tracer
}

var ErrEmptyWatchlist = errors.New("trader: empty watchlist")

// Trader — цикл сигнал → очередь входа → открытие → выходы → статистика.
// Все компоненты трогает только горутина цикла; снаружи доступны
// лишь тексты статуса, посчитанные в конце цикла.
type Trader struct {
	cfg       Config
	sessionID string

	market    MarketData
	signals   SignalSource
	watchlist Watchlist
	timing    *timing.Manager
	positions *position.Manager
	calc      *stats.Calculator
	writer    *report.Writer
	notifier  notify.Notifier
	sessions  SessionStore
	health    HealthReporter
	tracer    opentracing.Tracer
	log       *logger.Logger
	now       func() time.Time

	symbols    []string
	startedAt  time.Time
	counters   report.Counters
	waitSum    float64
	lastPrices map[string]float64

	cancel   context.CancelFunc
	started  atomic.Bool
	finished atomic.Bool
	done     chan struct{}

	mu    sync.RWMutex
	texts statusTexts
}

func New(cfg Config, d Deps, sessionID string, log *logger.Logger) *Trader {
	if d.Tracer == nil {
		d.Tracer = opentracing.NoopTracer{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewStdout(log)
	}
	return &Trader{
		cfg:        cfg.withDefaults(),
		sessionID:  sessionID,
		market:     d.Market,
		signals:    d.Signals,
		watchlist:  d.Watchlist,
		timing:     d.Timing,
		positions:  d.Positions,
		calc:       d.Stats,
		writer:     d.Writer,
		notifier:   d.Notifier,
		sessions:   d.Sessions,
		health:     d.Health,
		tracer:     d.Tracer,
		log:        log,
		now:        time.Now,
		startedAt:  time.Now(),
		lastPrices: map[string]float64{},
		done:       make(chan struct{}),
	}
}

func (t *Trader) SetClock(now func() time.Time) {
	t.now = now
	t.startedAt = now()
}

func (t *Trader) SessionID() string { return t.sessionID }

// Counters — копия счётчиков; читать только из горутины цикла или после Run.
func (t *Trader) Counters() report.Counters { return t.counters }

// Finished — финальные результаты записаны.
func (t *Trader) Finished() bool { return t.finished.Load() }

func (t *Trader) Symbols() []string { return append([]string(nil), t.symbols...) }

// resolveSymbols: прогретый watchlist, иначе список из конфига или топ волатильных.
func (t *Trader) resolveSymbols(ctx context.Context) []string {
	if t.watchlist != nil {
		return t.watchlist.Resolve(ctx)
	}
	if len(t.cfg.Symbols) > 0 {
		return t.cfg.Symbols
	}
	top := t.market.TopVolatile(ctx, t.cfg.WatchTopN)
	t.log.Info("[WATCHLIST] топ %d самых волатильных: %v", len(top), top)
	return top
}

// Start запускает Run в отдельной горутине; onDone вызывается после выхода цикла.
func (t *Trader) Start(onDone func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.started.Store(true)
	go func() {
		err := t.Run(ctx)
		if onDone != nil {
			onDone(err)
		}
	}()
}

// Run крутит циклы до отмены контекста или до MaxCycles.
// При достижении MaxCycles пишет финальные результаты.
func (t *Trader) Run(ctx context.Context) error {
	defer close(t.done)

	t.symbols = t.resolveSymbols(ctx)
	if len(t.symbols) == 0 {
		t.log.Error("[TRADER] не удалось получить список символов")
		return ErrEmptyWatchlist
	}

	l := t.positions.Ledger()
	t.log.Info("[TRADER] ▶️ сессия %s: баланс $%.2f, позиция $%.2f, лимит экспозиции $%.2f, символов %d",
		t.sessionID, l.Initial(), l.PositionSize(), l.MaxExposure(), len(t.symbols))
	t.notifier.Sendf("🚀 Виртуальный трейдер запущен\nБаланс: $%.2f\nСимволов: %d\nЦикл: %s",
		l.Initial(), len(t.symbols), t.cfg.CycleInterval)
	if t.health != nil {
		t.health.SetReady(true)
		defer t.health.SetReady(false)
	}

	ticker := time.NewTicker(t.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		t.RunCycle(ctx)

		if t.cfg.MaxCycles > 0 && t.counters.Cycles >= t.cfg.MaxCycles {
			t.log.Info("[TRADER] достигнут лимит циклов: %d", t.cfg.MaxCycles)
			return t.Finish(ctx)
		}

		select {
		case <-ctx.Done():
			t.log.Info("[TRADER] ⏹ остановка после %d циклов", t.counters.Cycles)
			return nil
		case <-ticker.C:
		}
	}
}

// Shutdown останавливает цикл и ждёт его не дольше ShutdownBudget.
// Если цикл успел выйти, а финальные результаты не записаны, делает аварийное сохранение.
func (t *Trader) Shutdown(ctx context.Context) {
	if !t.started.Load() {
		return
	}
	t.cancel()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.ShutdownBudget)
	defer cancel()

	select {
	case <-t.done:
	case <-ctx.Done():
		t.log.Error("[TRADER] цикл не остановился за %s, аварийное сохранение пропущено", t.cfg.ShutdownBudget)
		return
	}
	if t.finished.Load() {
		return
	}
	t.emergencySave(ctx)
}
