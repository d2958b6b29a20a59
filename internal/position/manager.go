package position

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"virtual_trader/internal/helper"
	"virtual_trader/internal/ledger"
	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

// OpenResult — исход попытки открыть позицию. Отказы по капиталу — значения, не ошибки.
type OpenResult string

const (
	Opened              OpenResult = "ok"
	AlreadyOpen         OpenResult = "already_open"
	InsufficientBalance OpenResult = "insufficient_balance"
	ExposureLimit       OpenResult = "exposure_limit"
	ReserveFailed       OpenResult = "reserve_failed"
	InvalidSignal       OpenResult = "invalid_signal"
)

const (
	exitIntervalMinutes = 15
	exitCandleLimit     = 2
)

// CandleSource — тот же контракт, что и у timing-очереди.
type CandleSource interface {
	GetOHLCV(ctx context.Context, symbol string, intervalMinutes, limit int) []models.CandleTick
}

// Sink получает закрытые сделки (журнал в БД, уведомления).
type Sink interface {
	OnOpen(p *models.Position)
	OnExit(p *models.Position, t models.ClosedTrade)
}

// Manager — жизненный цикл виртуальных позиций: не больше одной на символ.
type Manager struct {
	ledger *ledger.Ledger
	open   map[string]*models.Position
	closed []models.ClosedTrade
	sinks  []Sink
	now    func() time.Time
	log    *logger.Logger
}

func NewManager(l *ledger.Ledger, log *logger.Logger) *Manager {
	return &Manager{
		ledger: l,
		open:   make(map[string]*models.Position),
		now:    time.Now,
		log:    log,
	}
}

func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) AddSink(s Sink) { m.sinks = append(m.sinks, s) }

func (m *Manager) Ledger() *ledger.Ledger { return m.ledger }

func (m *Manager) Has(symbol string) bool {
	_, ok := m.open[symbol]
	return ok
}

func (m *Manager) Get(symbol string) (*models.Position, bool) {
	p, ok := m.open[symbol]
	return p, ok
}

// Positions — открытые позиции, отсортированные по символу.
func (m *Manager) Positions() []*models.Position {
	out := make([]*models.Position, 0, len(m.open))
	for _, p := range m.open {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (m *Manager) ClosedTrades() []models.ClosedTrade {
	out := make([]models.ClosedTrade, len(m.closed))
	copy(out, m.closed)
	return out
}

// Open проверяет капитал, резервирует размер позиции и только потом создаёт её.
func (m *Manager) Open(sig models.Signal) (*models.Position, OpenResult) {
	if err := sig.Validate(); err != nil {
		m.log.Warn("[POSITION] сигнал отклонён: %v", err)
		return nil, InvalidSignal
	}
	if m.Has(sig.Symbol) {
		return nil, AlreadyOpen
	}

	if ok, reason := m.ledger.CanOpen(m.Positions()); !ok {
		switch reason {
		case ledger.ReasonInsufficientBalance:
			m.log.Info("[POSITION] %s: недостаточно средств ($%.2f < $%.2f)",
				sig.Symbol, m.ledger.Available(), m.ledger.PositionSize())
			return nil, InsufficientBalance
		default:
			m.log.Info("[POSITION] %s: превышен лимит экспозиции ($%.2f)",
				sig.Symbol, m.ledger.MaxExposure())
			return nil, ExposureLimit
		}
	}

	size := m.ledger.PositionSize()
	if !m.ledger.Reserve(size) {
		return nil, ReserveFailed
	}

	p, err := models.NewPosition(sig, size, m.now())
	if err != nil {
		// резерв уже снят, возвращаем его
		m.ledger.Release(size, 0)
		m.log.Error("[POSITION] %s: %v", sig.Symbol, err)
		return nil, InvalidSignal
	}
	m.open[sig.Symbol] = p

	m.log.Info("[POSITION] 📈 открыта %s %s по %.5f, $%.2f (qty %.6f)",
		p.Symbol, p.Side.Upper(), p.EntryPrice, p.SizeUSD, p.Quantity)
	for _, s := range m.sinks {
		s.OnOpen(p)
	}
	return p, Opened
}

// EvaluateExit — чистая проверка условий выхода по бару: стоп по low/high проверяется
// первым и побеждает, если на одном баре задеты и стоп, и тейк. Исполнение по уровню.
func EvaluateExit(p *models.Position, bar models.CandleTick) (models.ExitEvent, bool) {
	if p.Closed() {
		return models.ExitEvent{}, false
	}
	buy := p.Side == models.SideBuy
	sl := p.CurrentSL()

	if buy && bar.Low <= sl || !buy && bar.High >= sl {
		return models.ExitEvent{Reason: models.ExitStopLoss, Price: sl}, true
	}

	var next models.ExitReason
	var level float64
	switch {
	case !p.TP1Filled():
		next, level = models.ExitTP1, p.TakeProfit[0]
	case !p.TP2Filled():
		next, level = models.ExitTP2, p.TakeProfit[1]
	case !p.TP3Filled():
		next, level = models.ExitTP3, p.TakeProfit[2]
	default:
		return models.ExitEvent{}, false
	}
	if buy && bar.High >= level || !buy && bar.Low <= level {
		return models.ExitEvent{Reason: next, Price: level}, true
	}
	return models.ExitEvent{}, false
}

// CheckExits — один опрос всех открытых позиций, не больше одного события на позицию.
func (m *Manager) CheckExits(ctx context.Context, src CandleSource) []models.ClosedTrade {
	var out []models.ClosedTrade

	for _, p := range m.Positions() {
		if ctx.Err() != nil {
			break
		}
		err := helper.Guard(p.Symbol, func() error {
			candles := src.GetOHLCV(ctx, p.Symbol, exitIntervalMinutes, exitCandleLimit)
			last, ok := models.Last(candles)
			if !ok {
				return nil
			}
			_, closed, err := m.Apply(p, last)
			if err != nil {
				return err
			}
			if closed != nil {
				out = append(out, *closed)
			}
			return nil
		})
		if err != nil {
			m.log.Error("[POSITION] %s: ошибка проверки выхода: %v", p.Symbol, err)
		}
	}
	return out
}

// Apply обновляет экстремумы по закрытию бара и исполняет выход, если он сработал.
// Возвращает сработавшее событие и запись закрытия (nil, если выхода не было).
func (m *Manager) Apply(p *models.Position, bar models.CandleTick) (ev models.ExitEvent, trade *models.ClosedTrade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Manager.Apply %s: %w", p.Symbol, err)
		}
	}()

	if bar.Low <= 0 || bar.High <= 0 {
		return ev, nil, nil
	}
	p.Track(bar.Close)
	ev, ok := EvaluateExit(p, bar)
	if !ok {
		return ev, nil, nil
	}

	fill, err := p.ApplyExit(ev, m.now())
	if err != nil {
		return ev, nil, err
	}
	m.ledger.Release(fill.NotionalUSD, fill.PnLUSD)

	t := models.NewClosedTrade(uuid.NewString(), p, fill)
	m.closed = append(m.closed, t)

	if p.Closed() {
		delete(m.open, p.Symbol)
	}

	m.log.Info("[POSITION] %s %s: %s %d%% по %.5f, PnL $%+.2f (%+.2f%%)",
		exitIcon(ev.Reason), p.Symbol, ev.Reason, fill.Percent, fill.Price, fill.PnLUSD, fill.PnLPercent)
	if ev.Reason == models.ExitTP1 {
		m.log.Info("[POSITION] %s: стоп перенесён в безубыток %.5f", p.Symbol, p.CurrentSL())
	}
	for _, s := range m.sinks {
		s.OnExit(p, t)
	}
	return ev, &t, nil
}

func exitIcon(r models.ExitReason) string {
	if r == models.ExitStopLoss {
		return "🛑"
	}
	return "🎯"
}
