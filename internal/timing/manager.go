package timing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"virtual_trader/internal/helper"
	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

// CandleSource — источник свечей. Пустой ответ означает «нет данных в этом цикле».
type CandleSource interface {
	GetOHLCV(ctx context.Context, symbol string, intervalMinutes, limit int) []models.CandleTick
}

type Config struct {
	IntervalMinutes int
	CandleLimit     int
	HistoryLimit    int
}

func (c Config) withDefaults() Config {
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 15
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = 5
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 1000
	}
	return c
}

// PendingEntry — отложенный вход, не больше одного на символ.
type PendingEntry struct {
	Symbol      string
	Side        models.Side
	SignalPrice float64
	SignalTime  time.Time
	Signal      models.Signal
	Type        models.TimingType

	TargetPrice float64
	Tolerance   float64
	MaxWait     time.Duration
	Deadline    time.Time

	RequiredConfirmations int
	Confirmations         int
	Attempts              int
	MaxAttempts           int
}

type entryRecord struct {
	Symbol          string
	TimingType      models.TimingType
	WaitTimeMinutes float64
	At              time.Time
}

// Stats — счётчики очереди.
type Stats struct {
	Queued             int                       `json:"signals_queued"`
	Replaced           int                       `json:"replaced"`
	Cancelled          int                       `json:"cancelled"`
	Ready              int                       `json:"ready"`
	Timeouts           int                       `json:"timing_timeouts"`
	Errors             int                       `json:"errors"`
	Distribution       map[models.TimingType]int `json:"timing_distribution"`
	AverageWaitMinutes float64                   `json:"average_wait_time"`
	MaxWaitMinutes     float64                   `json:"max_wait_time"`
	CurrentPending     int                       `json:"current_pending"`
}

// Manager — очередь отложенных входов.
// Не потокобезопасен: вызывается из одного цикла трейдера.
type Manager struct {
	cfg     Config
	pending map[string]*PendingEntry
	history []entryRecord
	stats   Stats
	now     func() time.Time
	log     *logger.Logger
}

func NewManager(cfg Config, log *logger.Logger) *Manager {
	return &Manager{
		cfg:     cfg.withDefaults(),
		pending: make(map[string]*PendingEntry),
		stats:   Stats{Distribution: make(map[models.TimingType]int)},
		now:     time.Now,
		log:     log,
	}
}

// SetClock подменяет часы (тесты, бэктест).
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) Len() int { return len(m.pending) }

func (m *Manager) Pending(symbol string) (*PendingEntry, bool) {
	p, ok := m.pending[symbol]
	return p, ok
}

// Enqueue ставит сигнал в очередь; старая запись по тому же символу заменяется.
func (m *Manager) Enqueue(sig models.Signal) (*PendingEntry, error) {
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("Manager.Enqueue: %w", err)
	}
	if old, ok := m.pending[sig.Symbol]; ok {
		m.stats.Replaced++
		m.log.Info("[TIMING] %s: заменяем ожидающий вход %s (%s)", sig.Symbol, old.Side, old.Type)
		delete(m.pending, sig.Symbol)
	}

	now := m.now()
	tt := SelectStrategy(sig)
	prm := strategyParams[tt]

	p := &PendingEntry{
		Symbol:                sig.Symbol,
		Side:                  sig.Side,
		SignalPrice:           sig.Price,
		SignalTime:            now,
		Signal:                sig,
		Type:                  tt,
		TargetPrice:           targetPrice(tt, sig.Side, sig.Price),
		Tolerance:             pullbackTolerance,
		MaxWait:               prm.maxWait,
		Deadline:              now.Add(prm.maxWait),
		RequiredConfirmations: prm.required,
		MaxAttempts:           defaultMaxAttempts,
	}
	m.pending[sig.Symbol] = p
	m.stats.Queued++

	m.log.Info("[TIMING] 🕐 %s %s в очереди: %s, цель %.5f, до %s",
		p.Symbol, p.Side, p.Type, p.TargetPrice, p.Deadline.Format(time.RFC3339))
	return p, nil
}

// Cancel удаляет ожидающий вход.
func (m *Manager) Cancel(symbol, reason string) bool {
	p, ok := m.pending[symbol]
	if !ok {
		return false
	}
	delete(m.pending, symbol)
	m.stats.Cancelled++
	m.log.Info("[TIMING] ❌ %s %s отменён: %s", symbol, p.Side, reason)
	return true
}

func (m *Manager) symbols() []string {
	out := make([]string, 0, len(m.pending))
	for s := range m.pending {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Check — один проход по очереди: просроченные удаляются до запроса данных,
// готовые возвращаются с ценой входа и timing_info и покидают очередь.
func (m *Manager) Check(ctx context.Context, src CandleSource) []models.Signal {
	var ready []models.Signal

	for _, sym := range m.symbols() {
		if ctx.Err() != nil {
			break
		}
		p := m.pending[sym]

		if m.now().After(p.Deadline) {
			delete(m.pending, sym)
			m.stats.Timeouts++
			m.log.Info("[TIMING] ⏰ %s: истёк таймаут (%s, ждали %.0f мин)",
				sym, p.Type, p.MaxWait.Minutes())
			continue
		}

		err := helper.Guard(sym, func() error {
			candles := src.GetOHLCV(ctx, sym, m.cfg.IntervalMinutes, m.cfg.CandleLimit)
			if len(candles) == 0 {
				return nil
			}
			if sig, ok := m.evaluate(p, candles); ok {
				ready = append(ready, sig)
			}
			return nil
		})
		if err != nil {
			m.stats.Errors++
			m.log.Error("[TIMING] %s: ошибка проверки: %v", sym, err)
		}
	}
	m.stats.CurrentPending = len(m.pending)
	return ready
}

func (m *Manager) evaluate(p *PendingEntry, candles []models.CandleTick) (models.Signal, bool) {
	d := Evaluate(p, candles)
	p.Confirmations = d.Confirmations
	if !d.Enter {
		p.Attempts++
		return models.Signal{}, false
	}

	now := m.now()
	wait := helper.MinutesBetween(p.SignalTime, now)
	sig := p.Signal.WithEntry(d.Price, models.TimingInfo{
		OriginalSignalPrice: p.SignalPrice,
		TimingType:          p.Type,
		WaitTimeMinutes:     wait,
		Confirmations:       d.Confirmations,
		EntryReason:         d.Reason,
	})

	delete(m.pending, p.Symbol)
	m.stats.Ready++
	m.stats.Distribution[p.Type]++
	m.remember(entryRecord{Symbol: p.Symbol, TimingType: p.Type, WaitTimeMinutes: wait, At: now})

	m.log.Info("[TIMING] ✅ %s %s готов к входу по %.5f (%s, %.1f мин)",
		p.Symbol, p.Side, d.Price, d.Reason, wait)
	return sig, true
}

func (m *Manager) remember(r entryRecord) {
	m.history = append(m.history, r)
	if len(m.history) > m.cfg.HistoryLimit {
		m.history = append([]entryRecord(nil), m.history[len(m.history)-m.cfg.HistoryLimit/2:]...)
	}
	var sum float64
	m.stats.MaxWaitMinutes = 0
	for _, h := range m.history {
		sum += h.WaitTimeMinutes
		m.stats.MaxWaitMinutes = math.Max(m.stats.MaxWaitMinutes, h.WaitTimeMinutes)
	}
	m.stats.AverageWaitMinutes = sum / float64(len(m.history))
}

func (m *Manager) Stats() Stats {
	s := m.stats
	s.CurrentPending = len(m.pending)
	s.Distribution = make(map[models.TimingType]int, len(m.stats.Distribution))
	for k, v := range m.stats.Distribution {
		s.Distribution[k] = v
	}
	return s
}

// PendingStatus — строка состояния ожидающего входа.
type PendingStatus struct {
	Symbol        string            `json:"symbol"`
	Direction     models.Side       `json:"direction"`
	TimingType    models.TimingType `json:"timing_type"`
	SignalPrice   float64           `json:"signal_price"`
	TargetPrice   float64           `json:"target_price"`
	Confirmations string            `json:"confirmations"`
	Attempts      int               `json:"attempts"`
	TimeWaiting   string            `json:"time_waiting"`
	TimeRemaining string            `json:"time_remaining"`
}

func (m *Manager) PendingStatus() []PendingStatus {
	now := m.now()
	out := make([]PendingStatus, 0, len(m.pending))
	for _, sym := range m.symbols() {
		p := m.pending[sym]
		remaining := math.Max(0, p.Deadline.Sub(now).Minutes())
		out = append(out, PendingStatus{
			Symbol:        p.Symbol,
			Direction:     p.Side,
			TimingType:    p.Type,
			SignalPrice:   p.SignalPrice,
			TargetPrice:   p.TargetPrice,
			Confirmations: fmt.Sprintf("%d/%d", p.Confirmations, p.RequiredConfirmations),
			Attempts:      p.Attempts,
			TimeWaiting:   fmt.Sprintf("%.1fmin", now.Sub(p.SignalTime).Minutes()),
			TimeRemaining: fmt.Sprintf("%.1fmin", remaining),
		})
	}
	return out
}
