package ledger

import (
	"fmt"
	"math"
	"time"

	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

// Reason — результат проверки возможности открыть позицию.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonInsufficientBalance Reason = "insufficient_balance"
	ReasonExposureLimit       Reason = "exposure_limit"
)

// IdentityTolerance — допуск тождества available + invested = initial + realized.
const IdentityTolerance = 0.01

const journalSize = 32

type Config struct {
	InitialBalance      float64
	PositionSizePercent float64
	MaxExposurePercent  float64
}

// Op — запись журнала операций резервирования.
type Op struct {
	Kind      string    `json:"kind"` // reserve | release
	Amount    float64   `json:"amount"`
	PnL       float64   `json:"pnl"`
	Available float64   `json:"available_after"`
	Invested  float64   `json:"invested_after"`
	At        time.Time `json:"at"`
}

// Ledger — учёт свободных средств, вложенного капитала и реализованного PnL.
// Не потокобезопасен: все изменения идут из одного цикла трейдера.
type Ledger struct {
	initial       float64
	available     float64
	totalInvested float64
	realized      float64

	positionSize float64
	maxExposure  float64

	journal []Op
	now     func() time.Time
	log     *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Ledger {
	return &Ledger{
		initial:      cfg.InitialBalance,
		available:    cfg.InitialBalance,
		positionSize: cfg.InitialBalance * cfg.PositionSizePercent / 100,
		maxExposure:  cfg.InitialBalance * cfg.MaxExposurePercent / 100,
		journal:      make([]Op, 0, journalSize),
		now:          time.Now,
		log:          log,
	}
}

func (l *Ledger) Initial() float64       { return l.initial }
func (l *Ledger) Available() float64     { return l.available }
func (l *Ledger) TotalInvested() float64 { return l.totalInvested }
func (l *Ledger) RealizedPnL() float64   { return l.realized }
func (l *Ledger) PositionSize() float64  { return l.positionSize }
func (l *Ledger) MaxExposure() float64   { return l.maxExposure }

// CanOpen ничего не меняет, только отвечает можно ли зарезервировать ещё одну позицию.
func (l *Ledger) CanOpen(positions []*models.Position) (bool, Reason) {
	if l.available < l.positionSize {
		return false, ReasonInsufficientBalance
	}
	if l.InvestedCapital(positions)+l.positionSize > l.maxExposure {
		return false, ReasonExposureLimit
	}
	return true, ReasonOK
}

// Reserve вызывается до создания позиции.
func (l *Ledger) Reserve(amount float64) bool {
	if amount <= 0 || l.available < amount {
		return false
	}
	l.available -= amount
	l.totalInvested += amount
	l.record("reserve", amount, 0)
	return true
}

// Release возвращает долю резерва вместе с результатом. Соответствие amount
// зарезервированной доле проверяет вызывающий.
func (l *Ledger) Release(amount, pnl float64) {
	l.available += amount + pnl
	l.totalInvested -= amount
	l.realized += pnl
	l.record("release", amount, pnl)
}

func (l *Ledger) record(kind string, amount, pnl float64) {
	if len(l.journal) == journalSize {
		copy(l.journal, l.journal[1:])
		l.journal = l.journal[:journalSize-1]
	}
	l.journal = append(l.journal, Op{
		Kind:      kind,
		Amount:    amount,
		PnL:       pnl,
		Available: l.available,
		Invested:  l.totalInvested,
		At:        l.now(),
	})
}

// RecentOps — последние операции, для диагностики расхождений.
func (l *Ledger) RecentOps() []Op {
	out := make([]Op, len(l.journal))
	copy(out, l.journal)
	return out
}

// InvestedCapital = Σ size × remaining_percent/100, от цены не зависит.
func (l *Ledger) InvestedCapital(positions []*models.Position) float64 {
	var sum float64
	for _, p := range positions {
		sum += p.InvestedShare()
	}
	return sum
}

// UnrealizedPnL по остаткам; символы без цены дают ноль.
func (l *Ledger) UnrealizedPnL(positions []*models.Position, prices map[string]float64) float64 {
	var sum float64
	for _, p := range positions {
		mark, ok := prices[p.Symbol]
		if !ok || mark <= 0 {
			continue
		}
		sum += p.UnrealizedPnL(mark)
	}
	return sum
}

// CurrentBalance — единственная формула баланса, которую видит пользователь.
func (l *Ledger) CurrentBalance(positions []*models.Position, prices map[string]float64) float64 {
	return l.available + l.InvestedCapital(positions) + l.UnrealizedPnL(positions, prices)
}

// MarkToMarketBalance — альтернативная формула через количество по рынку.
// Только для сверки, наружу как баланс не отдаётся.
func (l *Ledger) MarkToMarketBalance(positions []*models.Position, prices map[string]float64) float64 {
	sum := l.available
	for _, p := range positions {
		mark, ok := prices[p.Symbol]
		if !ok || mark <= 0 {
			mark = p.EntryPrice
		}
		sum += p.MarketValue(mark)
	}
	return sum
}

type Summary struct {
	InitialBalance   float64 `json:"initial_balance"`
	CurrentBalance   float64 `json:"current_balance"`
	AvailableBalance float64 `json:"available_balance"`
	InvestedCapital  float64 `json:"invested_capital"`
	TotalInvested    float64 `json:"total_invested"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	RealizedPnL      float64 `json:"total_realized_pnl"`
	BalanceChange    float64 `json:"balance_change"`
	BalancePercent   float64 `json:"balance_percent"`
	ExposurePercent  float64 `json:"exposure_percent"`
	PositionSizeUSD  float64 `json:"position_size_usd"`
	MaxExposureUSD   float64 `json:"max_exposure_usd"`
}

func (l *Ledger) Summary(positions []*models.Position, prices map[string]float64) Summary {
	invested := l.InvestedCapital(positions)
	unrealized := l.UnrealizedPnL(positions, prices)
	current := l.available + invested + unrealized

	s := Summary{
		InitialBalance:   l.initial,
		CurrentBalance:   current,
		AvailableBalance: l.available,
		InvestedCapital:  invested,
		TotalInvested:    l.totalInvested,
		UnrealizedPnL:    unrealized,
		RealizedPnL:      l.realized,
		BalanceChange:    current - l.initial,
		PositionSizeUSD:  l.positionSize,
		MaxExposureUSD:   l.maxExposure,
	}
	if l.initial > 0 {
		s.BalancePercent = s.BalanceChange / l.initial * 100
		s.ExposurePercent = invested / l.initial * 100
	}
	return s
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

type RiskReport struct {
	Level    RiskLevel `json:"risk_level"`
	Warnings []string  `json:"warnings"`
}

// RiskLimits: экспозиция выше 90% лимита, нет средств на позицию, просадка хуже −20%.
func (l *Ledger) RiskLimits(positions []*models.Position, prices map[string]float64) RiskReport {
	s := l.Summary(positions, prices)
	rep := RiskReport{Level: RiskLow, Warnings: []string{}}

	if s.InvestedCapital > l.maxExposure*0.9 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("экспозиция близка к лимиту: $%.2f из $%.2f", s.InvestedCapital, l.maxExposure))
	}
	if l.available < l.positionSize {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("недостаточно средств: $%.2f < $%.2f", l.available, l.positionSize))
	}
	if s.BalancePercent < -20 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("большая просадка: %.2f%%", s.BalancePercent))
		rep.Level = RiskCritical
		return rep
	}

	switch len(rep.Warnings) {
	case 0:
		rep.Level = RiskLow
	case 1:
		rep.Level = RiskMedium
	default:
		rep.Level = RiskHigh
	}
	return rep
}

// Violation — нарушение инварианта учёта.
type Violation struct {
	Check   string  `json:"check"`
	Message string  `json:"message"`
	Diff    float64 `json:"diff"`
}

// Validate проверяет тождество учёта и согласованность резерва с позициями.
func (l *Ledger) Validate(positions []*models.Position) []Violation {
	var out []Violation

	if l.available < -IdentityTolerance {
		out = append(out, Violation{
			Check:   "available_non_negative",
			Message: fmt.Sprintf("available_balance отрицательный: %.2f", l.available),
			Diff:    l.available,
		})
	}
	if l.totalInvested < -IdentityTolerance {
		out = append(out, Violation{
			Check:   "invested_non_negative",
			Message: fmt.Sprintf("total_invested отрицательный: %.2f", l.totalInvested),
			Diff:    l.totalInvested,
		})
	}

	identity := l.available + l.totalInvested - (l.initial + l.realized)
	if math.Abs(identity) > IdentityTolerance {
		out = append(out, Violation{
			Check:   "ledger_identity",
			Message: fmt.Sprintf("available+invested=%.4f, initial+realized=%.4f", l.available+l.totalInvested, l.initial+l.realized),
			Diff:    identity,
		})
	}

	share := l.InvestedCapital(positions)
	if d := l.totalInvested - share; math.Abs(d) > IdentityTolerance {
		out = append(out, Violation{
			Check:   "invested_share",
			Message: fmt.Sprintf("total_invested=%.4f, Σ долей позиций=%.4f", l.totalInvested, share),
			Diff:    d,
		})
	}

	for _, v := range out {
		l.log.Error("[LEDGER] %s: %s", v.Check, v.Message)
	}
	return out
}
