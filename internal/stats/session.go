package stats

import (
	"fmt"
	"strings"
	"time"

	"virtual_trader/internal/ledger"
	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

const (
	historyCap  = 1000
	historyKeep = 500
)

// SessionStats — снимок сессии для отчётов и сохранения.
type SessionStats struct {
	SessionDurationHours float64            `json:"session_duration_hours"`
	Timestamp            time.Time          `json:"timestamp"`
	Balance              ledger.Summary     `json:"balance"`
	Risk                 ledger.RiskReport  `json:"risk"`
	Trades               TradeStats         `json:"trades"`
	Positions            PositionStats      `json:"positions"`
	Timing               TimingAnalysis     `json:"timing_analysis"`
	Performance          PerformanceMetrics `json:"performance_metrics"`
	Reconciliation       Reconciliation     `json:"reconciliation"`
}

// HistoryRecord — строка истории, по одной на цикл.
type HistoryRecord struct {
	At             time.Time `json:"timestamp"`
	CurrentBalance float64   `json:"current_balance"`
	Available      float64   `json:"available_balance"`
	Invested       float64   `json:"invested_capital"`
	OpenPositions  int       `json:"open_positions"`
	Trades         int       `json:"total_trades"`
	TotalPnL       float64   `json:"total_pnl"`
}

// Input — всё, что нужно для снимка.
type Input struct {
	Ledger    *ledger.Ledger
	Positions []*models.Position
	Trades    []models.ClosedTrade
	Prices    map[string]float64
	Timing    TimingCounters
	Start     time.Time
}

type Calculator struct {
	history   []HistoryRecord
	tolerance Tolerance
	now       func() time.Time
	log       *logger.Logger
}

func NewCalculator(tol Tolerance, log *logger.Logger) *Calculator {
	return &Calculator{tolerance: tol, now: time.Now, log: log}
}

func (c *Calculator) SetClock(now func() time.Time) { c.now = now }

// Session считает снимок и добавляет строку в историю.
func (c *Calculator) Session(in Input) SessionStats {
	now := c.now()
	bal := in.Ledger.Summary(in.Positions, in.Prices)
	trades := ComputeTrades(in.Trades)

	s := SessionStats{
		Timestamp:      now,
		Balance:        bal,
		Risk:           in.Ledger.RiskLimits(in.Positions, in.Prices),
		Trades:         trades,
		Positions:      AnalyzePositions(in.Positions, in.Prices, now),
		Timing:         TimingPerformance(in.Trades, in.Timing),
		Performance:    Performance(in.Trades, bal.InitialBalance, trades.TotalPnL, in.Start, now),
		Reconciliation: Reconcile(in.Ledger, in.Positions, in.Prices, c.tolerance, c.log),
	}
	if !in.Start.IsZero() {
		s.SessionDurationHours = now.Sub(in.Start).Hours()
	}

	c.record(HistoryRecord{
		At:             now,
		CurrentBalance: bal.CurrentBalance,
		Available:      bal.AvailableBalance,
		Invested:       bal.InvestedCapital,
		OpenPositions:  len(in.Positions),
		Trades:         trades.TotalTrades,
		TotalPnL:       trades.TotalPnL,
	})
	c.log.Debug("[STATS] %d сделок, винрейт %.1f%%, P&L $%+.2f",
		trades.TotalTrades, trades.WinRate, trades.TotalPnL)
	return s
}

func (c *Calculator) record(r HistoryRecord) {
	c.history = append(c.history, r)
	if len(c.history) > historyCap {
		c.history = append([]HistoryRecord(nil), c.history[len(c.history)-historyKeep:]...)
	}
}

// History — последние n строк (n ≤ 0 — все).
func (c *Calculator) History(n int) []HistoryRecord {
	from := 0
	if n > 0 && n < len(c.history) {
		from = len(c.history) - n
	}
	return append([]HistoryRecord(nil), c.history[from:]...)
}

// PerformanceReport — короткий текстовый отчёт.
func PerformanceReport(s SessionStats) string {
	var b strings.Builder
	line := strings.Repeat("=", 50)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "ОТЧЕТ О ПРОИЗВОДИТЕЛЬНОСТИ")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "💰 Баланс: $%.2f (%+.2f%%)\n", s.Balance.CurrentBalance, s.Balance.BalancePercent)
	fmt.Fprintf(&b, "📈 P&L: $%+.2f\n", s.Trades.TotalPnL)
	fmt.Fprintf(&b, "📊 Сделок: %d (винрейт: %.1f%%, PF %s)\n",
		s.Trades.TotalTrades, s.Trades.WinRate, s.Trades.ProfitFactor)
	fmt.Fprintf(&b, "📍 Позиций: %d\n", s.Positions.Count)
	fmt.Fprintf(&b, "⏰ Timing: %d входов, %.1f%% использование\n",
		s.Timing.EntriesFromTiming, s.Timing.UsageRate)
	fmt.Fprintf(&b, "📈 Sharpe: %.2f\n", s.Performance.SharpeRatio)
	fmt.Fprintf(&b, "📉 Max DD: %.1f%%\n", s.Performance.MaxDrawdownPercent)
	fmt.Fprintf(&b, "💵 Прибыль/день: $%+.2f\n", s.Performance.ProfitPerDay)
	if !s.Reconciliation.Consistent {
		fmt.Fprintf(&b, "⚠️ Сверка баланса: Δ$%.2f\n", s.Reconciliation.BalanceDiff)
	}
	b.WriteString(line)
	return b.String()
}
