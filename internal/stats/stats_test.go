package stats

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual_trader/internal/ledger"
	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

var t0 = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func part(symbol string, entry time.Time, reason models.ExitReason, pnl, notional float64) models.ClosedTrade {
	return models.ClosedTrade{
		ID:              symbol + string(reason),
		Symbol:          symbol,
		Direction:       models.SideBuy,
		EntryPrice:      100,
		EntryTime:       entry,
		ExitPrice:       100,
		ExitTime:        entry.Add(30 * time.Minute),
		ExitReason:      reason,
		PositionSizeUSD: notional,
		PnLUSD:          pnl,
		DurationMinutes: 30,
	}
}

func TestGroupTrades_TakeProfitsCollapse(t *testing.T) {
	trades := []models.ClosedTrade{
		part("BTCUSDT", t0, models.ExitTP1, 4, 100),
		part("BTCUSDT", t0, models.ExitTP2, 4, 50),
		part("BTCUSDT", t0, models.ExitTP3, 6, 50),
	}
	groups := GroupTrades(trades)
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Parts)
	assert.InDelta(t, 14, groups[0].TotalPnL, 1e-9)
	assert.InDelta(t, 7, groups[0].PnLPercent(), 1e-9)

	s := ComputeTrades(trades)
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.WinningTrades)
	assert.Equal(t, 3, s.TotalPartialExits)
	assert.Equal(t, 100.0, s.WinRate)
}

// TP1 +$4, затем безубыток $0: одна выигрышная сделка.
func TestComputeTrades_TP1ThenBreakeven(t *testing.T) {
	s := ComputeTrades([]models.ClosedTrade{
		part("BTCUSDT", t0, models.ExitTP1, 4, 100),
		part("BTCUSDT", t0, models.ExitStopLoss, 0, 100),
	})
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.WinningTrades)
	assert.InDelta(t, 4, s.TotalPnL, 1e-9)
	assert.True(t, math.IsInf(float64(s.ProfitFactor), 1))

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"profit_factor":null`)
}

func TestComputeTrades_StreaksAndFactor(t *testing.T) {
	var trades []models.ClosedTrade
	pnls := []float64{10, 5, -4, -6, -2, 8, 0}
	for i, p := range pnls {
		reason := models.ExitTP1
		if p <= 0 {
			reason = models.ExitStopLoss
		}
		trades = append(trades, part("S", t0.Add(time.Duration(i)*time.Hour), reason, p, 200))
	}
	s := ComputeTrades(trades)

	assert.Equal(t, 7, s.TotalTrades)
	assert.Equal(t, 3, s.WinningTrades)
	assert.Equal(t, 4, s.LosingTrades) // ноль считается убыточной
	assert.Equal(t, 2, s.MaxConsecutiveWins)
	assert.Equal(t, 3, s.MaxConsecutiveLosses)
	assert.InDelta(t, 23.0/12.0, float64(s.ProfitFactor), 1e-9)
	assert.InDelta(t, 10, s.LargestWin, 1e-9)
	assert.InDelta(t, -6, s.LargestLoss, 1e-9)
	assert.InDelta(t, 3, s.AverageLoss, 1e-9)
}

func TestComputeTrades_Empty(t *testing.T) {
	s := ComputeTrades(nil)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, float64(s.ProfitFactor))
}

func TestTimingPerformance_OnlyTradesWithTiming(t *testing.T) {
	pull := &models.TimingInfo{TimingType: models.TimingPullback, WaitTimeMinutes: 20}
	a := part("A", t0, models.ExitTP1, 5, 100)
	a.TimingInfo = pull
	b := part("A", t0, models.ExitStopLoss, 0, 100)
	b.TimingInfo = pull
	c := part("B", t0, models.ExitStopLoss, -4, 200)
	c.TimingInfo = &models.TimingInfo{TimingType: models.TimingBreakout, WaitTimeMinutes: 10}
	plain := part("C", t0, models.ExitTP1, 9, 100)

	an := TimingPerformance([]models.ClosedTrade{a, b, c, plain},
		TimingCounters{EntriesFromTiming: 3, ImmediateEntries: 1})

	assert.Equal(t, 75.0, an.UsageRate)
	require.Len(t, an.ByType, 2)
	p := an.ByType[models.TimingPullback]
	assert.Equal(t, 1, p.Count)
	assert.Equal(t, 100.0, p.WinRate)
	assert.InDelta(t, 20, p.AverageWaitMinutes, 1e-9)
	br := an.ByType[models.TimingBreakout]
	assert.Equal(t, 0.0, br.WinRate)
	assert.InDelta(t, -4, br.AveragePnL, 1e-9)
}

func TestPerformance_Drawdown(t *testing.T) {
	trades := []models.ClosedTrade{
		part("A", t0, models.ExitTP1, 100, 200),
		part("B", t0.Add(time.Hour), models.ExitStopLoss, -220, 200),
		part("C", t0.Add(2*time.Hour), models.ExitTP1, 50, 200),
	}
	m := Performance(trades, 10000, -70, t0, t0.Add(48*time.Hour))

	// пик 10100, дно 9880
	assert.InDelta(t, 220.0/10100*100, m.MaxDrawdownPercent, 1e-9)
	assert.InDelta(t, -35, m.ProfitPerDay, 1e-9)
	assert.InDelta(t, 1.5, m.TradesPerDay, 1e-9)
	assert.NotZero(t, m.SharpeRatio)
}

func TestReconcile(t *testing.T) {
	l := ledger.New(ledger.Config{InitialBalance: 10000, PositionSizePercent: 2, MaxExposurePercent: 20}, logger.Nop())
	sig := models.Signal{
		Symbol: "BTCUSDT", Side: models.SideSell, Price: 50000,
		StopLoss: 52000, TakeProfit: [3]float64{48000, 46000, 44000},
	}
	require.True(t, l.Reserve(200))
	p, err := models.NewPosition(sig, 200, t0)
	require.NoError(t, err)
	positions := []*models.Position{p}

	r := Reconcile(l, positions, map[string]float64{"BTCUSDT": 49000}, DefaultTolerance, logger.Nop())
	assert.True(t, r.Consistent)
	assert.InDelta(t, 10004, r.AuthoritativeBalance, 1e-9)
	assert.InDelta(t, 0, r.BalanceDiff, 1e-9)

	// резерв без позиции — рассогласование учёта
	require.True(t, l.Reserve(200))
	r = Reconcile(l, positions, nil, DefaultTolerance, logger.Nop())
	assert.False(t, r.Consistent)
	assert.InDelta(t, 200, r.InvestedDiff, 1e-9)
	assert.NotEmpty(t, r.RecentOps)
}

func TestCalculator_HistoryTrim(t *testing.T) {
	l := ledger.New(ledger.Config{InitialBalance: 1000, PositionSizePercent: 2, MaxExposurePercent: 20}, logger.Nop())
	c := NewCalculator(DefaultTolerance, logger.Nop())
	c.SetClock(func() time.Time { return t0 })

	for i := 0; i < historyCap+1; i++ {
		c.Session(Input{Ledger: l, Start: t0})
	}
	assert.Len(t, c.History(0), historyKeep)
	assert.Len(t, c.History(10), 10)

	s := c.Session(Input{Ledger: l, Start: t0})
	assert.Contains(t, PerformanceReport(s), "ОТЧЕТ О ПРОИЗВОДИТЕЛЬНОСТИ")
	assert.Equal(t, 1000.0, s.Balance.CurrentBalance)
}
