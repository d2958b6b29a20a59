package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

func newTestLedger() *Ledger {
	return New(Config{
		InitialBalance:      10000,
		PositionSizePercent: 2,
		MaxExposurePercent:  20,
	}, logger.Nop())
}

func openPosition(t *testing.T, l *Ledger, symbol string, side models.Side, price float64) *models.Position {
	t.Helper()
	require.True(t, l.Reserve(l.PositionSize()))
	p, err := models.NewPosition(models.Signal{
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		StopLoss:   price * 0.98,
		TakeProfit: [3]float64{price * 1.03, price * 1.06, price * 1.1},
	}, l.PositionSize(), time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return p
}

func TestLedger_Sizing(t *testing.T) {
	l := newTestLedger()

	assert.InDelta(t, 200.0, l.PositionSize(), 1e-9)
	assert.InDelta(t, 2000.0, l.MaxExposure(), 1e-9)
	assert.InDelta(t, 10000.0, l.Available(), 1e-9)
}

func TestLedger_CanOpen_InsufficientBalance(t *testing.T) {
	l := newTestLedger()
	l.available = 50

	ok, reason := l.CanOpen(nil)

	assert.False(t, ok)
	assert.Equal(t, ReasonInsufficientBalance, reason)
	assert.InDelta(t, 50.0, l.Available(), 1e-9, "no state mutated")
	assert.Zero(t, l.TotalInvested())
	assert.Empty(t, l.RecentOps())
}

func TestLedger_CanOpen_ExposureLimit(t *testing.T) {
	l := newTestLedger()

	var positions []*models.Position
	for i := 0; i < 10; i++ {
		positions = append(positions, openPosition(t, l, string(rune('A'+i))+"USDT", models.SideBuy, 100))
	}
	require.InDelta(t, 2000.0, l.InvestedCapital(positions), 1e-9)

	ok, reason := l.CanOpen(positions)

	assert.False(t, ok)
	assert.Equal(t, ReasonExposureLimit, reason)
}

func TestLedger_CanOpen_OK(t *testing.T) {
	l := newTestLedger()

	ok, reason := l.CanOpen(nil)

	assert.True(t, ok)
	assert.Equal(t, ReasonOK, reason)
}

func TestLedger_ReserveRelease(t *testing.T) {
	l := newTestLedger()

	require.True(t, l.Reserve(200))
	assert.InDelta(t, 9800.0, l.Available(), 1e-9)
	assert.InDelta(t, 200.0, l.TotalInvested(), 1e-9)

	l.Release(100, 4)
	assert.InDelta(t, 9904.0, l.Available(), 1e-9)
	assert.InDelta(t, 100.0, l.TotalInvested(), 1e-9)
	assert.InDelta(t, 4.0, l.RealizedPnL(), 1e-9)

	l.Release(100, -10)
	assert.InDelta(t, 9994.0, l.Available(), 1e-9)
	assert.InDelta(t, 0.0, l.TotalInvested(), 1e-9)
	assert.InDelta(t, -6.0, l.RealizedPnL(), 1e-9)

	assert.Empty(t, l.Validate(nil))
	assert.Len(t, l.RecentOps(), 3)
}

func TestLedger_ReserveFailsWithoutFunds(t *testing.T) {
	l := newTestLedger()

	assert.False(t, l.Reserve(20000))
	assert.False(t, l.Reserve(0))
	assert.InDelta(t, 10000.0, l.Available(), 1e-9)
}

func TestLedger_IdentityAfterManyOps(t *testing.T) {
	l := newTestLedger()

	pnls := []float64{4.123, -3.3333, 0.01, 12.5, -0.777, 1.0 / 3}
	for _, pnl := range pnls {
		require.True(t, l.Reserve(200))
		l.Release(100, pnl/2)
		l.Release(50, pnl/4)
		l.Release(50, pnl/4)
	}

	identity := l.Available() + l.TotalInvested() - (l.Initial() + l.RealizedPnL())
	assert.InDelta(t, 0.0, identity, IdentityTolerance)
	assert.Empty(t, l.Validate(nil))
}

func TestLedger_Balances(t *testing.T) {
	l := newTestLedger()
	long := openPosition(t, l, "BTCUSDT", models.SideBuy, 50000)
	short := openPosition(t, l, "ETHUSDT", models.SideSell, 2000)
	positions := []*models.Position{long, short}

	prices := map[string]float64{"BTCUSDT": 51000, "ETHUSDT": 1900}

	// long: 0.004 * 1000 = 4; short: 0.1 * 100 = 10
	assert.InDelta(t, 14.0, l.UnrealizedPnL(positions, prices), 1e-9)
	assert.InDelta(t, 400.0, l.InvestedCapital(positions), 1e-9)
	assert.InDelta(t, 10014.0, l.CurrentBalance(positions, prices), 1e-9)
	assert.InDelta(t, l.CurrentBalance(positions, prices), l.MarkToMarketBalance(positions, prices), 1e-6)

	// символ без цены не даёт вклада в нереализованный PnL
	delete(prices, "ETHUSDT")
	assert.InDelta(t, 4.0, l.UnrealizedPnL(positions, prices), 1e-9)
	assert.InDelta(t, l.CurrentBalance(positions, prices), l.MarkToMarketBalance(positions, prices), 1e-6)
}

func TestLedger_SummaryAndRisk(t *testing.T) {
	l := newTestLedger()
	var positions []*models.Position
	for i := 0; i < 10; i++ {
		positions = append(positions, openPosition(t, l, string(rune('A'+i))+"USDT", models.SideBuy, 100))
	}

	s := l.Summary(positions, nil)
	assert.InDelta(t, 20.0, s.ExposurePercent, 1e-9)
	assert.InDelta(t, 10000.0, s.CurrentBalance, 1e-9)
	assert.InDelta(t, 0.0, s.BalancePercent, 1e-9)

	risk := l.RiskLimits(positions, nil)
	assert.Equal(t, RiskMedium, risk.Level)
	assert.Len(t, risk.Warnings, 1)

	l.available = 10
	l.realized = -2500
	risk = l.RiskLimits(positions, nil)
	assert.Equal(t, RiskCritical, risk.Level)
}

func TestLedger_ValidateDetectsShareMismatch(t *testing.T) {
	l := newTestLedger()
	p := openPosition(t, l, "BTCUSDT", models.SideBuy, 50000)

	_, err := p.ApplyExit(models.ExitEvent{Reason: models.ExitTP1, Price: 52000}, time.Now())
	require.NoError(t, err)

	// резерв не освобождён — счётчик и доли позиций расходятся
	violations := l.Validate([]*models.Position{p})
	require.Len(t, violations, 1)
	assert.Equal(t, "invested_share", violations[0].Check)
	assert.InDelta(t, 100.0, violations[0].Diff, 1e-9)
}
