package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual_trader/internal/ledger"
	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

type priceFeed map[string]float64

func (f priceFeed) GetOHLCV(_ context.Context, symbol string, _, _ int) []models.CandleTick {
	p, ok := f[symbol]
	if !ok {
		return nil
	}
	return []models.CandleTick{flat(symbol, p), flat(symbol, p)}
}

func flat(symbol string, p float64) models.CandleTick {
	return models.CandleTick{InstID: symbol, Open: p, High: p, Low: p, Close: p}
}

type recordingSink struct {
	opened int
	exits  []models.ClosedTrade
}

func (r *recordingSink) OnOpen(*models.Position) { r.opened++ }
func (r *recordingSink) OnExit(_ *models.Position, t models.ClosedTrade) {
	r.exits = append(r.exits, t)
}

func newTestManager() (*Manager, *ledger.Ledger) {
	l := ledger.New(ledger.Config{
		InitialBalance:      10000,
		PositionSizePercent: 2,
		MaxExposurePercent:  20,
	}, logger.Nop())
	m := NewManager(l, logger.Nop())
	at := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return at })
	return m, l
}

func btcBuy() models.Signal {
	return models.Signal{
		Symbol:     "BTCUSDT",
		Side:       models.SideBuy,
		Price:      50000,
		Confidence: 0.8,
		StopLoss:   48000,
		TakeProfit: [3]float64{52000, 54000, 56000},
		RiskReward: 1,
		SignalType: "strict",
	}
}

// TP1, затем стоп в безубытке: две записи, позиция удалена, баланс +$4.
func TestLifecycle_TP1ThenBreakeven(t *testing.T) {
	m, l := newTestManager()
	sink := &recordingSink{}
	m.AddSink(sink)
	ctx := context.Background()

	p, res := m.Open(btcBuy())
	require.Equal(t, Opened, res)
	assert.InDelta(t, 0.004, p.Quantity, 1e-12)
	assert.InDelta(t, 9800, l.Available(), 1e-9)

	trades := m.CheckExits(ctx, priceFeed{"BTCUSDT": 52000})
	require.Len(t, trades, 1)
	tp1 := trades[0]
	assert.Equal(t, models.ExitTP1, tp1.ExitReason)
	assert.InDelta(t, 0.002, tp1.QuantityClosed, 1e-12)
	assert.InDelta(t, 4.0, tp1.PnLUSD, 1e-9)
	assert.InDelta(t, 4.0, tp1.PnLPercent, 1e-9)
	assert.InDelta(t, 9800+100+4, l.Available(), 1e-9)
	assert.Equal(t, 50000.0, p.CurrentSL())
	assert.True(t, p.SLMovedToBreakeven())
	assert.Equal(t, 50, p.RemainingPercent())

	trades = m.CheckExits(ctx, priceFeed{"BTCUSDT": 50000})
	require.Len(t, trades, 1)
	assert.Equal(t, models.ExitStopLoss, trades[0].ExitReason)
	assert.InDelta(t, 0, trades[0].PnLUSD, 1e-9)
	assert.False(t, m.Has("BTCUSDT"))

	assert.InDelta(t, 10004, l.Available(), 1e-9)
	assert.InDelta(t, 0, l.TotalInvested(), 1e-9)
	assert.Len(t, m.ClosedTrades(), 2)
	assert.Len(t, sink.exits, 2)
	assert.Equal(t, 1, sink.opened)
	assert.Empty(t, l.Validate(m.Positions()))
}

func TestLifecycle_AllTakeProfits(t *testing.T) {
	m, l := newTestManager()
	ctx := context.Background()
	_, res := m.Open(btcBuy())
	require.Equal(t, Opened, res)

	// цена сразу выше TP3, но за опрос срабатывает только одно событие
	feed := priceFeed{"BTCUSDT": 57000}
	for i, want := range []models.ExitReason{models.ExitTP1, models.ExitTP2, models.ExitTP3} {
		trades := m.CheckExits(ctx, feed)
		require.Len(t, trades, 1, "poll %d", i)
		assert.Equal(t, want, trades[0].ExitReason)
	}
	assert.False(t, m.Has("BTCUSDT"))
	assert.Empty(t, m.CheckExits(ctx, feed))

	// исполнение по уровням: 0.002×2000 + 0.001×4000 + 0.001×6000
	assert.InDelta(t, 14, l.RealizedPnL(), 1e-9)
	assert.InDelta(t, 10014, l.Available(), 1e-9)
}

func TestLifecycle_RemainingPercentNeverIncreases(t *testing.T) {
	m, _ := newTestManager()
	p, res := m.Open(btcBuy())
	require.Equal(t, Opened, res)

	prev := p.RemainingPercent()
	for _, price := range []float64{51000, 52500, 53000, 54100, 53000, 55000, 56500} {
		_, _, err := m.Apply(p, flat(p.Symbol, price))
		require.NoError(t, err)
		cur := p.RemainingPercent()
		assert.LessOrEqual(t, cur, prev)
		assert.Contains(t, []int{100, 50, 25, 0}, cur)
		prev = cur
	}
}

func TestEvaluateExit_StopWinsTie(t *testing.T) {
	p, err := models.NewPosition(btcBuy(), 200, time.Now())
	require.NoError(t, err)

	// бар задевает и стоп снизу, и TP1 сверху
	bar := models.CandleTick{Open: 50200, High: 52500, Low: 47500, Close: 50100}
	ev, ok := EvaluateExit(p, bar)
	require.True(t, ok)
	assert.Equal(t, models.ExitStopLoss, ev.Reason)
	assert.Equal(t, 48000.0, ev.Price)
}

func TestEvaluateExit_SellSide(t *testing.T) {
	sig := models.Signal{
		Symbol:     "ETHUSDT",
		Side:       models.SideSell,
		Price:      2000,
		StopLoss:   2100,
		TakeProfit: [3]float64{1900, 1800, 1700},
	}
	p, err := models.NewPosition(sig, 200, time.Now())
	require.NoError(t, err)

	_, ok := EvaluateExit(p, flat("ETHUSDT", 1950))
	assert.False(t, ok)

	ev, ok := EvaluateExit(p, models.CandleTick{High: 1960, Low: 1890, Close: 1920})
	require.True(t, ok)
	assert.Equal(t, models.ExitTP1, ev.Reason)
	assert.Equal(t, 1900.0, ev.Price)

	ev, ok = EvaluateExit(p, models.CandleTick{High: 2150, Low: 2050, Close: 2060})
	require.True(t, ok)
	assert.Equal(t, models.ExitStopLoss, ev.Reason)
	assert.Equal(t, 2100.0, ev.Price)

	fill, err := p.ApplyExit(ev, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100, fill.Percent)
	assert.InDelta(t, -10.0, fill.PnLUSD, 1e-9) // 0.1 ETH × −100
	assert.True(t, p.Closed())
}

func TestOpen_Rejections(t *testing.T) {
	m, l := newTestManager()

	_, res := m.Open(btcBuy())
	require.Equal(t, Opened, res)
	_, res = m.Open(btcBuy())
	assert.Equal(t, AlreadyOpen, res)

	bad := btcBuy()
	bad.Symbol = "XRPUSDT"
	bad.StopLoss = 0
	_, res = m.Open(bad)
	assert.Equal(t, InvalidSignal, res)

	for i := 0; i < 9; i++ {
		s := btcBuy()
		s.Symbol = string(rune('A'+i)) + "USDT"
		_, res = m.Open(s)
		require.Equal(t, Opened, res)
	}
	s := btcBuy()
	s.Symbol = "ZZZUSDT"
	availableBefore := l.Available()
	_, res = m.Open(s)
	assert.Equal(t, ExposureLimit, res)
	assert.Equal(t, availableBefore, l.Available())
	assert.Len(t, m.Positions(), 10)
}

func TestCheckExits_NoDataKeepsPosition(t *testing.T) {
	m, _ := newTestManager()
	_, res := m.Open(btcBuy())
	require.Equal(t, Opened, res)

	assert.Empty(t, m.CheckExits(context.Background(), priceFeed{}))
	assert.True(t, m.Has("BTCUSDT"))
}

func TestSummaries(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	_, res := m.Open(btcBuy())
	require.Equal(t, Opened, res)
	m.CheckExits(ctx, priceFeed{"BTCUSDT": 52000})

	ps := m.PositionsSummary()
	assert.Equal(t, 1, ps.Total)
	assert.Equal(t, 1, ps.Long)
	assert.InDelta(t, 100, ps.InvestedUSD, 1e-9)
	require.Len(t, ps.Statuses, 1)
	assert.Equal(t, "BTCUSDT BUY TP1✓ SL→BE (50% остается)", ps.Statuses[0])

	closed := m.ClosedTrades()
	require.Len(t, closed, 1)
	assert.InDelta(t, 4, closed[0].PnLUSD, 1e-9)
}
