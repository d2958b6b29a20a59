package timing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

type fakeCandles struct {
	bySymbol map[string][]models.CandleTick
	calls    map[string]int
	panicOn  string
}

func newFakeCandles() *fakeCandles {
	return &fakeCandles{bySymbol: map[string][]models.CandleTick{}, calls: map[string]int{}}
}

func (f *fakeCandles) GetOHLCV(_ context.Context, symbol string, _, _ int) []models.CandleTick {
	f.calls[symbol]++
	if symbol == f.panicOn {
		panic("feed broken")
	}
	return f.bySymbol[symbol]
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager() (*Manager, *clock) {
	c := &clock{t: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	m := NewManager(Config{}, logger.Nop())
	m.SetClock(c.now)
	return m, c
}

func signal(symbol string, side models.Side, price float64, st string) models.Signal {
	sl := price * (1 - side.Sign()*0.02)
	return models.Signal{
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		Confidence: 0.7,
		StopLoss:   sl,
		TakeProfit: [3]float64{
			price * (1 + side.Sign()*0.03),
			price * (1 + side.Sign()*0.06),
			price * (1 + side.Sign()*0.10),
		},
		RiskReward: 1.5,
		SignalType: st,
	}
}

func bar(o, h, l, c, v float64) models.CandleTick {
	return models.CandleTick{Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		name string
		sig  models.Signal
		want models.TimingType
	}{
		{"extreme rsi", signal("A", models.SideBuy, 1, "extreme_rsi_oversold"), models.TimingImmediate},
		{"ml confident", func() models.Signal {
			s := signal("A", models.SideBuy, 1, "ml_gbm")
			s.Confidence = 0.85
			return s
		}(), models.TimingPullback},
		{"strict", signal("A", models.SideSell, 1, "strict_ema"), models.TimingPullback},
		{"breakout type", signal("A", models.SideBuy, 1, "volume_breakout"), models.TimingBreakout},
		{"trend rsi buy", func() models.Signal {
			s := signal("A", models.SideBuy, 1, "ema_cross")
			s.RSI = 65
			return s
		}(), models.TimingBreakout},
		{"trend rsi sell", func() models.Signal {
			s := signal("A", models.SideSell, 1, "ema_cross")
			s.RSI = 35
			return s
		}(), models.TimingBreakout},
		{"rsi unknown", signal("A", models.SideSell, 1, "ema_cross"), models.TimingPullback},
		{"hint wins", func() models.Signal {
			s := signal("A", models.SideBuy, 1, "extreme_rsi")
			s.TimingHint = models.TimingBreakout
			return s
		}(), models.TimingBreakout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SelectStrategy(tc.sig))
		})
	}
}

func TestEnqueue_DeadlineFollowsStrategy(t *testing.T) {
	m, c := newTestManager()

	p, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "volume_breakout"))
	require.NoError(t, err)
	assert.Equal(t, models.TimingBreakout, p.Type)
	assert.Equal(t, c.t.Add(30*time.Minute), p.Deadline)
	assert.InDelta(t, 100.2, p.TargetPrice, 1e-9)
	assert.Equal(t, 2, p.RequiredConfirmations)

	p, err = m.Enqueue(signal("ETHUSDT", models.SideSell, 100, "strict"))
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(60*time.Minute), p.Deadline)
	assert.InDelta(t, 100.5, p.TargetPrice, 1e-9)
}

func TestEnqueue_ReplacesSameSymbol(t *testing.T) {
	m, _ := newTestManager()

	_, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "strict"))
	require.NoError(t, err)
	_, err = m.Enqueue(signal("BTCUSDT", models.SideSell, 101, "strict"))
	require.NoError(t, err)

	assert.Equal(t, 1, m.Len())
	p, ok := m.Pending("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, models.SideSell, p.Side)
	assert.Equal(t, 1, m.Stats().Replaced)
}

func TestEnqueue_RejectsInvalid(t *testing.T) {
	m, _ := newTestManager()
	s := signal("BTCUSDT", models.SideBuy, 100, "strict")
	s.Price = 0
	_, err := m.Enqueue(s)
	require.Error(t, err)
	assert.Zero(t, m.Len())
}

func TestCheck_ImmediateEntersOnNextPoll(t *testing.T) {
	m, c := newTestManager()
	src := newFakeCandles()
	src.bySymbol["BTCUSDT"] = []models.CandleTick{bar(100, 101, 99, 100.5, 10)}

	_, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "extreme_rsi"))
	require.NoError(t, err)
	c.advance(2 * time.Minute)

	ready := m.Check(context.Background(), src)
	require.Len(t, ready, 1)
	got := ready[0]
	assert.Equal(t, 100.5, got.Price)
	require.NotNil(t, got.Timing)
	assert.Equal(t, models.TimingImmediate, got.Timing.TimingType)
	assert.Equal(t, 100.0, got.Timing.OriginalSignalPrice)
	assert.InDelta(t, 2.0, got.Timing.WaitTimeMinutes, 1e-9)
	assert.Equal(t, "immediate_entry", got.Timing.EntryReason)
	assert.Zero(t, m.Len())

	st := m.Stats()
	assert.Equal(t, 1, st.Ready)
	assert.Equal(t, 1, st.Distribution[models.TimingImmediate])
	assert.InDelta(t, 2.0, st.AverageWaitMinutes, 1e-9)
}

func TestCheck_PullbackBuy(t *testing.T) {
	m, _ := newTestManager()
	src := newFakeCandles()
	// цель 99.5; минимум второй свечи её касается, затем разворот вверх на растущем объёме
	src.bySymbol["BTCUSDT"] = []models.CandleTick{
		bar(100, 100.2, 99.8, 100.0, 10),
		bar(100, 100.0, 99.4, 99.6, 8),
		bar(99.6, 99.9, 99.5, 99.8, 12),
	}

	_, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "strict"))
	require.NoError(t, err)

	ready := m.Check(context.Background(), src)
	require.Len(t, ready, 1)
	assert.Equal(t, 99.8, ready[0].Price)
	assert.Equal(t, models.TimingPullback, ready[0].Timing.TimingType)
	assert.GreaterOrEqual(t, ready[0].Timing.Confirmations, 2)
	assert.Contains(t, ready[0].Timing.EntryReason, "pullback_buy_confirmed")
}

func TestCheck_PullbackWaitsWithoutTouch(t *testing.T) {
	m, _ := newTestManager()
	src := newFakeCandles()
	src.bySymbol["BTCUSDT"] = []models.CandleTick{
		bar(100, 100.5, 100.0, 100.2, 10),
		bar(100.2, 100.8, 100.1, 100.6, 12),
	}

	_, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "strict"))
	require.NoError(t, err)

	assert.Empty(t, m.Check(context.Background(), src))
	p, ok := m.Pending("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 1, p.Attempts)

	// попытки только для отчёта, запись не снимается после max_attempts
	for i := 0; i < 5; i++ {
		m.Check(context.Background(), src)
	}
	_, ok = m.Pending("BTCUSDT")
	assert.True(t, ok)
}

func TestCheck_BreakoutSellNeedsVolume(t *testing.T) {
	m, _ := newTestManager()
	src := newFakeCandles()
	// цель 99.8, закрытие ниже, но объём не вырос в 1.2 раза
	src.bySymbol["ETHUSDT"] = []models.CandleTick{
		bar(100, 100, 99.5, 99.7, 10),
		bar(99.7, 99.8, 99.4, 99.5, 11),
	}
	_, err := m.Enqueue(signal("ETHUSDT", models.SideSell, 100, "breakout"))
	require.NoError(t, err)
	assert.Empty(t, m.Check(context.Background(), src))

	src.bySymbol["ETHUSDT"] = []models.CandleTick{
		bar(100, 100, 99.5, 99.7, 10),
		bar(99.7, 99.8, 99.4, 99.5, 13),
	}
	ready := m.Check(context.Background(), src)
	require.Len(t, ready, 1)
	assert.Equal(t, "breakout_sell_confirmed", ready[0].Timing.EntryReason)
	assert.Equal(t, 2, ready[0].Timing.Confirmations)
}

// Просроченная запись удаляется без запроса данных и без входа.
func TestCheck_ExpiresBeforeFetch(t *testing.T) {
	m, c := newTestManager()
	src := newFakeCandles()
	src.bySymbol["BTCUSDT"] = []models.CandleTick{bar(100, 101, 98, 99, 10)}

	_, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "strict"))
	require.NoError(t, err)
	c.advance(61 * time.Minute)

	assert.Empty(t, m.Check(context.Background(), src))
	assert.Zero(t, m.Len())
	assert.Zero(t, src.calls["BTCUSDT"])
	assert.Equal(t, 1, m.Stats().Timeouts)
}

func TestCheck_EmptyDataKeepsPending(t *testing.T) {
	m, _ := newTestManager()
	src := newFakeCandles()

	_, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "extreme_rsi"))
	require.NoError(t, err)

	assert.Empty(t, m.Check(context.Background(), src))
	assert.Equal(t, 1, m.Len())
}

func TestCheck_PanicIsolatedPerSymbol(t *testing.T) {
	m, _ := newTestManager()
	src := newFakeCandles()
	src.panicOn = "AAAUSDT"
	src.bySymbol["BBBUSDT"] = []models.CandleTick{bar(10, 10, 10, 10, 1)}

	_, err := m.Enqueue(signal("AAAUSDT", models.SideBuy, 10, "extreme_rsi"))
	require.NoError(t, err)
	_, err = m.Enqueue(signal("BBBUSDT", models.SideBuy, 10, "extreme_rsi"))
	require.NoError(t, err)

	ready := m.Check(context.Background(), src)
	require.Len(t, ready, 1)
	assert.Equal(t, "BBBUSDT", ready[0].Symbol)
	assert.Equal(t, 1, m.Stats().Errors)
	assert.Equal(t, 1, m.Len())
}

func TestCancelAndStatus(t *testing.T) {
	m, c := newTestManager()

	_, err := m.Enqueue(signal("BTCUSDT", models.SideBuy, 100, "strict"))
	require.NoError(t, err)
	c.advance(10 * time.Minute)

	st := m.PendingStatus()
	require.Len(t, st, 1)
	assert.Equal(t, "0/2", st[0].Confirmations)
	assert.Equal(t, "10.0min", st[0].TimeWaiting)
	assert.Equal(t, "50.0min", st[0].TimeRemaining)

	assert.True(t, m.Cancel("BTCUSDT", "manual"))
	assert.False(t, m.Cancel("BTCUSDT", "manual"))
	assert.Equal(t, 1, m.Stats().Cancelled)
}

func TestValidateFreshness(t *testing.T) {
	s := signal("BTCUSDT", models.SideBuy, 100, "strict")
	assert.NoError(t, ValidateFreshness(s, DefaultMaxWait, DefaultMaxDrift))

	fresh := s.WithEntry(101, models.TimingInfo{OriginalSignalPrice: 100, WaitTimeMinutes: 30})
	assert.NoError(t, ValidateFreshness(fresh, DefaultMaxWait, DefaultMaxDrift))

	drift := s.WithEntry(103, models.TimingInfo{OriginalSignalPrice: 100, WaitTimeMinutes: 30})
	assert.Error(t, ValidateFreshness(drift, DefaultMaxWait, DefaultMaxDrift))

	stale := s.WithEntry(100, models.TimingInfo{OriginalSignalPrice: 100, WaitTimeMinutes: 91})
	assert.Error(t, ValidateFreshness(stale, DefaultMaxWait, DefaultMaxDrift))
}
