package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

type fakeCandles struct {
	data    map[string][]models.CandleTick
	panicOn string
}

func (f *fakeCandles) GetOHLCV(_ context.Context, symbol string, _, _ int) []models.CandleTick {
	if symbol == f.panicOn {
		panic("boom")
	}
	return f.data[symbol]
}

var t0 = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

// rising: плавный рост, последняя свеча пробивает канал на тройном объёме.
func rising() []models.CandleTick {
	out := make([]models.CandleTick, 60)
	for i := range out {
		c := 100 + float64(i)*0.1
		out[i] = models.CandleTick{Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 10}
	}
	last := &out[len(out)-1]
	last.Close, last.High, last.Volume = 110, 110.5, 30
	return out
}

// falling: минус 1% за свечу, объём ровный.
func falling() []models.CandleTick {
	out := make([]models.CandleTick, 60)
	for i := range out {
		c := 100 * math.Pow(0.99, float64(i))
		out[i] = models.CandleTick{Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return out
}

func newGen(src CandleSource) *Generator {
	g := NewGenerator(Config{}, src, logger.Nop())
	g.SetClock(func() time.Time { return t0 })
	return g
}

func TestAnalyze_BreakoutUp(t *testing.T) {
	g := newGen(nil)
	sig, ok := g.Analyze("SOLUSDT", rising())
	require.True(t, ok)

	assert.Equal(t, models.SideBuy, sig.Side)
	assert.Equal(t, "breakout_up", sig.SignalType)
	assert.Equal(t, 110.0, sig.Price)
	assert.Equal(t, "15m", sig.Timeframe)
	require.NoError(t, sig.Validate())

	risk := sig.Price - sig.StopLoss
	assert.Greater(t, risk, 0.0)
	assert.LessOrEqual(t, risk, sig.Price*0.03+1e-9)
	assert.InDelta(t, sig.Price+2*risk, sig.TakeProfit[0], 1e-9)
	assert.InDelta(t, sig.Price+2.75*risk, sig.TakeProfit[1], 1e-9)
	assert.InDelta(t, sig.Price+3*risk, sig.TakeProfit[2], 1e-9)
	assert.Equal(t, 2.0, sig.RiskReward)
}

func TestAnalyze_ExtremeRSI(t *testing.T) {
	g := newGen(nil)
	sig, ok := g.Analyze("DOGEUSDT", falling())
	require.True(t, ok)

	assert.Equal(t, models.SideBuy, sig.Side)
	assert.Equal(t, "extreme_rsi_oversold", sig.SignalType)
	assert.Equal(t, 0.65, sig.Confidence)
	assert.Less(t, sig.RSI, 20.0)
	assert.Less(t, sig.StopLoss, sig.Price)
}

func TestAnalyze_NotEnoughCandles(t *testing.T) {
	g := newGen(nil)
	_, ok := g.Analyze("SOLUSDT", rising()[:30])
	assert.False(t, ok)
}

func TestGenerate_AntispamAndIsolation(t *testing.T) {
	src := &fakeCandles{
		data: map[string][]models.CandleTick{
			"SOLUSDT":  rising(),
			"DOGEUSDT": falling(),
		},
		panicOn: "BADUSDT",
	}
	now := t0
	g := newGen(src)
	g.SetClock(func() time.Time { return now })

	sigs := g.Generate(context.Background(), []string{"BADUSDT", "SOLUSDT", "EMPTYUSDT", "DOGEUSDT"})
	require.Len(t, sigs, 2)
	assert.Equal(t, "SOLUSDT", sigs[0].Symbol)
	assert.Equal(t, "DOGEUSDT", sigs[1].Symbol)
	assert.True(t, t0.Equal(sigs[0].CreatedAt))

	// тот же сетап сразу же режется кулдауном
	assert.Empty(t, g.Generate(context.Background(), []string{"SOLUSDT"}))

	// после кулдауна цена та же — всё ещё дубль
	now = now.Add(31 * time.Minute)
	assert.Empty(t, g.Generate(context.Background(), []string{"SOLUSDT"}))
}

func TestAntispam_Rules(t *testing.T) {
	a := newAntispam(30*time.Minute, 0.15)
	buy := models.Signal{Symbol: "BTCUSDT", Side: models.SideBuy, Price: 50000}
	a.register(buy, t0)

	_, ok := a.allow(buy, t0.Add(10*time.Minute))
	assert.False(t, ok)

	sell := buy
	sell.Side, sell.Price = models.SideSell, 51000
	_, ok = a.allow(sell, t0.Add(45*time.Minute))
	assert.False(t, ok, "разворот требует двойного кулдауна")
	_, ok = a.allow(sell, t0.Add(61*time.Minute))
	assert.True(t, ok)

	moved := buy
	moved.Price = 50500
	_, ok = a.allow(moved, t0.Add(31*time.Minute))
	assert.True(t, ok)
}
