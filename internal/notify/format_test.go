package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual_trader/internal/models"
)

type capture struct{ msgs []string }

func (c *capture) Send(msg string)                  { c.msgs = append(c.msgs, msg) }
func (c *capture) Sendf(format string, args ...any) {}

func openPosition(t *testing.T, timing *models.TimingInfo) *models.Position {
	t.Helper()
	sig := models.Signal{
		Symbol: "BTCUSDT", Side: models.SideBuy, Price: 50000, Confidence: 0.82,
		StopLoss: 48000, TakeProfit: [3]float64{52000, 54000, 56000}, RiskReward: 1,
		Timing: timing,
	}
	p, err := models.NewPosition(sig, 200, time.Now())
	require.NoError(t, err)
	return p
}

func TestFormatEntry_FixedFields(t *testing.T) {
	p := openPosition(t, &models.TimingInfo{
		OriginalSignalPrice: 50250,
		TimingType:          models.TimingPullback,
		WaitTimeMinutes:     12.5,
		Confirmations:       3,
		EntryReason:         "pullback_buy_confirmed_3",
	})
	msg := FormatEntry(p)

	for _, want := range []string{
		"BTCUSDT", "BUY",
		"Цена входа: 50000.00000",
		"Stop Loss: 48000.00000",
		"TP1: 52000.00000", "TP2: 54000.00000", "TP3: 56000.00000",
		"R:R: 1.00", "Уверенность: 82%",
		"Timing: pullback", "Ожидание: 12.5 мин", "pullback_buy_confirmed_3",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestEvents_ExitMessages(t *testing.T) {
	c := &capture{}
	e := NewEvents(c)
	p := openPosition(t, nil)

	fill, err := p.ApplyExit(models.ExitEvent{Reason: models.ExitTP1, Price: 52000}, time.Now())
	require.NoError(t, err)
	e.OnExit(p, models.NewClosedTrade("1", p, fill))

	fill, err = p.ApplyExit(models.ExitEvent{Reason: models.ExitStopLoss, Price: 50000}, time.Now())
	require.NoError(t, err)
	e.OnExit(p, models.NewClosedTrade("2", p, fill))

	require.Len(t, c.msgs, 2)
	assert.Contains(t, c.msgs[0], "P&L: $+4.00")
	assert.Contains(t, c.msgs[0], "безубыток")
	assert.Contains(t, c.msgs[1], "Позиция закрыта, итог $+4.00")
}
