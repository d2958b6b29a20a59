package models

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_MarshalJSON(t *testing.T) {
	at := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	sig := Signal{
		Symbol: "BTCUSDT", Side: SideBuy, Price: 50000, Confidence: 0.7,
		StopLoss: 49000, TakeProfit: [3]float64{52000, 53000, 54000},
		RiskReward: 2, SignalType: "extreme_rsi_oversold", CreatedAt: at,
	}
	p, err := NewPosition(sig, 200, at)
	require.NoError(t, err)

	raw, err := sonic.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, sonic.Unmarshal(raw, &got))
	assert.Equal(t, "BTCUSDT", got["symbol"])
	assert.EqualValues(t, 100, got["remaining_percent"])
	assert.EqualValues(t, 49000, got["current_sl"])
	assert.Equal(t, false, got["tp1_filled"])
	assert.NotContains(t, got, "timing_info")
}
