package helper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_RecoversPanic(t *testing.T) {
	err := Guard("BTCUSDT", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BTCUSDT: panic")
}

func TestGuard_PassesError(t *testing.T) {
	want := errors.New("boom")
	assert.ErrorIs(t, Guard("x", func() error { return want }), want)
	assert.NoError(t, Guard("x", func() error { return nil }))
}

func TestMinutesToTF(t *testing.T) {
	assert.Equal(t, "15m", MinutesToTF(15))
	assert.Equal(t, "1h", MinutesToTF(60))
	assert.Equal(t, "4h", MinutesToTF(240))
	assert.Equal(t, "1d", MinutesToTF(1440))
	assert.Equal(t, "15m", MinutesToTF(0))
}

func TestPctDiff(t *testing.T) {
	assert.InDelta(t, 0.02, PctDiff(102, 100), 1e-12)
	assert.InDelta(t, 0.02, PctDiff(98, 100), 1e-12)
	assert.Zero(t, PctDiff(1, 0))
}
