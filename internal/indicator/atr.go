package indicator

import "virtual_trader/internal/models"

// ATR — средний истинный диапазон (Уайлдер) по последним свечам.
// ok=false, если свечей не больше периода.
func ATR(candles []models.CandleTick, period int) (float64, bool) {
	if period <= 0 || len(candles) <= period {
		return 0, false
	}

	tr := func(i int) float64 {
		c, prev := candles[i], candles[i-1].Close
		return max(c.High-c.Low, abs(c.High-prev), abs(c.Low-prev))
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += tr(i)
	}
	atr /= float64(period)
	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + tr(i)) / float64(period)
	}
	return atr, true
}

// ATROr — ATR или pct от последней цены.
func ATROr(candles []models.CandleTick, period int, pct float64) float64 {
	if v, ok := ATR(candles, period); ok && v > 0 {
		return v
	}
	if last, ok := models.Last(candles); ok {
		return last.Close * pct
	}
	return 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
