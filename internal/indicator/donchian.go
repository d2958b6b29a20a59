package indicator

import "virtual_trader/internal/models"

// Donchian — максимум high и минимум low за period свечей перед последней.
// Последняя свеча в канал не входит: по ней проверяют пробой.
func Donchian(candles []models.CandleTick, period int) (upper, lower float64, ok bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, 0, false
	}
	window := candles[len(candles)-1-period : len(candles)-1]
	upper, lower = window[0].High, window[0].Low
	for _, c := range window[1:] {
		upper = max(upper, c.High)
		lower = min(lower, c.Low)
	}
	return upper, lower, true
}

// AvgVolume — средний объём за period свечей перед последней.
func AvgVolume(candles []models.CandleTick, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	var sum float64
	for _, c := range candles[len(candles)-1-period : len(candles)-1] {
		sum += c.Volume
	}
	return sum / float64(period), true
}
