package models

import "time"

// CandleTick — одна свеча OHLCV, по возрастанию времени.
type CandleTick struct {
	InstID       string    `json:"inst_id"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	QuoteVolume  float64   `json:"quote_volume"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TimeframeRaw string    `json:"timeframe"`
}

// Last возвращает последнюю свечу; ok=false для пустого набора.
func Last(candles []CandleTick) (CandleTick, bool) {
	if len(candles) == 0 {
		return CandleTick{}, false
	}
	return candles[len(candles)-1], true
}

func Closes(candles []CandleTick) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
