package timing

import (
	"fmt"
	"strings"
	"time"

	"virtual_trader/internal/indicator"
	"virtual_trader/internal/models"
)

const (
	pullbackDistance     = 0.005 // откат 0.5% от цены сигнала
	pullbackTolerance    = 0.002 // допуск касания цели
	breakoutOffset       = 0.002 // пробой +-0.2%
	breakoutVolumeFactor = 1.2
	emaBand              = 0.003 // цена в пределах 0.3% от EMA20
	emaPeriod            = 20
	bandLookback         = 4
	mlConfidence         = 0.8
	trendRSIBuy          = 60
	trendRSISell         = 40
	defaultMaxAttempts   = 3
)

type params struct {
	maxWait  time.Duration
	required int
}

var strategyParams = map[models.TimingType]params{
	models.TimingImmediate: {maxWait: 5 * time.Minute, required: 1},
	models.TimingPullback:  {maxWait: 60 * time.Minute, required: 2},
	models.TimingBreakout:  {maxWait: 30 * time.Minute, required: 2},
}

// SelectStrategy выбирает стратегию входа один раз, при постановке в очередь.
func SelectStrategy(sig models.Signal) models.TimingType {
	if sig.TimingHint.Valid() {
		return sig.TimingHint
	}
	st := strings.ToLower(sig.SignalType)

	switch {
	case strings.Contains(st, "extreme_rsi"):
		return models.TimingImmediate
	case strings.HasPrefix(st, "ml_") && sig.Confidence > mlConfidence:
		return models.TimingPullback
	case strings.Contains(st, "strict"):
		return models.TimingPullback
	case strings.Contains(st, "breakout"):
		return models.TimingBreakout
	case sig.RSI > 0 && sig.Side == models.SideBuy && sig.RSI > trendRSIBuy:
		return models.TimingBreakout
	case sig.RSI > 0 && sig.Side == models.SideSell && sig.RSI < trendRSISell:
		return models.TimingBreakout
	}
	return models.TimingPullback
}

func targetPrice(tt models.TimingType, side models.Side, price float64) float64 {
	switch tt {
	case models.TimingPullback:
		// покупка ждёт отката вниз, продажа — отскока вверх
		return price * (1 - side.Sign()*pullbackDistance)
	case models.TimingBreakout:
		return price * (1 + side.Sign()*breakoutOffset)
	}
	return price
}

// Decision — итог одной проверки ожидающего входа.
type Decision struct {
	Enter         bool
	Price         float64
	Reason        string
	Confirmations int
}

// Evaluate — чистая функция: решение по последним свечам, без изменения entry.
func Evaluate(p *PendingEntry, candles []models.CandleTick) Decision {
	last, ok := models.Last(candles)
	if !ok {
		return Decision{Reason: "no_data"}
	}
	price := last.Close

	switch p.Type {
	case models.TimingImmediate:
		return Decision{Enter: true, Price: price, Reason: "immediate_entry", Confirmations: 1}
	case models.TimingPullback:
		return evaluatePullback(p, candles, price)
	case models.TimingBreakout:
		return evaluateBreakout(p, candles, price)
	}
	return Decision{Price: price, Reason: "no_conditions"}
}

func tail(c []models.CandleTick, n int) []models.CandleTick {
	if len(c) <= n {
		return c
	}
	return c[len(c)-n:]
}

func evaluatePullback(p *PendingEntry, candles []models.CandleTick, price float64) Decision {
	// при нехватке истории EMA20 по умолчанию равна текущей цене
	ema := indicator.EMAOr(models.Closes(candles), emaPeriod, price)
	recent := tail(candles, bandLookback)
	n := len(recent)
	buy := p.Side == models.SideBuy

	reached := false
	for _, c := range recent {
		if buy && c.Low <= p.TargetPrice*(1+p.Tolerance) {
			reached = true
		}
		if !buy && c.High >= p.TargetPrice*(1-p.Tolerance) {
			reached = true
		}
	}

	conf := 0
	// 1. цена у EMA20 с выгодной стороны
	if buy && price <= ema*(1+emaBand) || !buy && price >= ema*(1-emaBand) {
		conf++
	}
	if n >= 2 {
		cur, prev := recent[n-1], recent[n-2]
		// 2. объём растёт
		if cur.Volume > prev.Volume {
			conf++
		}
		// 3. разворот по трём закрытиям
		if n >= 3 {
			prev2 := recent[n-3]
			if buy && cur.Close > prev.Close && prev.Close < prev2.Close {
				conf++
			}
			if !buy && cur.Close < prev.Close && prev.Close > prev2.Close {
				conf++
			}
		}
		// 4. нет нового экстремума против позиции
		if buy && cur.Low > prev.Low || !buy && cur.High < prev.High {
			conf++
		}
	}

	if reached && conf >= p.RequiredConfirmations {
		return Decision{
			Enter:         true,
			Price:         price,
			Reason:        fmt.Sprintf("pullback_%s_confirmed_%d", p.Side, conf),
			Confirmations: conf,
		}
	}
	return Decision{Price: price, Reason: "pullback_waiting", Confirmations: conf}
}

func evaluateBreakout(p *PendingEntry, candles []models.CandleTick, price float64) Decision {
	crossed := price >= p.TargetPrice
	if p.Side == models.SideSell {
		crossed = price <= p.TargetPrice
	}

	volume := false
	if n := len(candles); n >= 2 {
		volume = candles[n-1].Volume > candles[n-2].Volume*breakoutVolumeFactor
	}

	conf := 0
	if crossed {
		conf++
	}
	if volume {
		conf++
	}
	if crossed && volume {
		return Decision{
			Enter:         true,
			Price:         price,
			Reason:        fmt.Sprintf("breakout_%s_confirmed", p.Side),
			Confirmations: conf,
		}
	}
	return Decision{Price: price, Reason: "breakout_waiting", Confirmations: conf}
}
