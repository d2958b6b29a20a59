package service

import (
	"context"
	"math"
	"time"

	"virtual_trader/internal/helper"
	"virtual_trader/internal/indicator"
	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

type CandleSource interface {
	GetOHLCV(ctx context.Context, symbol string, intervalMinutes, limit int) []models.CandleTick
}

// Config — параметры технического генератора сигналов.
type Config struct {
	IntervalMinutes int
	CandleLimit     int

	EMAShort  int
	EMALong   int
	RSIPeriod int
	ATRPeriod int

	// коридор RSI для строгого сигнала: buy в [15, RSIOversold], sell в [RSIOverbought, 85]
	RSIOversold    float64
	RSIOverbought  float64
	ExtremeRSILow  float64
	ExtremeRSIHigh float64

	DonchianPeriod int
	// объём свечи пробоя к среднему
	BreakoutVolume float64

	MinRR          float64
	TargetRR       float64
	MaxRiskPercent float64

	MinConfidence     float64
	Cooldown          time.Duration
	MinPriceChangePct float64
}

func (c Config) withDefaults() Config {
	def := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	deff := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&c.IntervalMinutes, 15)
	def(&c.CandleLimit, 100)
	def(&c.EMAShort, 20)
	def(&c.EMALong, 50)
	def(&c.RSIPeriod, 14)
	def(&c.ATRPeriod, 14)
	def(&c.DonchianPeriod, 20)
	deff(&c.RSIOversold, 35)
	deff(&c.RSIOverbought, 65)
	deff(&c.ExtremeRSILow, 20)
	deff(&c.ExtremeRSIHigh, 80)
	deff(&c.BreakoutVolume, 1.2)
	deff(&c.MinRR, 2.0)
	deff(&c.TargetRR, 3.0)
	deff(&c.MaxRiskPercent, 3.0)
	deff(&c.MinConfidence, 0.6)
	deff(&c.MinPriceChangePct, 0.15)
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Minute
	}
	return c
}

// Generator — технический генератор: строгий EMA/RSI, пробой канала, экстремальный RSI.
// Сигналы проходят антиспам-фильтр по символу.
type Generator struct {
	cfg  Config
	src  CandleSource
	log  *logger.Logger
	now  func() time.Time
	spam *antispam
}

func NewGenerator(cfg Config, src CandleSource, log *logger.Logger) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		cfg:  cfg,
		src:  src,
		log:  log,
		now:  time.Now,
		spam: newAntispam(cfg.Cooldown, cfg.MinPriceChangePct),
	}
}

func (g *Generator) SetClock(now func() time.Time) { g.now = now }

// Generate опрашивает свечи по каждому символу и возвращает прошедшие фильтр сигналы.
// Ошибка или паника по одному символу не мешает остальным.
func (g *Generator) Generate(ctx context.Context, symbols []string) []models.Signal {
	var out []models.Signal
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		err := helper.Guard("strategy "+sym, func() error {
			candles := g.src.GetOHLCV(ctx, sym, g.cfg.IntervalMinutes, g.cfg.CandleLimit)
			if len(candles) == 0 {
				return nil
			}
			sig, ok := g.Analyze(sym, candles)
			if !ok {
				return nil
			}
			if sig.Confidence < g.cfg.MinConfidence {
				g.log.Debug("[STRAT] %s: уверенность %.2f ниже порога", sym, sig.Confidence)
				return nil
			}
			if reason, ok := g.spam.allow(sig, g.now()); !ok {
				g.log.Debug("[STRAT] %s: антиспам: %s", sym, reason)
				return nil
			}
			g.spam.register(sig, g.now())
			out = append(out, sig)
			return nil
		})
		if err != nil {
			g.log.Error("[STRAT] %v", err)
		}
	}
	return out
}

// Analyze строит сигнал по закрытым свечам; ok=false — сетапа нет.
func (g *Generator) Analyze(symbol string, candles []models.CandleTick) (models.Signal, bool) {
	need := max(g.cfg.EMALong, g.cfg.DonchianPeriod+1, g.cfg.RSIPeriod+1)
	if len(candles) < need {
		return models.Signal{}, false
	}

	last := candles[len(candles)-1]
	price := last.Close
	closes := models.Closes(candles)

	emaS := indicator.EMAOr(closes, g.cfg.EMAShort, price)
	emaL := indicator.EMAOr(closes, g.cfg.EMALong, price)
	rsi := indicator.RSIOr(closes, g.cfg.RSIPeriod)

	var momentum float64
	if ref := closes[len(closes)-5]; ref > 0 {
		momentum = (price - ref) / ref
	}

	side, sigType, conf := g.classify(candles, price, emaS, emaL, rsi, momentum)
	if side == models.SideNone {
		return models.Signal{}, false
	}

	atr := indicator.ATROr(candles, g.cfg.ATRPeriod, 0.02)
	sl, tps, rr := g.levels(side, price, atr)

	return models.Signal{
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		Confidence: conf,
		StopLoss:   sl,
		TakeProfit: tps,
		RiskReward: rr,
		SignalType: sigType,
		Timeframe:  helper.MinutesToTF(g.cfg.IntervalMinutes),
		RSI:        rsi,
		CreatedAt:  g.now(),
	}, true
}

func (g *Generator) classify(candles []models.CandleTick, price, emaS, emaL, rsi, momentum float64) (models.Side, string, float64) {
	// строгий: откат по тренду, RSI в коридоре обязателен
	buy := []bool{price > emaS*0.998, emaS >= emaL*0.999, momentum >= -0.01}
	sell := []bool{price < emaS*1.002, emaS <= emaL*1.001, momentum <= 0.01}
	if rsi >= 15 && rsi <= g.cfg.RSIOversold {
		if score := count(buy); score >= 2 {
			return models.SideBuy, "technical_strict", strictConfidence(score, len(buy))
		}
	}
	if rsi >= g.cfg.RSIOverbought && rsi <= 85 {
		if score := count(sell); score >= 2 {
			return models.SideSell, "technical_strict", strictConfidence(score, len(sell))
		}
	}

	last := candles[len(candles)-1]
	if up, lo, ok := indicator.Donchian(candles, g.cfg.DonchianPeriod); ok {
		avgVol, _ := indicator.AvgVolume(candles, g.cfg.DonchianPeriod)
		volOK := avgVol > 0 && last.Volume > avgVol*g.cfg.BreakoutVolume
		switch {
		case volOK && price > up && emaS > emaL:
			return models.SideBuy, "breakout_up", 0.7
		case volOK && price < lo && emaS < emaL:
			return models.SideSell, "breakout_down", 0.7
		}
	}

	switch {
	case rsi < g.cfg.ExtremeRSILow && math.Abs(momentum) > 0.02:
		return models.SideBuy, "extreme_rsi_oversold", 0.65
	case rsi > g.cfg.ExtremeRSIHigh && math.Abs(momentum) > 0.02:
		return models.SideSell, "extreme_rsi_overbought", 0.65
	}
	return models.SideNone, "", 0
}

// levels: SL на один ATR от цены в пределах [0.3%, MaxRiskPercent],
// TP на MinRR, MinRR+0.75 и TargetRR рисков.
func (g *Generator) levels(side models.Side, price, atr float64) (float64, [3]float64, float64) {
	risk := atr
	risk = max(risk, price*0.003)
	risk = min(risk, price*g.cfg.MaxRiskPercent/100)

	s := side.Sign()
	sl := price - s*risk
	mult := [3]float64{g.cfg.MinRR, g.cfg.MinRR + 0.75, max(g.cfg.TargetRR, g.cfg.MinRR+0.75)}
	var tps [3]float64
	for i, m := range mult {
		tps[i] = price + s*risk*m
	}
	return sl, tps, g.cfg.MinRR
}

func strictConfidence(score, total int) float64 {
	strength := math.Min(float64(score)/float64(total)*0.7+0.3, 1)
	return math.Min(strength*0.7+0.1, 0.8)
}

func count(conds []bool) int {
	n := 0
	for _, c := range conds {
		if c {
			n++
		}
	}
	return n
}
