package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

type ExitReason string

const (
	ExitTP1      ExitReason = "TP1"
	ExitTP2      ExitReason = "TP2"
	ExitTP3      ExitReason = "TP3"
	ExitStopLoss ExitReason = "Stop Loss"
)

// доли исходного объёма, закрываемые на TP1/TP2/TP3
var tpClosePercent = [3]int{50, 25, 25}

var (
	ErrPositionClosed = errors.New("position already closed")
	ErrExitOrder      = errors.New("take profit out of order")
)

// ExitEvent — сработавшее условие выхода.
type ExitEvent struct {
	Reason ExitReason
	Price  float64
}

// Fill — результат частичного или полного закрытия.
type Fill struct {
	Reason      ExitReason
	Price       float64
	Percent     int
	Quantity    float64
	NotionalUSD float64
	PnLUSD      float64
	PnLPercent  float64
	At          time.Time
}

// Position — открытая виртуальная позиция.
// Экспортируемые поля задаются при открытии и дальше не меняются,
// изменяемое состояние меняется только через ApplyExit и Track.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	EntryTime  time.Time
	SizeUSD    float64
	Quantity   float64
	StopLoss   float64
	TakeProfit [3]float64
	Confidence float64
	RiskReward float64
	SignalType string
	Timing     *TimingInfo

	currentSL   float64
	filled      [3]bool
	slAtBE      bool
	stopped     bool
	realizedPnL float64
	maxProfit   float64
	maxLoss     float64
}

func NewPosition(sig Signal, sizeUSD float64, at time.Time) (*Position, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	if sizeUSD <= 0 {
		return nil, fmt.Errorf("position %s: size must be positive, got %v", sig.Symbol, sizeUSD)
	}
	return &Position{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		EntryPrice: sig.Price,
		EntryTime:  at,
		SizeUSD:    sizeUSD,
		Quantity:   sizeUSD / sig.Price,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Confidence: sig.Confidence,
		RiskReward: sig.RiskReward,
		SignalType: sig.SignalType,
		Timing:     sig.Timing.Clone(),
		currentSL:  sig.StopLoss,
	}, nil
}

func (p *Position) CurrentSL() float64 { return p.currentSL }
func (p *Position) TP1Filled() bool { return p.filled[0] }
func (p *Position) TP2Filled() bool { return p.filled[1] }
func (p *Position) TP3Filled() bool { return p.filled[2] }
func (p *Position) SLMovedToBreakeven() bool { return p.slAtBE }
func (p *Position) StoppedOut() bool { return p.stopped }
func (p *Position) RealizedPnL() float64 { return p.realizedPnL }
func (p *Position) MaxProfitUSD() float64 { return p.maxProfit }
func (p *Position) MaxLossUSD() float64 { return p.maxLoss }
func (p *Position) Closed() bool { return p.stopped || p.RemainingPercent() == 0 }
func (p *Position) RemainingQuantity() float64 { return p.Quantity * float64(p.RemainingPercent()) / 100 }

// RemainingPercent = 100 − 50·tp1 − 25·tp2 − 25·tp3.
func (p *Position) RemainingPercent() int {
	pct := 100
	for i, f := range p.filled {
		if f {
			pct -= tpClosePercent[i]
		}
	}
	return pct
}

// InvestedShare — доля резерва, которая ещё не освобождена.
func (p *Position) InvestedShare() float64 {
	if p.stopped {
		return 0
	}
	return p.SizeUSD * float64(p.RemainingPercent()) / 100
}

func (p *Position) UnrealizedPnL(mark float64) float64 {
	if p.stopped {
		return 0
	}
	return p.RemainingQuantity() * (mark - p.EntryPrice) * p.Side.Sign()
}

// MarketValue — стоимость остатка по рынку: для лонга qty×mark,
// для шорта залог плюс результат шорта, qty×(2·entry − mark).
func (p *Position) MarketValue(mark float64) float64 {
	if p.stopped {
		return 0
	}
	qty := p.RemainingQuantity()
	if p.Side == SideSell {
		return qty*2*p.EntryPrice - qty*mark
	}
	return qty * mark
}

// Track обновляет максимумы прибыли/убытка по остатку.
func (p *Position) Track(mark float64) {
	if mark <= 0 || p.Closed() {
		return
	}
	u := p.UnrealizedPnL(mark)
	if u > p.maxProfit {
		p.maxProfit = u
	}
	if u < p.maxLoss {
		p.maxLoss = u
	}
}

// ApplyExit — единственная точка изменения долей позиции.
// TP1 переносит стоп в безубыток, стоп-лосс закрывает весь остаток.
func (p *Position) ApplyExit(ev ExitEvent, at time.Time) (fill Fill, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Position.ApplyExit %s %s: %w", p.Symbol, ev.Reason, err)
		}
	}()

	if p.Closed() {
		return Fill{}, ErrPositionClosed
	}

	var pct int
	switch ev.Reason {
	case ExitStopLoss:
		pct = p.RemainingPercent()
	case ExitTP1:
		if p.filled[0] {
			return Fill{}, ErrExitOrder
		}
		pct = tpClosePercent[0]
	case ExitTP2:
		if !p.filled[0] || p.filled[1] {
			return Fill{}, ErrExitOrder
		}
		pct = tpClosePercent[1]
	case ExitTP3:
		if !p.filled[1] || p.filled[2] {
			return Fill{}, ErrExitOrder
		}
		pct = tpClosePercent[2]
	default:
		return Fill{}, fmt.Errorf("unknown exit reason %q", ev.Reason)
	}

	qty := p.Quantity * float64(pct) / 100
	pnl := qty * (ev.Price - p.EntryPrice) * p.Side.Sign()
	notional := p.SizeUSD * float64(pct) / 100
	pnlPct := 0.0
	if notional > 0 {
		pnlPct = pnl / notional * 100
	}

	switch ev.Reason {
	case ExitStopLoss:
		p.stopped = true
	case ExitTP1:
		p.filled[0] = true
		p.currentSL = p.EntryPrice
		p.slAtBE = true
	case ExitTP2:
		p.filled[1] = true
	case ExitTP3:
		p.filled[2] = true
	}
	p.realizedPnL += pnl

	return Fill{
		Reason:      ev.Reason,
		Price:       ev.Price,
		Percent:     pct,
		Quantity:    qty,
		NotionalUSD: notional,
		PnLUSD:      pnl,
		PnLPercent:  pnlPct,
		At:          at,
	}, nil
}

// StatusSummary, например "BTCUSDT BUY TP1✓ SL→BE (50% остается)".
func (p *Position) StatusSummary() string {
	var b strings.Builder
	b.WriteString(p.Symbol + " " + p.Side.Upper())
	for i, f := range p.filled {
		if f {
			fmt.Fprintf(&b, " TP%d✓", i+1)
		}
	}
	if p.slAtBE {
		b.WriteString(" SL→BE")
	}
	if rem := p.RemainingPercent(); rem > 0 && !p.stopped {
		fmt.Fprintf(&b, " (%d%% остается)", rem)
	}
	return b.String()
}

type positionJSON struct {
	Symbol             string      `json:"symbol"`
	Direction          Side        `json:"direction"`
	EntryPrice         float64     `json:"entry_price"`
	EntryTime          time.Time   `json:"entry_time"`
	PositionSizeUSD    float64     `json:"position_size_usd"`
	Quantity           float64     `json:"quantity"`
	RemainingQuantity  float64     `json:"remaining_quantity"`
	RemainingPercent   int         `json:"remaining_percent"`
	StopLoss           float64     `json:"stop_loss"`
	CurrentSL          float64     `json:"current_sl"`
	TP1                float64     `json:"tp1"`
	TP2                float64     `json:"tp2"`
	TP3                float64     `json:"tp3"`
	TP1Filled          bool        `json:"tp1_filled"`
	TP2Filled          bool        `json:"tp2_filled"`
	TP3Filled          bool        `json:"tp3_filled"`
	SLMovedToBreakeven bool        `json:"sl_moved_to_breakeven"`
	RealizedPnL        float64     `json:"realized_pnl"`
	MaxProfitUSD       float64     `json:"max_profit_usd"`
	MaxLossUSD         float64     `json:"max_loss_usd"`
	Confidence         float64     `json:"confidence"`
	RiskReward         float64     `json:"risk_reward"`
	SignalType         string      `json:"signal_type"`
	Status             string      `json:"status"`
	TimingInfo         *TimingInfo `json:"timing_info,omitempty"`
}

func (p *Position) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(positionJSON{
		Symbol:             p.Symbol,
		Direction:          p.Side,
		EntryPrice:         p.EntryPrice,
		EntryTime:          p.EntryTime,
		PositionSizeUSD:    p.SizeUSD,
		Quantity:           p.Quantity,
		RemainingQuantity:  p.RemainingQuantity(),
		RemainingPercent:   p.RemainingPercent(),
		StopLoss:           p.StopLoss,
		CurrentSL:          p.currentSL,
		TP1:                p.TakeProfit[0],
		TP2:                p.TakeProfit[1],
		TP3:                p.TakeProfit[2],
		TP1Filled:          p.filled[0],
		TP2Filled:          p.filled[1],
		TP3Filled:          p.filled[2],
		SLMovedToBreakeven: p.slAtBE,
		RealizedPnL:        p.realizedPnL,
		MaxProfitUSD:       p.maxProfit,
		MaxLossUSD:         p.maxLoss,
		Confidence:         p.Confidence,
		RiskReward:         p.RiskReward,
		SignalType:         p.SignalType,
		Status:             p.StatusSummary(),
		TimingInfo:         p.Timing,
	})
}
