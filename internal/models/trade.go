package models

import (
	"fmt"
	"time"
)

// ClosedTrade — запись журнала на каждое частичное или полное закрытие.
// Несколько записей с одинаковым (symbol, entry_time, direction) — одна логическая сделка.
type ClosedTrade struct {
	ID              string      `json:"id"`
	Symbol          string      `json:"symbol"`
	Direction       Side        `json:"direction"`
	EntryPrice      float64     `json:"entry_price"`
	EntryTime       time.Time   `json:"entry_time"`
	ExitPrice       float64     `json:"exit_price"`
	ExitTime        time.Time   `json:"exit_time"`
	ExitReason      ExitReason  `json:"exit_reason"`
	PositionSizeUSD float64     `json:"position_size_usd"`
	QuantityClosed  float64     `json:"quantity_closed"`
	PnLUSD          float64     `json:"pnl_usd"`
	PnLPercent      float64     `json:"pnl_percent"`
	DurationMinutes int         `json:"duration_minutes"`
	TimingInfo      *TimingInfo `json:"timing_info,omitempty"`
}

func NewClosedTrade(id string, p *Position, f Fill) ClosedTrade {
	return ClosedTrade{
		ID:              id,
		Symbol:          p.Symbol,
		Direction:       p.Side,
		EntryPrice:      p.EntryPrice,
		EntryTime:       p.EntryTime,
		ExitPrice:       f.Price,
		ExitTime:        f.At,
		ExitReason:      f.Reason,
		PositionSizeUSD: f.NotionalUSD,
		QuantityClosed:  f.Quantity,
		PnLUSD:          f.PnLUSD,
		PnLPercent:      f.PnLPercent,
		DurationMinutes: int(f.At.Sub(p.EntryTime).Minutes()),
		TimingInfo:      p.Timing.Clone(),
	}
}

// TradeKey — ключ группировки частичных выходов.
type TradeKey struct {
	Symbol    string
	EntryTime time.Time
	Direction Side
}

func (t ClosedTrade) Key() TradeKey {
	return TradeKey{Symbol: t.Symbol, EntryTime: t.EntryTime.UTC(), Direction: t.Direction}
}

func (t ClosedTrade) IsProfitable() bool { return t.PnLUSD > 0 }

// TimingType: без timing_info вход считается немедленным.
func (t ClosedTrade) TimingType() TimingType {
	if t.TimingInfo == nil || t.TimingInfo.TimingType == "" {
		return TimingImmediate
	}
	return t.TimingInfo.TimingType
}

func (t ClosedTrade) WaitTimeMinutes() float64 {
	if t.TimingInfo == nil {
		return 0
	}
	return t.TimingInfo.WaitTimeMinutes
}

func (t ClosedTrade) Summary() string {
	mark := "❤️"
	if t.IsProfitable() {
		mark = "💚"
	}
	return fmt.Sprintf("%s %s %s %+.1f%% ($%+.2f) %s [%s]",
		mark, t.Symbol, t.Direction.Upper(), t.PnLPercent, t.PnLUSD, t.ExitReason, t.TimingType())
}
