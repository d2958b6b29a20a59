package models

import (
	"fmt"
	"time"
)

// TimingInfo — метаданные входа, которые timing-очередь прикрепляет к сигналу.
type TimingInfo struct {
	OriginalSignalPrice float64    `json:"original_signal_price"`
	TimingType          TimingType `json:"timing_type"`
	WaitTimeMinutes     float64    `json:"wait_time_minutes"`
	Confirmations       int        `json:"confirmations"`
	EntryReason         string     `json:"entry_reason"`
}

func (t *TimingInfo) Clone() *TimingInfo {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Signal — сигнал от генератора. После передачи в timing-очередь не меняется:
// очередь работает с копией и отдаёт новое значение с ценой входа.
type Signal struct {
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"direction"`
	Price      float64    `json:"price"`
	Confidence float64    `json:"confidence"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit [3]float64 `json:"take_profit"`
	RiskReward float64    `json:"risk_reward"`
	SignalType string     `json:"signal_type"`
	Timeframe  string     `json:"timeframe,omitempty"`

	// RSI на момент сигнала, 0 если генератор его не считал.
	RSI float64 `json:"rsi,omitempty"`
	// TimingHint — явный выбор стратегии входа от генератора.
	TimingHint TimingType `json:"timing_hint,omitempty"`

	CreatedAt time.Time   `json:"created_at"`
	Timing    *TimingInfo `json:"timing_info,omitempty"`
}

func (s Signal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("signal: empty symbol")
	}
	if !s.Side.Valid() {
		return fmt.Errorf("signal %s: bad direction %q", s.Symbol, s.Side)
	}
	if s.Price <= 0 {
		return fmt.Errorf("signal %s: price must be positive, got %v", s.Symbol, s.Price)
	}
	if s.StopLoss <= 0 {
		return fmt.Errorf("signal %s: stop loss must be positive, got %v", s.Symbol, s.StopLoss)
	}
	for i, tp := range s.TakeProfit {
		if tp <= 0 {
			return fmt.Errorf("signal %s: tp%d must be positive, got %v", s.Symbol, i+1, tp)
		}
	}
	return nil
}

// WithEntry возвращает копию сигнала с новой ценой входа и timing-метаданными.
func (s Signal) WithEntry(price float64, info TimingInfo) Signal {
	out := s
	out.Price = price
	out.Timing = &info
	return out
}
