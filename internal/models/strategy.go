package models

import "strings"

// Side — направление сделки, в JSON как "buy"/"sell".
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return SideBuy
	case "sell", "short":
		return SideSell
	}
	return SideNone
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// Sign: +1 для buy, -1 для sell.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

func (s Side) Upper() string { return strings.ToUpper(string(s)) }

// TimingType — стратегия отложенного входа.
type TimingType string

const (
	TimingImmediate TimingType = "immediate"
	TimingPullback  TimingType = "pullback"
	TimingBreakout  TimingType = "breakout"
)

func (t TimingType) Valid() bool {
	switch t {
	case TimingImmediate, TimingPullback, TimingBreakout:
		return true
	}
	return false
}
