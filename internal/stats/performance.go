package stats

import (
	"math"
	"sort"
	"time"

	"virtual_trader/internal/models"
)

type PerformanceMetrics struct {
	SharpeRatio        float64 `json:"sharpe_ratio"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	RecoveryFactor     float64 `json:"recovery_factor"`
	ProfitPerDay       float64 `json:"profit_per_day"`
	TradesPerDay       float64 `json:"trades_per_day"`
}

// Performance: Sharpe без безрисковой ставки по pnl% логических сделок,
// просадка по кривой накопленного PnL в порядке выходов.
func Performance(trades []models.ClosedTrade, initial, totalPnL float64, start, now time.Time) PerformanceMetrics {
	var m PerformanceMetrics
	if len(trades) == 0 {
		return m
	}

	days := math.Floor(now.Sub(start).Hours() / 24)
	if days < 1 {
		days = 1
	}
	groups := GroupTrades(trades)
	m.ProfitPerDay = totalPnL / days
	m.TradesPerDay = float64(len(groups)) / days

	returns := make([]float64, 0, len(groups))
	for _, g := range groups {
		returns = append(returns, g.PnLPercent())
	}
	if mean, std := meanStd(returns); std > 0 {
		m.SharpeRatio = mean / std
	}

	ordered := append([]models.ClosedTrade(nil), trades...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ExitTime.Before(ordered[j].ExitTime) })

	peak := initial
	var cum float64
	for _, t := range ordered {
		cum += t.PnLUSD
		bal := initial + cum
		if bal > peak {
			peak = bal
		}
		if peak > 0 {
			m.MaxDrawdownPercent = math.Max(m.MaxDrawdownPercent, (peak-bal)/peak*100)
		}
	}
	if m.MaxDrawdownPercent > 0 {
		m.RecoveryFactor = totalPnL / m.MaxDrawdownPercent
	}
	return m
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		std += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(std / float64(len(xs)))
}
