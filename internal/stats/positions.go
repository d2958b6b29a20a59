package stats

import (
	"time"

	"virtual_trader/internal/models"
)

type PositionStats struct {
	Count         int                 `json:"open_positions_count"`
	ByDirection   map[models.Side]int `json:"positions_by_direction"`
	TP1Filled     int                 `json:"positions_tp1_filled"`
	AtBreakeven   int                 `json:"positions_at_breakeven"`
	WithProfit    int                 `json:"positions_with_profit"`
	UnrealizedPnL float64             `json:"unrealized_pnl"`
	AvgAgeMinutes float64             `json:"avg_position_age_minutes"`
}

// AnalyzePositions: прибыльность по текущей цене, без цены — по максимуму прибыли.
func AnalyzePositions(positions []*models.Position, prices map[string]float64, now time.Time) PositionStats {
	s := PositionStats{ByDirection: map[models.Side]int{models.SideBuy: 0, models.SideSell: 0}}
	if len(positions) == 0 {
		return s
	}

	var age float64
	for _, p := range positions {
		s.Count++
		s.ByDirection[p.Side]++
		if p.TP1Filled() {
			s.TP1Filled++
		}
		if p.SLMovedToBreakeven() {
			s.AtBreakeven++
		}
		age += now.Sub(p.EntryTime).Minutes()

		if mark, ok := prices[p.Symbol]; ok && mark > 0 {
			u := p.UnrealizedPnL(mark)
			s.UnrealizedPnL += u
			if u > 0 {
				s.WithProfit++
			}
		} else if p.MaxProfitUSD() > 0 {
			s.WithProfit++
		}
	}
	s.AvgAgeMinutes = age / float64(s.Count)
	return s
}
