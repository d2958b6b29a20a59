package stats

import "virtual_trader/internal/models"

// TimingCounters — счётчики входов, которые ведёт трейдер.
type TimingCounters struct {
	EntriesFromTiming  int     `json:"entries_from_timing"`
	ImmediateEntries   int     `json:"immediate_entries"`
	AverageWaitMinutes float64 `json:"average_wait_time"`
}

type TimingTypeStats struct {
	Count              int     `json:"count"`
	TotalPnL           float64 `json:"total_pnl"`
	Wins               int     `json:"wins"`
	WinRate            float64 `json:"win_rate"`
	AveragePnL         float64 `json:"average_pnl"`
	TotalWaitMinutes   float64 `json:"total_wait_time"`
	AverageWaitMinutes float64 `json:"average_wait_time"`
}

type TimingAnalysis struct {
	EntriesFromTiming  int                                    `json:"entries_from_timing"`
	ImmediateEntries   int                                    `json:"immediate_entries"`
	AverageWaitMinutes float64                                `json:"average_wait_time_minutes"`
	UsageRate          float64                                `json:"timing_usage_rate"`
	ByType             map[models.TimingType]*TimingTypeStats `json:"timing_performance_by_type"`
}

// TimingPerformance — результат по стратегиям входа. Учитываются только сделки с timing_info.
func TimingPerformance(trades []models.ClosedTrade, c TimingCounters) TimingAnalysis {
	a := TimingAnalysis{
		EntriesFromTiming:  c.EntriesFromTiming,
		ImmediateEntries:   c.ImmediateEntries,
		AverageWaitMinutes: c.AverageWaitMinutes,
		ByType:             map[models.TimingType]*TimingTypeStats{},
	}
	if total := c.EntriesFromTiming + c.ImmediateEntries; total > 0 {
		a.UsageRate = float64(c.EntriesFromTiming) / float64(total) * 100
	}

	withTiming := make([]models.ClosedTrade, 0, len(trades))
	for _, t := range trades {
		if t.TimingInfo != nil {
			withTiming = append(withTiming, t)
		}
	}

	for _, g := range GroupTrades(withTiming) {
		tt := g.Timing.TimingType
		if tt == "" {
			tt = "unknown"
		}
		s, ok := a.ByType[tt]
		if !ok {
			s = &TimingTypeStats{}
			a.ByType[tt] = s
		}
		s.Count++
		s.TotalPnL += g.TotalPnL
		s.TotalWaitMinutes += g.Timing.WaitTimeMinutes
		if g.Winning() {
			s.Wins++
		}
	}
	for _, s := range a.ByType {
		n := float64(s.Count)
		s.WinRate = float64(s.Wins) / n * 100
		s.AveragePnL = s.TotalPnL / n
		s.AverageWaitMinutes = s.TotalWaitMinutes / n
	}
	return a
}
