package position

import "virtual_trader/internal/models"

type PositionsSummary struct {
	Total       int      `json:"total_positions"`
	Long        int      `json:"long_positions"`
	Short       int      `json:"short_positions"`
	InvestedUSD float64  `json:"invested_usd"`
	Statuses    []string `json:"position_details"`
}

func (m *Manager) PositionsSummary() PositionsSummary {
	s := PositionsSummary{}
	for _, p := range m.Positions() {
		s.Total++
		if p.Side == models.SideBuy {
			s.Long++
		} else {
			s.Short++
		}
		s.InvestedUSD += p.InvestedShare()
		s.Statuses = append(s.Statuses, p.StatusSummary())
	}
	return s
}
