package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"virtual_trader/internal/models"
)

// LogicalTrade — все частичные выходы одной позиции.
type LogicalTrade struct {
	Symbol          string              `json:"symbol"`
	Direction       models.Side         `json:"direction"`
	EntryTime       time.Time           `json:"entry_time"`
	LastExitTime    time.Time           `json:"last_exit_time"`
	TotalPnL        float64             `json:"total_pnl"`
	NotionalUSD     float64             `json:"settled_notional"`
	Parts           int                 `json:"parts_count"`
	ExitReasons     []models.ExitReason `json:"exit_reasons"`
	DurationMinutes int                 `json:"duration_minutes"`
	Timing          *models.TimingInfo  `json:"timing_info,omitempty"`
}

func (t LogicalTrade) Winning() bool { return t.TotalPnL > 0 }

// PnLPercent относительно закрытой части номинала.
func (t LogicalTrade) PnLPercent() float64 {
	if t.NotionalUSD <= 0 {
		return 0
	}
	return t.TotalPnL / t.NotionalUSD * 100
}

// GroupTrades сворачивает записи по (symbol, entry_time, direction),
// результат упорядочен по времени входа.
func GroupTrades(trades []models.ClosedTrade) []LogicalTrade {
	idx := make(map[models.TradeKey]int, len(trades))
	var out []LogicalTrade

	for _, t := range trades {
		k := t.Key()
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, LogicalTrade{
				Symbol:    t.Symbol,
				Direction: t.Direction,
				EntryTime: t.EntryTime,
				Timing:    t.TimingInfo,
			})
		}
		g := &out[i]
		g.TotalPnL += t.PnLUSD
		g.NotionalUSD += t.PositionSizeUSD
		g.Parts++
		g.ExitReasons = append(g.ExitReasons, t.ExitReason)
		if t.ExitTime.After(g.LastExitTime) {
			g.LastExitTime = t.ExitTime
		}
		if t.DurationMinutes > g.DurationMinutes {
			g.DurationMinutes = t.DurationMinutes
		}
		if g.Timing == nil {
			g.Timing = t.TimingInfo
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out
}

type TradeStats struct {
	TotalTrades          int          `json:"total_trades"`
	WinningTrades        int          `json:"winning_trades"`
	LosingTrades         int          `json:"losing_trades"`
	WinRate              float64      `json:"win_rate"`
	TotalPnL             float64      `json:"total_pnl"`
	AveragePnL           float64      `json:"average_pnl"`
	AverageWin           float64      `json:"average_win"`
	AverageLoss          float64      `json:"average_loss"`
	ProfitFactor         models.Ratio `json:"profit_factor"`
	MaxConsecutiveWins   int          `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int          `json:"max_consecutive_losses"`
	LargestWin           float64      `json:"largest_win"`
	LargestLoss          float64      `json:"largest_loss"`
	AverageDurationMin   float64      `json:"average_duration_minutes"`
	TotalPartialExits    int          `json:"total_partial_exits"`
	GroupedDetails       []string     `json:"grouped_trades_details"`
}

// ComputeTrades — винрейт и прочее по логическим сделкам; убыточная = total ≤ 0.
func ComputeTrades(trades []models.ClosedTrade) TradeStats {
	s := TradeStats{TotalPartialExits: len(trades), GroupedDetails: []string{}}
	groups := GroupTrades(trades)
	if len(groups) == 0 {
		return s
	}

	var profit, loss, duration float64
	var wins, losses int
	for _, g := range groups {
		s.TotalPnL += g.TotalPnL
		duration += float64(g.DurationMinutes)

		if g.Winning() {
			s.WinningTrades++
			profit += g.TotalPnL
			s.LargestWin = math.Max(s.LargestWin, g.TotalPnL)
			wins++
			losses = 0
			s.MaxConsecutiveWins = max(s.MaxConsecutiveWins, wins)
		} else {
			s.LosingTrades++
			loss += -g.TotalPnL
			s.LargestLoss = math.Min(s.LargestLoss, g.TotalPnL)
			losses++
			wins = 0
			s.MaxConsecutiveLosses = max(s.MaxConsecutiveLosses, losses)
		}
		s.GroupedDetails = append(s.GroupedDetails,
			fmt.Sprintf("%s (%d частей): $%+.2f", g.Symbol, g.Parts, g.TotalPnL))
	}

	n := float64(len(groups))
	s.TotalTrades = len(groups)
	s.WinRate = float64(s.WinningTrades) / n * 100
	s.AveragePnL = s.TotalPnL / n
	s.AverageDurationMin = duration / n
	if s.WinningTrades > 0 {
		s.AverageWin = profit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = loss / float64(s.LosingTrades)
	}
	if loss > 0 {
		s.ProfitFactor = models.Ratio(profit / loss)
	} else {
		s.ProfitFactor = models.Ratio(math.Inf(1))
	}
	return s
}
