package notify

import (
	"fmt"
	"strconv"
	"strings"

	"virtual_trader/internal/models"
)

func f5(v float64) string { return strconv.FormatFloat(v, 'f', 5, 64) }

func sideIcon(s models.Side) string {
	if s == models.SideSell {
		return "🔴"
	}
	return "🟢"
}

// FormatEntry — сообщение об открытии со всеми полями, которые нужны для отображения.
func FormatEntry(p *models.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"%s ВХОД %s %s\n\n"+
			"Цена входа: %s\n"+
			"Stop Loss: %s\n"+
			"TP1: %s (50%%)\n"+
			"TP2: %s (25%%)\n"+
			"TP3: %s (25%%)\n"+
			"R:R: %.2f\n"+
			"Уверенность: %.0f%%\n"+
			"Размер: $%.2f\n",
		sideIcon(p.Side), p.Symbol, p.Side.Upper(),
		f5(p.EntryPrice),
		f5(p.StopLoss),
		f5(p.TakeProfit[0]),
		f5(p.TakeProfit[1]),
		f5(p.TakeProfit[2]),
		p.RiskReward,
		p.Confidence*100,
		p.SizeUSD,
	)
	if ti := p.Timing; ti != nil {
		fmt.Fprintf(&b,
			"\n⏰ Timing: %s\n"+
				"Цена сигнала: %s\n"+
				"Ожидание: %.1f мин\n"+
				"Подтверждений: %d\n"+
				"Причина: %s\n",
			ti.TimingType, f5(ti.OriginalSignalPrice), ti.WaitTimeMinutes, ti.Confirmations, ti.EntryReason)
	} else {
		b.WriteString("\n⏰ Timing: immediate\n")
	}
	return b.String()
}

// FormatExit — сообщение о частичном или полном закрытии.
func FormatExit(p *models.Position, t models.ClosedTrade) string {
	icon := "🎯"
	if t.ExitReason == models.ExitStopLoss {
		icon = "🛑"
	}
	var b strings.Builder
	fmt.Fprintf(&b,
		"%s %s %s %s\n\n"+
			"Вход: %s\n"+
			"Выход: %s\n"+
			"Закрыто: %.6f ($%.2f)\n"+
			"P&L: $%+.2f (%+.2f%%)\n"+
			"Длительность: %d мин\n",
		icon, t.ExitReason, t.Symbol, t.Direction.Upper(),
		f5(t.EntryPrice),
		f5(t.ExitPrice),
		t.QuantityClosed, t.PositionSizeUSD,
		t.PnLUSD, t.PnLPercent,
		t.DurationMinutes,
	)
	if p.Closed() {
		fmt.Fprintf(&b, "Позиция закрыта, итог $%+.2f\n", p.RealizedPnL())
	} else {
		fmt.Fprintf(&b, "Остаток: %d%%, SL: %s\n", p.RemainingPercent(), f5(p.CurrentSL()))
		if t.ExitReason == models.ExitTP1 {
			b.WriteString("SL перенесён в безубыток\n")
		}
	}
	return b.String()
}
