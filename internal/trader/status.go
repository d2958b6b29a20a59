package trader

import (
	"fmt"
	"strings"

	healthsvc "virtual_trader/internal/modules/health/service"
	"virtual_trader/internal/report"
	"virtual_trader/internal/timing"
)

type statusTexts struct {
	status    string
	positions string
	pending   string
}

// StatusLine — однострочный итог цикла.
func StatusLine(s report.Snapshot) string {
	b := s.Session.Balance
	return fmt.Sprintf("💰 Баланс: $%.2f | Доступно: $%.2f | В позициях: $%.2f (%.1f%%) | Позиций: %d | Сделок: %d | Ожидают: %d",
		b.CurrentBalance, b.AvailableBalance, b.InvestedCapital, b.ExposurePercent,
		s.Session.Positions.Count, s.Session.Trades.TotalTrades, len(s.Pending))
}

func pendingText(pending []timing.PendingStatus) string {
	if len(pending) == 0 {
		return "⏳ Очередь входов пуста"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⏳ Ожидают входа: %d\n", len(pending))
	for _, p := range pending {
		fmt.Fprintf(&b, "%s %s %s: цель %.5f, подтверждений %s, ждём %s, осталось %s\n",
			p.Symbol, p.Direction.Upper(), p.TimingType, p.TargetPrice,
			p.Confirmations, p.TimeWaiting, p.TimeRemaining)
	}
	return b.String()
}

// publish обновляет тексты для чата и состояние для health.
func (t *Trader) publish(s report.Snapshot) {
	line := StatusLine(s)
	t.log.Info("[CYCLE] #%d %s", t.counters.Cycles, line)

	ps := t.positions.PositionsSummary()
	positions := "📭 Нет открытых позиций"
	if ps.Total > 0 {
		positions = fmt.Sprintf("📊 Открыто позиций: %d (long %d, short %d), вложено $%.2f\n%s",
			ps.Total, ps.Long, ps.Short, ps.InvestedUSD, strings.Join(ps.Statuses, "\n"))
	}

	status := fmt.Sprintf("Цикл #%d\n%s\nРиск: %s\nP&L: $%+.2f (%+.2f%%)",
		t.counters.Cycles, line, s.Session.Risk.Level,
		s.Session.Trades.TotalPnL, s.Session.Balance.BalancePercent)

	t.mu.Lock()
	t.texts = statusTexts{status: status, positions: positions, pending: pendingText(s.Pending)}
	t.mu.Unlock()

	if t.health != nil {
		b := s.Session.Balance
		t.health.TouchCycle(t.now(), healthsvc.Snapshot{
			Cycle:          t.counters.Cycles,
			Balance:        b.CurrentBalance,
			Available:      b.AvailableBalance,
			Invested:       b.InvestedCapital,
			ExposurePct:    b.ExposurePercent,
			OpenPositions:  ps.Total,
			PendingEntries: len(s.Pending),
			ClosedTrades:   s.Session.Trades.TotalTrades,
			Consistent:     s.Session.Reconciliation.Consistent,
		})
	}
}

func (t *Trader) StatusText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.texts.status == "" {
		return "⏳ Первый цикл ещё не завершён"
	}
	return t.texts.status
}

func (t *Trader) PositionsText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.texts.positions == "" {
		return "📭 Нет открытых позиций"
	}
	return t.texts.positions
}

func (t *Trader) PendingText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.texts.pending == "" {
		return "⏳ Очередь входов пуста"
	}
	return t.texts.pending
}
