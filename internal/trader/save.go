package trader

import (
	"context"
	"fmt"
	"strings"

	"virtual_trader/internal/report"
	"virtual_trader/internal/stats"
)

// ValidateSystem — полная проверка согласованности учёта по последним ценам.
// Только диагностика: торговлю не останавливает.
func (t *Trader) ValidateSystem() []string {
	rec := stats.Reconcile(t.positions.Ledger(), t.positions.Positions(), t.lastPrices, stats.DefaultTolerance, t.log)
	return t.validate(rec)
}

func (t *Trader) validate(rec stats.Reconciliation) []string {
	positions := t.positions.Positions()
	var issues []string

	for _, v := range t.positions.Ledger().Validate(positions) {
		issues = append(issues, v.Check+": "+v.Message)
	}
	if !rec.Consistent {
		issues = append(issues, fmt.Sprintf("reconciliation: баланс Δ%.2f, вложено Δ%.2f, допуск %.2f",
			rec.BalanceDiff, rec.InvestedDiff, rec.Limit))
	}
	for _, p := range positions {
		if p.Closed() {
			issues = append(issues, fmt.Sprintf("%s: закрытая позиция среди открытых", p.Symbol))
			continue
		}
		switch p.RemainingPercent() {
		case 100, 50, 25:
		default:
			issues = append(issues, fmt.Sprintf("%s: недопустимый остаток %d%%", p.Symbol, p.RemainingPercent()))
		}
	}

	if len(issues) > 0 {
		t.counters.InvariantWarnings += len(issues)
		t.log.Warn("[VALIDATE] ⚠️ нарушений: %d\n%s", len(issues), strings.Join(issues, "\n"))
	}
	return issues
}

func (t *Trader) savePeriodic(ctx context.Context, s report.Snapshot) {
	if path, err := t.writer.SavePeriodic(s); err != nil {
		t.log.Error("[SAVE] периодическое сохранение: %v", err)
	} else {
		t.log.Debug("[SAVE] %s", path)
	}
	t.journalSession(ctx, s, report.ReasonPeriodic)
}

func (t *Trader) journalSession(ctx context.Context, s report.Snapshot, reason string) {
	if t.sessions == nil {
		return
	}
	s.SaveReason = reason
	s.SavedAt = t.now()
	if err := t.sessions.SaveSession(ctx, t.startedAt, s.SavedAt, reason, s); err != nil {
		t.log.Error("[SAVE] журнал сессии (%s): %v", reason, err)
	}
}

func (t *Trader) finalSnapshot() report.Snapshot {
	s := t.snapshot(t.lastPrices)
	s.Counters = t.counters
	return s
}

// Finish пишет финальную статистику, сделки, позиции и текстовый отчёт.
func (t *Trader) Finish(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trader.Finish: %w", err)
		}
	}()

	s := t.finalSnapshot()
	files, err := t.writer.SaveFinal(ctx, s, t.positions.ClosedTrades(), t.positions.Positions())
	if err != nil {
		return err
	}
	t.finished.Store(true)
	t.journalSession(ctx, s, report.ReasonFinal)

	t.log.Info("[TRADER] 💾 финальные результаты: %s, отчёт: %s", files.Statistics, files.Report)
	t.notifier.Send("🏁 Сессия завершена\n\n" + stats.PerformanceReport(s.Session))
	return nil
}

func (t *Trader) emergencySave(ctx context.Context) {
	s := t.finalSnapshot()
	path, err := t.writer.SaveEmergency(s, t.positions.ClosedTrades(), t.positions.Positions())
	if err != nil {
		t.log.Error("[SAVE] аварийное сохранение: %v", err)
	} else {
		t.log.Info("[SAVE] 🆘 аварийное сохранение: %s", path)
	}
	t.journalSession(ctx, s, report.ReasonEmergency)
}
