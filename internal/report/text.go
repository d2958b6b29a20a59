package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"virtual_trader/internal/models"
)

// TextReport — final_report_<ts>.txt.
func TextReport(s Snapshot) string {
	var b strings.Builder
	wide := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 50)
	st := s.Session

	section := func(title string) {
		fmt.Fprintf(&b, "%s\n%s\n", title, thin)
	}

	fmt.Fprintf(&b, "%s\n        ОТЧЕТ ВИРТУАЛЬНОГО ТРЕЙДЕРА V2 С TIMING\n%s\n\n", wide, wide)
	fmt.Fprintf(&b, "Отчет создан: %s\n", s.SavedAt.Format(time.DateTime))
	fmt.Fprintf(&b, "Сессия: %s\n", s.SessionID)
	fmt.Fprintf(&b, "Причина сохранения: %s\n", s.SaveReason)
	fmt.Fprintf(&b, "Длительность сессии: %.2f часов\n\n", st.SessionDurationHours)

	section("[MONEY] ФИНАНСОВЫЕ РЕЗУЛЬТАТЫ:")
	fmt.Fprintf(&b, "Начальный баланс:      $%.2f\n", st.Balance.InitialBalance)
	fmt.Fprintf(&b, "Текущий баланс:        $%.2f\n", st.Balance.CurrentBalance)
	fmt.Fprintf(&b, "Доступно:              $%.2f\n", st.Balance.AvailableBalance)
	fmt.Fprintf(&b, "В позициях:            $%.2f\n", st.Balance.InvestedCapital)
	fmt.Fprintf(&b, "Реализованный P&L:     $%+.2f\n", st.Balance.RealizedPnL)
	fmt.Fprintf(&b, "Нереализованный P&L:   $%+.2f\n", st.Balance.UnrealizedPnL)
	fmt.Fprintf(&b, "P&L в процентах:       %+.2f%%\n", st.Balance.BalancePercent)
	fmt.Fprintf(&b, "Уровень риска:         %s\n\n", st.Risk.Level)

	section("[STATS] ТОРГОВАЯ СТАТИСТИКА:")
	fmt.Fprintf(&b, "Всего сделок:          %d (частичных выходов %d)\n", st.Trades.TotalTrades, st.Trades.TotalPartialExits)
	fmt.Fprintf(&b, "Выигрышных:            %d\n", st.Trades.WinningTrades)
	fmt.Fprintf(&b, "Проигрышных:           %d\n", st.Trades.LosingTrades)
	fmt.Fprintf(&b, "Винрейт:               %.2f%%\n", st.Trades.WinRate)
	fmt.Fprintf(&b, "Открытых позиций:      %d\n", st.Positions.Count)
	fmt.Fprintf(&b, "Средний P&L:           $%+.2f\n", st.Trades.AveragePnL)
	fmt.Fprintf(&b, "Profit Factor:         %s\n", st.Trades.ProfitFactor)
	fmt.Fprintf(&b, "Серии:                 %d побед / %d поражений\n\n",
		st.Trades.MaxConsecutiveWins, st.Trades.MaxConsecutiveLosses)

	section("[TIME] TIMING СТАТИСТИКА:")
	fmt.Fprintf(&b, "Входов через timing:   %d\n", st.Timing.EntriesFromTiming)
	fmt.Fprintf(&b, "Немедленных входов:    %d\n", st.Timing.ImmediateEntries)
	fmt.Fprintf(&b, "Среднее ожидание:      %.1f мин\n", st.Timing.AverageWaitMinutes)
	fmt.Fprintf(&b, "Использование timing:  %.1f%%\n", st.Timing.UsageRate)
	fmt.Fprintf(&b, "Истекло по таймауту:   %d\n\n", s.TimingQueue.Timeouts)

	section("[PERF] МЕТРИКИ ПРОИЗВОДИТЕЛЬНОСТИ:")
	fmt.Fprintf(&b, "Sharpe Ratio:          %.2f\n", st.Performance.SharpeRatio)
	fmt.Fprintf(&b, "Максимальная просадка: %.2f%%\n", st.Performance.MaxDrawdownPercent)
	fmt.Fprintf(&b, "Recovery Factor:       %.2f\n", st.Performance.RecoveryFactor)
	fmt.Fprintf(&b, "Прибыль в день:        $%+.2f\n", st.Performance.ProfitPerDay)
	fmt.Fprintf(&b, "Сделок в день:         %.1f\n\n", st.Performance.TradesPerDay)

	section("[BLOCKS] БЛОКИРОВКИ:")
	fmt.Fprintf(&b, "По балансу:            %d\n", s.Counters.BlockedByBalance)
	fmt.Fprintf(&b, "По экспозиции:         %d\n", s.Counters.BlockedByExposure)
	fmt.Fprintf(&b, "Устаревшие сигналы:    %d\n\n", s.Counters.RejectedStale)

	if len(st.Timing.ByType) > 0 {
		section("[TIMING_PERF] ПРОИЗВОДИТЕЛЬНОСТЬ ПО ТИПАМ TIMING:")
		types := make([]models.TimingType, 0, len(st.Timing.ByType))
		for tt := range st.Timing.ByType {
			types = append(types, tt)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, tt := range types {
			p := st.Timing.ByType[tt]
			fmt.Fprintf(&b, "%s:\n", strings.ToUpper(string(tt)))
			fmt.Fprintf(&b, "  Сделок:        %d\n", p.Count)
			fmt.Fprintf(&b, "  Винрейт:       %.1f%%\n", p.WinRate)
			fmt.Fprintf(&b, "  Средний P&L:   $%+.2f\n", p.AveragePnL)
			fmt.Fprintf(&b, "  Ср. ожидание:  %.1f мин\n\n", p.AverageWaitMinutes)
		}
	}

	if !st.Reconciliation.Consistent {
		section("[WARN] СВЕРКА БАЛАНСА:")
		fmt.Fprintf(&b, "Основной расчёт:       $%.2f\n", st.Reconciliation.AuthoritativeBalance)
		fmt.Fprintf(&b, "По рынку:              $%.2f\n", st.Reconciliation.MarkToMarketBalance)
		fmt.Fprintf(&b, "Расхождение:           $%+.2f\n\n", st.Reconciliation.BalanceDiff)
	}

	fmt.Fprintf(&b, "%s\n                           КОНЕЦ ОТЧЕТА\n%s\n", wide, wide)
	return b.String()
}
