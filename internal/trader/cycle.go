package trader

import (
	"context"

	"virtual_trader/internal/helper"
	"virtual_trader/internal/models"
	"virtual_trader/internal/position"
	"virtual_trader/internal/report"
	"virtual_trader/internal/stats"
	"virtual_trader/internal/timing"
	"virtual_trader/pkg/tracing"
)

// сколько последних строк истории баланса попадает в снимок
const historyTail = 50

// RunCycle — один проход всех фаз. Ошибки фаз не прерывают цикл.
func (t *Trader) RunCycle(ctx context.Context) {
	span, ctx := tracing.StartSpan(ctx, t.tracer, "trader.cycle")
	defer span.Finish()

	t.counters.Cycles++
	span.SetTag("cycle", t.counters.Cycles)
	t.log.Debug("[CYCLE] #%d", t.counters.Cycles)

	t.phase(ctx, "trader.signals", t.collectSignals)
	t.phase(ctx, "trader.entries", t.processReady)
	t.phase(ctx, "trader.exits", t.checkExits)

	var snap report.Snapshot
	t.phase(ctx, "trader.stats", func(ctx context.Context) {
		t.lastPrices = t.markPrices(ctx)
		snap = t.snapshot(t.lastPrices)
		t.validate(snap.Session.Reconciliation)
		snap.Counters = t.counters
	})
	t.publish(snap)

	if t.counters.Cycles%t.cfg.ReportEveryCycles == 0 {
		t.log.Info("\n%s", stats.PerformanceReport(snap.Session))
	}
	if t.counters.Cycles%t.cfg.SaveEveryCycles == 0 {
		t.savePeriodic(ctx, snap)
	}
}

func (t *Trader) phase(ctx context.Context, name string, fn func(ctx context.Context)) {
	span, ctx := tracing.StartSpan(ctx, t.tracer, name)
	defer span.Finish()

	err := helper.Guard(name, func() error {
		fn(ctx)
		return nil
	})
	if err != nil {
		span.SetTag("error", true)
		t.log.Error("[CYCLE] фаза %s: %v", name, err)
	}
}

// collectSignals: сигналы по открытым символам отбрасываются,
// остальные встают в очередь входа.
func (t *Trader) collectSignals(ctx context.Context) {
	sigs := t.signals.Generate(ctx, t.symbols)
	t.counters.TotalSignals += len(sigs)

	for _, sig := range sigs {
		if t.positions.Has(sig.Symbol) {
			t.counters.AlreadyOpen++
			t.log.Debug("[SIGNAL] %s: позиция уже открыта, сигнал пропущен", sig.Symbol)
			continue
		}
		if _, err := t.timing.Enqueue(sig); err != nil {
			t.log.Warn("[SIGNAL] %s: не поставлен в очередь: %v", sig.Symbol, err)
			continue
		}
		t.counters.SignalsQueued++
	}
}

func (t *Trader) processReady(ctx context.Context) {
	for _, sig := range t.timing.Check(ctx, t.market) {
		err := helper.Guard(sig.Symbol, func() error {
			t.open(sig)
			return nil
		})
		if err != nil {
			t.log.Error("[ENTRY] %s: %v", sig.Symbol, err)
		}
	}
}

func (t *Trader) open(sig models.Signal) {
	if err := timing.ValidateFreshness(sig, t.cfg.FreshnessMaxWait, t.cfg.FreshnessMaxDrift); err != nil {
		t.counters.RejectedStale++
		t.log.Warn("[ENTRY] ❌ %v", err)
		return
	}

	_, res := t.positions.Open(sig)
	switch res {
	case position.Opened:
		t.counters.TradesOpened++
		if sig.Timing == nil || sig.Timing.TimingType == models.TimingImmediate {
			t.counters.ImmediateEntries++
		} else {
			t.counters.EntriesFromTiming++
			t.waitSum += sig.Timing.WaitTimeMinutes
		}
	case position.InsufficientBalance:
		t.counters.BlockedByBalance++
	case position.ExposureLimit:
		t.counters.BlockedByExposure++
	case position.AlreadyOpen:
		t.counters.AlreadyOpen++
	default:
		t.log.Warn("[ENTRY] %s: позиция не открыта: %s", sig.Symbol, res)
	}
}

func (t *Trader) checkExits(ctx context.Context) {
	closed := t.positions.CheckExits(ctx, t.market)
	if len(closed) > 0 {
		t.log.Debug("[EXIT] выходов за цикл: %d", len(closed))
	}
}

// markPrices — текущие цены открытых позиций; 0 от биржи пропускается,
// такие позиции оцениваются по цене входа.
func (t *Trader) markPrices(ctx context.Context) map[string]float64 {
	prices := make(map[string]float64)
	for _, p := range t.positions.Positions() {
		if px := t.market.GetCurrentPrice(ctx, p.Symbol); px > 0 {
			prices[p.Symbol] = px
		}
	}
	return prices
}

func (t *Trader) timingCounters() stats.TimingCounters {
	c := stats.TimingCounters{
		EntriesFromTiming: t.counters.EntriesFromTiming,
		ImmediateEntries:  t.counters.ImmediateEntries,
	}
	if c.EntriesFromTiming > 0 {
		c.AverageWaitMinutes = t.waitSum / float64(c.EntriesFromTiming)
	}
	return c
}

func (t *Trader) snapshot(prices map[string]float64) report.Snapshot {
	return report.Snapshot{
		SessionID: t.sessionID,
		StartedAt: t.startedAt,
		Session: t.calc.Session(stats.Input{
			Ledger:    t.positions.Ledger(),
			Positions: t.positions.Positions(),
			Trades:    t.positions.ClosedTrades(),
			Prices:    prices,
			Timing:    t.timingCounters(),
			Start:     t.startedAt,
		}),
		Counters:    t.counters,
		TimingQueue: t.timing.Stats(),
		Pending:     t.timing.PendingStatus(),
		History:     t.calc.History(historyTail),
	}
}
