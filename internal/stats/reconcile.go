package stats

import (
	"math"

	"virtual_trader/internal/ledger"
	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

// Tolerance — допустимое расхождение: больше из абсолютного и процентного.
type Tolerance struct {
	AbsUSD float64
	Pct    float64
}

var DefaultTolerance = Tolerance{AbsUSD: 1.0, Pct: 0.001}

func (t Tolerance) limit(base float64) float64 {
	return math.Max(t.AbsUSD, math.Abs(base)*t.Pct)
}

type Reconciliation struct {
	AuthoritativeBalance float64     `json:"authoritative_balance"`
	MarkToMarketBalance  float64     `json:"mark_to_market_balance"`
	BalanceDiff          float64     `json:"balance_diff"`
	LedgerInvested       float64     `json:"ledger_total_invested"`
	PositionsInvested    float64     `json:"positions_invested"`
	InvestedDiff         float64     `json:"invested_diff"`
	Limit                float64     `json:"tolerance_usd"`
	Consistent           bool        `json:"consistent"`
	RecentOps            []ledger.Op `json:"recent_ops,omitempty"`
}

// Reconcile — диагностика учёта: на торговлю не влияет, только пишет предупреждение.
func Reconcile(l *ledger.Ledger, positions []*models.Position, prices map[string]float64,
	tol Tolerance, log *logger.Logger) Reconciliation {

	auth := l.CurrentBalance(positions, prices)
	mtm := l.MarkToMarketBalance(positions, prices)
	share := l.InvestedCapital(positions)

	r := Reconciliation{
		AuthoritativeBalance: auth,
		MarkToMarketBalance:  mtm,
		BalanceDiff:          auth - mtm,
		LedgerInvested:       l.TotalInvested(),
		PositionsInvested:    share,
		InvestedDiff:         l.TotalInvested() - share,
		Limit:                tol.limit(auth),
	}
	r.Consistent = math.Abs(r.BalanceDiff) <= r.Limit && math.Abs(r.InvestedDiff) <= r.Limit

	if !r.Consistent {
		r.RecentOps = l.RecentOps()
		log.Warn("[RECONCILE] ⚠️ расхождение: баланс %.2f vs %.2f (Δ%.2f), вложено %.2f vs %.2f (Δ%.2f), допуск %.2f, операций в журнале %d",
			auth, mtm, r.BalanceDiff, r.LedgerInvested, share, r.InvestedDiff, r.Limit, len(r.RecentOps))
		for _, op := range r.RecentOps {
			log.Debug("[RECONCILE]   %s %.2f pnl=%+.2f avail=%.2f inv=%.2f",
				op.Kind, op.Amount, op.PnL, op.Available, op.Invested)
		}
	}
	return r
}
