package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"virtual_trader/internal/models"
	"virtual_trader/pkg/db"
	"virtual_trader/pkg/logger"
)

// Journal пишет жизненный цикл позиций сессии в Postgres.
// Ошибки записи не мешают торговому циклу: только лог.
type Journal struct {
	db        db.TxManager
	sessionID string
	timeout   time.Duration
	log       *logger.Logger
}

func NewJournal(tx db.TxManager, sessionID string, log *logger.Logger) *Journal {
	return &Journal{db: tx, sessionID: sessionID, timeout: 5 * time.Second, log: log}
}

func (j *Journal) OnOpen(p *models.Position) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.InsertPosition(ctx, p); err != nil {
		j.log.Error("[DB] %v", err)
	}
}

func (j *Journal) OnExit(p *models.Position, t models.ClosedTrade) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.RecordExit(ctx, p, t); err != nil {
		j.log.Error("[DB] %v", err)
	}
}

func (j *Journal) InsertPosition(ctx context.Context, p *models.Position) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Journal.InsertPosition %s: %w", p.Symbol, err)
		}
	}()

	timing, err := timingJSON(p.Timing)
	if err != nil {
		return err
	}
	return j.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertPositionSQL,
			j.sessionID, p.Symbol, string(p.Side), p.EntryPrice, p.EntryTime, p.SizeUSD, p.Quantity,
			p.StopLoss, p.TakeProfit[0], p.TakeProfit[1], p.TakeProfit[2], p.Confidence, p.RiskReward,
			p.SignalType, timing,
		)
		return err
	})
}

// RecordExit: запись выхода и новое состояние позиции в одной транзакции.
func (j *Journal) RecordExit(ctx context.Context, p *models.Position, t models.ClosedTrade) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Journal.RecordExit %s: %w", t.ID, err)
		}
	}()

	timing, err := timingJSON(t.TimingInfo)
	if err != nil {
		return err
	}
	var closedAt *time.Time
	if p.Closed() {
		closedAt = &t.ExitTime
	}

	return j.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		if _, err := tx.Exec(ctxTx, insertTradeSQL,
			t.ID, j.sessionID, t.Symbol, string(t.Direction), t.EntryPrice, t.EntryTime,
			t.ExitPrice, t.ExitTime, string(t.ExitReason), t.PositionSizeUSD, t.QuantityClosed,
			t.PnLUSD, t.PnLPercent, t.DurationMinutes, timing,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctxTx, updatePositionSQL,
			j.sessionID, p.Symbol, p.EntryTime,
			p.RemainingPercent(), p.CurrentSL(), p.RealizedPnL(), closedAt,
		)
		return err
	})
}

// SaveSession — последний снимок статистики сессии (jsonb).
func (j *Journal) SaveSession(ctx context.Context, startedAt, savedAt time.Time, reason string, snapshot any) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Journal.SaveSession: %w", err)
		}
	}()

	raw, err := sonic.Marshal(snapshot)
	if err != nil {
		return err
	}
	return j.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, upsertSessionSQL, j.sessionID, startedAt, savedAt, reason, string(raw))
		return err
	})
}

// SessionTrades читает журнал выходов сессии в порядке закрытия.
func (j *Journal) SessionTrades(ctx context.Context, sessionID string) (out []models.ClosedTrade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Journal.SessionTrades: %w", err)
		}
	}()

	err = j.db.RunReadOnly(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		rows, err := tx.Query(ctxTx, sessionTradesSQL, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t           models.ClosedTrade
				dir, reason string
				timing      []byte
			)
			if err := rows.Scan(&t.ID, &t.Symbol, &dir, &t.EntryPrice, &t.EntryTime, &t.ExitPrice,
				&t.ExitTime, &reason, &t.PositionSizeUSD, &t.QuantityClosed, &t.PnLUSD, &t.PnLPercent,
				&t.DurationMinutes, &timing); err != nil {
				return err
			}
			t.Direction = models.Side(dir)
			t.ExitReason = models.ExitReason(reason)
			if len(timing) > 0 {
				t.TimingInfo = &models.TimingInfo{}
				if err := sonic.Unmarshal(timing, t.TimingInfo); err != nil {
					return err
				}
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

// timingJSON: nil для входа без timing-очереди, иначе строка jsonb.
func timingJSON(ti *models.TimingInfo) (any, error) {
	if ti == nil {
		return nil, nil
	}
	raw, err := sonic.Marshal(ti)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
