package pg

const insertPositionSQL = `
INSERT INTO vt_positions (
	session_id, symbol, direction, entry_price, entry_time, size_usd, quantity,
	stop_loss, current_sl, tp1, tp2, tp3, confidence, risk_reward, signal_type,
	remaining_percent, timing_info
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10, $11, $12, $13, $14, 100, $15)
ON CONFLICT (session_id, symbol, entry_time) DO NOTHING`

const updatePositionSQL = `
UPDATE vt_positions
SET remaining_percent = $4, current_sl = $5, realized_pnl = $6, closed_at = $7
WHERE session_id = $1 AND symbol = $2 AND entry_time = $3`

const insertTradeSQL = `
INSERT INTO vt_closed_trades (
	id, session_id, symbol, direction, entry_price, entry_time, exit_price, exit_time,
	exit_reason, position_size_usd, quantity_closed, pnl_usd, pnl_percent,
	duration_minutes, timing_info
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING`

const upsertSessionSQL = `
INSERT INTO vt_sessions (id, started_at, updated_at, save_reason, stats)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET updated_at = EXCLUDED.updated_at, save_reason = EXCLUDED.save_reason, stats = EXCLUDED.stats`

const sessionTradesSQL = `
SELECT id, symbol, direction, entry_price, entry_time, exit_price, exit_time, exit_reason,
	position_size_usd, quantity_closed, pnl_usd, pnl_percent, duration_minutes, timing_info
FROM vt_closed_trades
WHERE session_id = $1
ORDER BY exit_time, id`
