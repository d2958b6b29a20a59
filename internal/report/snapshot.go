package report

import (
	"time"

	"virtual_trader/internal/models"
	"virtual_trader/internal/stats"
	"virtual_trader/internal/timing"
)

const (
	ReasonPeriodic  = "periodic_save"
	ReasonFinal     = "final_results"
	ReasonEmergency = "emergency_shutdown"
)

// Counters — счётчики цикла трейдера.
type Counters struct {
	Cycles            int `json:"cycles"`
	TotalSignals      int `json:"total_signals"`
	TradesOpened      int `json:"trades_opened"`
	BlockedByBalance  int `json:"blocked_by_balance"`
	BlockedByExposure int `json:"blocked_by_exposure"`
	RejectedStale     int `json:"rejected_stale"`
	AlreadyOpen       int `json:"already_open"`
	SignalsQueued     int `json:"signals_queued"`
	EntriesFromTiming int `json:"entries_from_timing"`
	ImmediateEntries  int `json:"immediate_entries"`
	InvariantWarnings int `json:"invariant_warnings"`
}

// Snapshot — содержимое session_stats_v2.json и final_statistics_*.json.
type Snapshot struct {
	SaveReason  string                 `json:"save_reason"`
	SessionID   string                 `json:"session_id"`
	SavedAt     time.Time              `json:"saved_at"`
	StartedAt   time.Time              `json:"session_start_time"`
	Session     stats.SessionStats     `json:"session"`
	Counters    Counters               `json:"counters"`
	TimingQueue timing.Stats           `json:"timing_queue"`
	Pending     []timing.PendingStatus `json:"pending_entries"`
	History     []stats.HistoryRecord  `json:"balance_history"`
}

// Emergency — аварийное сохранение: всё в одном файле.
type Emergency struct {
	Snapshot
	ClosedTrades  []models.ClosedTrade `json:"closed_trades"`
	OpenPositions []*models.Position   `json:"open_positions"`
}
