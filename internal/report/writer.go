package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

const (
	DefaultDir   = "virtual_trading_results_v2"
	sessionFile  = "session_stats_v2.json"
	fileStampFmt = "20060102_150405"
)

// Archiver — внешнее хранилище итоговых файлов (S3). Может отсутствовать.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Writer пишет снимки сессии в results_dir.
type Writer struct {
	dir       string
	sessionID string
	archive   Archiver
	now       func() time.Time
	log       *logger.Logger
}

func NewWriter(dir, sessionID string, archive Archiver, log *logger.Logger) (*Writer, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report.NewWriter: %w", err)
	}
	abs, _ := filepath.Abs(dir)
	log.Info("[SAVE] директория результатов: %s/", abs)
	return &Writer{dir: dir, sessionID: sessionID, archive: archive, now: time.Now, log: log}, nil
}

func (w *Writer) SetClock(now func() time.Time) { w.now = now }

func (w *Writer) Dir() string { return w.dir }

func (w *Writer) stamp(s *Snapshot, reason string) {
	s.SaveReason = reason
	s.SessionID = w.sessionID
	s.SavedAt = w.now()
}

// SavePeriodic перезаписывает session_stats_v2.json.
func (w *Writer) SavePeriodic(s Snapshot) (string, error) {
	w.stamp(&s, ReasonPeriodic)
	path := filepath.Join(w.dir, sessionFile)
	if err := writeJSON(path, s); err != nil {
		return "", fmt.Errorf("Writer.SavePeriodic: %w", err)
	}
	w.log.Info("[SAVE] 💾 промежуточное сохранение: %s", path)
	return path, nil
}

// Files — пути итоговых файлов; пустые поля — файл не создавался.
type Files struct {
	Statistics string `json:"statistics"`
	Trades     string `json:"trades,omitempty"`
	Positions  string `json:"positions,omitempty"`
	Report     string `json:"report"`
}

// SaveFinal пишет итоговую статистику, сделки, открытые позиции и текстовый отчёт.
func (w *Writer) SaveFinal(ctx context.Context, s Snapshot, trades []models.ClosedTrade,
	positions []*models.Position) (files Files, err error) {

	defer func() {
		if err != nil {
			err = fmt.Errorf("Writer.SaveFinal: %w", err)
		}
	}()

	w.stamp(&s, ReasonFinal)
	ts := s.SavedAt.Format(fileStampFmt)

	files.Statistics = filepath.Join(w.dir, "final_statistics_"+ts+".json")
	if err = writeJSON(files.Statistics, s); err != nil {
		return files, err
	}
	w.log.Info("[SAVE] основная статистика: %s", files.Statistics)

	if len(trades) > 0 {
		files.Trades = filepath.Join(w.dir, "closed_trades_"+ts+".json")
		if err = writeJSON(files.Trades, trades); err != nil {
			return files, err
		}
		w.log.Info("[SAVE] сделки: %s (%d записей)", files.Trades, len(trades))
	}
	if len(positions) > 0 {
		files.Positions = filepath.Join(w.dir, "open_positions_"+ts+".json")
		if err = writeJSON(files.Positions, positions); err != nil {
			return files, err
		}
		w.log.Info("[SAVE] позиции: %s (%d)", files.Positions, len(positions))
	}

	files.Report = filepath.Join(w.dir, "final_report_"+ts+".txt")
	if err = os.WriteFile(files.Report, []byte(TextReport(s)), 0o644); err != nil {
		return files, err
	}
	w.log.Info("[SAVE] отчёт: %s", files.Report)

	w.upload(ctx, files)
	return files, nil
}

// SaveEmergency — emergency_save_HHMMSS.json при остановке.
func (w *Writer) SaveEmergency(s Snapshot, trades []models.ClosedTrade, positions []*models.Position) (string, error) {
	w.stamp(&s, ReasonEmergency)
	path := filepath.Join(w.dir, "emergency_save_"+s.SavedAt.Format("150405")+".json")
	if trades == nil {
		trades = []models.ClosedTrade{}
	}
	if positions == nil {
		positions = []*models.Position{}
	}
	e := Emergency{Snapshot: s, ClosedTrades: trades, OpenPositions: positions}
	if err := writeJSON(path, e); err != nil {
		return "", fmt.Errorf("Writer.SaveEmergency: %w", err)
	}
	w.log.Info("[SAVE] 🚨 аварийное сохранение: %s", path)
	return path, nil
}

func (w *Writer) upload(ctx context.Context, f Files) {
	if w.archive == nil {
		return
	}
	for _, path := range []string{f.Statistics, f.Trades, f.Positions, f.Report} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			w.log.Error("[ARCHIVE] %s: %v", path, err)
			continue
		}
		ct := "application/json"
		if filepath.Ext(path) == ".txt" {
			ct = "text/plain; charset=utf-8"
		}
		key := w.sessionID + "/" + filepath.Base(path)
		if err = w.archive.Put(ctx, key, data, ct); err != nil {
			w.log.Error("[ARCHIVE] %s: %v", key, err)
			continue
		}
		w.log.Info("[ARCHIVE] ☁️ %s", key)
	}
}

func writeJSON(path string, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	// через временный файл: снимок либо старый, либо целиком новый
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadClosedTrades читает closed_trades_*.json.
func LoadClosedTrades(path string) ([]models.ClosedTrade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []models.ClosedTrade
	if err = sonic.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("LoadClosedTrades %s: %w", filepath.Base(path), err)
	}
	return out, nil
}
