package service

import (
	"context"
	"sync"

	"virtual_trader/internal/models"
	"virtual_trader/pkg/logger"
)

type Market interface {
	GetOHLCV(ctx context.Context, symbol string, intervalMinutes, limit int) []models.CandleTick
	TopVolatile(ctx context.Context, n int) []string
}

type Config struct {
	Symbols         []string
	TopN            int
	IntervalMinutes int
	// сколько свечей должно быть у символа, чтобы он попал в список
	MinCandles  int
	Parallelism int
}

// Watchlist собирает список символов перед стартом: из конфига или топ
// волатильных, и отбрасывает те, по которым биржа не отдаёт свечи.
type Watchlist struct {
	cfg Config
	mx  Market
	log *logger.Logger
}

func NewWatchlist(cfg Config, mx Market, log *logger.Logger) *Watchlist {
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 15
	}
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = 50
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	return &Watchlist{cfg: cfg, mx: mx, log: log}
}

func (w *Watchlist) candidates(ctx context.Context) []string {
	if len(w.cfg.Symbols) > 0 {
		return w.cfg.Symbols
	}
	return w.mx.TopVolatile(ctx, w.cfg.TopN)
}

// Resolve прогревает свечи по каждому кандидату, порядок сохраняется.
func (w *Watchlist) Resolve(ctx context.Context) []string {
	syms := w.candidates(ctx)
	ok := make([]bool, len(syms))

	sem := make(chan struct{}, w.cfg.Parallelism)
	var wg sync.WaitGroup
	for i, sym := range syms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n := len(w.mx.GetOHLCV(ctx, sym, w.cfg.IntervalMinutes, w.cfg.MinCandles))
			if n < w.cfg.MinCandles {
				w.log.Info("[SKIP] %s: свечей %d из %d", sym, n, w.cfg.MinCandles)
				return
			}
			ok[i] = true
		}()
	}
	wg.Wait()

	out := make([]string, 0, len(syms))
	for i, sym := range syms {
		if ok[i] {
			out = append(out, sym)
		}
	}
	w.log.Info("[WATCHLIST] %d из %d символов с данными: %v", len(out), len(syms), out)
	return out
}
