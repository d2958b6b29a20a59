package service

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"virtual_trader/internal/helper"
	"virtual_trader/internal/models"
)

// GetCandles: строки OKX [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm], newest-first.
// Возвращает свечи по возрастанию времени.
func (c *Client) GetCandles(ctx context.Context, instID, tf string, limit int) ([]models.CandleTick, error) {
	if limit <= 0 {
		limit = 100
	}
	bar, err := okxBar(tf)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]string
	err = c.withRetry(ctx, func() error {
		var e error
		rows, e = getJSON[[]string](ctx, c, "/api/v5/market/candles", q)
		return e
	})
	if err != nil {
		return nil, err
	}

	tfDur := timeframeToDuration(bar)
	out := make([]models.CandleTick, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if tick, ok := parseCandleRow(rows[i], instID, bar, tfDur); ok {
			out = append(out, tick)
		}
	}
	return out, nil
}

// GetOHLCV — источник свечей для timing-очереди и проверки выходов.
// Любая ошибка превращается в пустой набор: вызывающий просто пропускает символ.
func (c *Client) GetOHLCV(ctx context.Context, symbol string, intervalMinutes, limit int) []models.CandleTick {
	instID := InstID(symbol)
	candles, err := c.GetCandles(ctx, instID, helper.MinutesToTF(intervalMinutes), limit)
	if err != nil {
		c.log.Warn("[MARKET] свечи %s: %v", instID, err)
		return nil
	}
	return candles
}

func parseCandleRow(row []string, instID, bar string, tfDur time.Duration) (models.CandleTick, bool) {
	if len(row) < 5 {
		return models.CandleTick{}, false
	}
	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.CandleTick{}, false
	}
	open, err1 := strconv.ParseFloat(row[1], 64)
	high, err2 := strconv.ParseFloat(row[2], 64)
	low, err3 := strconv.ParseFloat(row[3], 64)
	closep, err4 := strconv.ParseFloat(row[4], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || closep <= 0 {
		return models.CandleTick{}, false
	}

	start := time.UnixMilli(tsMs).UTC()
	var vol, volQuote float64
	if len(row) >= 6 {
		vol, _ = strconv.ParseFloat(row[5], 64)
	}
	if len(row) >= 8 {
		volQuote, _ = strconv.ParseFloat(row[7], 64)
	}

	return models.CandleTick{
		InstID:       instID,
		Open:         open,
		High:         high,
		Low:          low,
		Close:        closep,
		Volume:       vol,
		QuoteVolume:  volQuote,
		Start:        start,
		End:          start.Add(tfDur),
		TimeframeRaw: bar,
	}, true
}
