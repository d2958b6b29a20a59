package service

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type okxTicker struct {
	InstType string `json:"instType"`
	InstID   string `json:"instId"`
	Last     string `json:"last"`
	High24h  string `json:"high24h"`
	Low24h   string `json:"low24h"`
}

// GetCurrentPrice: свежая цена из WS-кэша, иначе REST /market/ticker.
// 0 — цены нет.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) float64 {
	instID := InstID(symbol)
	if p, ok := c.cachedPrice(instID); ok {
		return p
	}

	q := url.Values{}
	q.Set("instId", instID)

	var data []okxTicker
	err := c.withRetry(ctx, func() error {
		var e error
		data, e = getJSON[okxTicker](ctx, c, "/api/v5/market/ticker", q)
		return e
	})
	if err != nil {
		c.log.Warn("[MARKET] тикер %s: %v", instID, err)
		return 0
	}
	if len(data) == 0 {
		return 0
	}
	last, err := strconv.ParseFloat(data[0].Last, 64)
	if err != nil || last <= 0 {
		return 0
	}
	c.storePrice(instID, last)
	return last
}

// TopVolatile — n самых волатильных USDT-perp по диапазону 24h к цене.
func (c *Client) TopVolatile(ctx context.Context, n int) []string {
	if n <= 0 {
		return nil
	}

	q := url.Values{}
	q.Set("instType", "SWAP")

	var tickers []okxTicker
	err := c.withRetry(ctx, func() error {
		var e error
		tickers, e = getJSON[okxTicker](ctx, c, "/api/v5/market/tickers", q)
		return e
	})
	if err != nil {
		c.log.Warn("[MARKET] список тикеров: %v", err)
		return nil
	}

	type rec struct {
		sym   string
		score float64
	}
	arr := make([]rec, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.InstID, "-USDT-SWAP") {
			continue
		}
		last, err1 := strconv.ParseFloat(t.Last, 64)
		high, err2 := strconv.ParseFloat(t.High24h, 64)
		low, err3 := strconv.ParseFloat(t.Low24h, 64)
		if err1 != nil || err2 != nil || err3 != nil || last <= 0 || high <= low {
			continue
		}
		arr = append(arr, rec{sym: Symbol(t.InstID), score: (high - low) / last})
	}

	sort.SliceStable(arr, func(i, j int) bool { return arr[i].score > arr[j].score })
	if n > len(arr) {
		n = len(arr)
	}
	res := make([]string, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, arr[i].sym)
	}
	return res
}

func (c *Client) cachedPrice(instID string) (float64, bool) {
	c.mu.RLock()
	lp, ok := c.prices[instID]
	c.mu.RUnlock()
	if !ok || c.now().Sub(lp.at) > c.cfg.PriceTTL {
		return 0, false
	}
	return lp.price, true
}

func (c *Client) storePrice(instID string, price float64) {
	c.mu.Lock()
	c.prices[instID] = livePrice{price: price, at: c.now()}
	c.mu.Unlock()
}
