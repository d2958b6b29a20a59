package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// StreamTickers держит WS-подписку на канал tickers и обновляет кэш последних цен.
// Блокирует до отмены ctx, при обрыве переподключается.
func (c *Client) StreamTickers(ctx context.Context, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	args := make([]map[string]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  InstID(s),
		})
	}

	for {
		if ctx.Err() != nil {
			return
		}
		c.log.Info("[WS] подключение tickers, инструментов: %d", len(args))
		if err := c.readTickers(ctx, args); err != nil {
			c.log.Warn("[WS] tickers: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) readTickers(ctx context.Context, args []map[string]string) error {
	conn, _, err := c.wsDialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
		return err
	}

	// OKX рвёт соединение без пинга раз в 30s
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(20 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if string(msg) == "pong" {
			continue
		}

		var frame struct {
			Arg struct {
				Channel string `json:"channel"`
			} `json:"arg"`
			Data []okxTicker `json:"data"`
		}
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Arg.Channel != "tickers" {
			continue
		}
		for _, t := range frame.Data {
			if last, err := strconv.ParseFloat(t.Last, 64); err == nil && last > 0 {
				c.storePrice(t.InstID, last)
			}
		}
	}
}
