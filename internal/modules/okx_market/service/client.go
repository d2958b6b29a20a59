package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"virtual_trader/pkg/logger"
)

const (
	DefaultBaseURL = "https://www.okx.com"
	DefaultWSURL   = "wss://ws.okx.com:8443/ws/v5/public"
)

type Config struct {
	BaseURL string
	WSURL   string
	Timeout time.Duration
	// MinInterval — минимальный интервал между REST-запросами, 0 — без ограничения.
	MinInterval time.Duration
	MaxRetries  uint64
	RetryDelay  time.Duration
	// PriceTTL — сколько цена из WS-кэша считается свежей.
	PriceTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.WSURL == "" {
		c.WSURL = DefaultWSURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.PriceTTL <= 0 {
		c.PriceTTL = 30 * time.Second
	}
	return c
}

// Client — рыночные данные OKX: свечи, тикеры, поток последних цен.
// Все публичные методы деградируют до пустого результата, ошибки только в лог.
type Client struct {
	cfg      Config
	http     *http.Client
	wsDialer *websocket.Dialer
	limiter  *rate.Limiter
	log      *logger.Logger
	now      func() time.Time

	mu     sync.RWMutex
	prices map[string]livePrice
}

type livePrice struct {
	price float64
	at    time.Time
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	cfg = cfg.withDefaults()
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		wsDialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		limiter:  lim,
		log:      log,
		now:      time.Now,
		prices:   make(map[string]livePrice),
	}
}

func (c *Client) SetClock(now func() time.Time) { c.now = now }

// okxEnvelope — общий конверт ответов /api/v5.
type okxEnvelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string { return fmt.Sprintf("http %d: %s", e.code, e.body) }

// retryable: сеть, 429 и 5xx; остальное повторять бессмысленно.
func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		return he.code == http.StatusTooManyRequests || he.code >= 500
	}
	var oe *apiError
	if errors.As(err, &oe) {
		// 50011 — rate limit, 50001/50013 — сервис занят
		return oe.code == "50011" || oe.code == "50001" || oe.code == "50013"
	}
	return true
}

type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string { return fmt.Sprintf("okx error: code=%s msg=%s", e.code, e.msg) }

// getJSON — один GET к REST API с ожиданием лимитера, без повторов.
func getJSON[T any](ctx context.Context, c *Client, path string, q url.Values) (_ []T, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Client.get %s: %w", path, err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, &httpStatusError{code: resp.StatusCode, body: string(b)}
	}

	var env okxEnvelope[T]
	if err := sonic.Unmarshal(b, &env); err != nil {
		return nil, backoff.Permanent(err)
	}
	if env.Code != "0" {
		return nil, &apiError{code: env.Code, msg: env.Msg}
	}
	return env.Data, nil
}

// withRetry повторяет op с экспоненциальной паузой, пока ошибка временная.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryDelay
	eb.MaxInterval = 8 * c.cfg.RetryDelay
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.MaxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
