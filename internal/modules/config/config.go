package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Service struct {
		Name      string `yaml:"name"`
		LogLevel  string `yaml:"log_level"`
		Host      string `yaml:"host"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	// Баланс и лимиты
	Trading struct {
		InitialBalance      float64 `yaml:"initial_balance"`
		PositionSizePercent float64 `yaml:"position_size_percent"` // 2.0 => 2% от начального баланса
		MaxExposurePercent  float64 `yaml:"max_exposure_percent"`  // 20.0 => не больше 20% в позициях

		Symbols   []string `yaml:"symbols"`
		WatchTopN int      `yaml:"watch_top_n"` // если symbols пуст — топ волатильных

		CycleInterval     time.Duration `yaml:"cycle_interval"`
		MaxCycles         int           `yaml:"max_cycles"` // 0 — без ограничения
		ReportEveryCycles int           `yaml:"report_every_cycles"`
		SaveEveryCycles   int           `yaml:"save_every_cycles"`
		ShutdownBudget    time.Duration `yaml:"shutdown_budget"`

		// защита от протухших входов на выходе из timing-очереди
		FreshnessMaxWait  time.Duration `yaml:"freshness_max_wait"`
		FreshnessMaxDrift float64       `yaml:"freshness_max_drift"`

		ResultsDir string `yaml:"results_dir"`
	} `yaml:"trading"`

	Strategy struct {
		IntervalMinutes int           `yaml:"interval_minutes"`
		EMAShort        int           `yaml:"ema_short"`
		EMALong         int           `yaml:"ema_long"`
		RSIPeriod       int           `yaml:"rsi_period"`
		RSIOverbought   float64       `yaml:"rsi_overbought"`
		RSIOversold     float64       `yaml:"rsi_oversold"`
		DonchianPeriod  int           `yaml:"donchian_period"`
		MinConfidence   float64       `yaml:"min_confidence"`
		Cooldown        time.Duration `yaml:"cooldown"`
	} `yaml:"strategy"`

	Market struct {
		BaseURL       string        `yaml:"base_url"`
		WSURL         string        `yaml:"ws_url"`
		MinInterval   time.Duration `yaml:"min_interval"`
		MaxRetries    uint64        `yaml:"max_retries"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		StreamTickers bool          `yaml:"stream_tickers"`
	} `yaml:"market"`

	Archive struct {
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		Endpoint  string `yaml:"endpoint"` // S3-совместимое хранилище, пусто — AWS
		Prefix    string `yaml:"prefix"`
		AccessKey string `yaml:"-"`
		SecretKey string `yaml:"-"`
	} `yaml:"archive"`

	Tracing struct {
		Enabled   bool   `yaml:"enabled"`
		AgentHost string `yaml:"agent_host"`
	} `yaml:"tracing"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := getenvDefault(configFilePathENV, "values_local.yaml")
	path := getenvDefault(configDirENV, "configs") + "/" + configFileName
	return Load(path)
}

// Load читает yaml поверх дефолтов из окружения.
func Load(path string) (_ *Config, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("config.Load: %w", err)
		}
	}()

	config := defaults()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if v := os.Getenv(chatTelegramENV); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		config.Trading.Symbols = splitList(v)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	c := &Config{}
	c.Service.Name = getenvDefault("SERVICE_NAME", "virtual_trader")
	c.Service.LogLevel = getenvDefault("LOG_LEVEL", "info")
	c.Service.Host = getenvDefault("HOST", "0.0.0.0")
	c.Service.AdminPort = intFromEnv("ADMIN_PORT", 8081)

	c.Trading.InitialBalance = floatFromEnv("INITIAL_BALANCE", 10000)
	c.Trading.PositionSizePercent = floatFromEnv("POSITION_SIZE_PERCENT", 2.0)
	c.Trading.MaxExposurePercent = floatFromEnv("MAX_EXPOSURE_PERCENT", 20.0)
	c.Trading.WatchTopN = intFromEnv("DEFAULT_WATCHLIST_TOP_N", 20)
	c.Trading.CycleInterval = durationFromEnv("CYCLE_INTERVAL", "60s")
	c.Trading.MaxCycles = intFromEnv("MAX_CYCLES", 0)
	c.Trading.ReportEveryCycles = intFromEnv("REPORT_EVERY_CYCLES", 10)
	c.Trading.SaveEveryCycles = intFromEnv("SAVE_EVERY_CYCLES", 20)
	c.Trading.ShutdownBudget = durationFromEnv("SHUTDOWN_BUDGET", "5s")
	c.Trading.FreshnessMaxWait = durationFromEnv("FRESHNESS_MAX_WAIT", "90m")
	c.Trading.FreshnessMaxDrift = floatFromEnv("FRESHNESS_MAX_DRIFT", 0.02)
	c.Trading.ResultsDir = getenvDefault("RESULTS_DIR", "virtual_trading_results_v2")

	c.Strategy.IntervalMinutes = intFromEnv("INTERVAL_MINUTES", 15)
	c.Strategy.EMAShort = intFromEnv("EMA_SHORT", 20)
	c.Strategy.EMALong = intFromEnv("EMA_LONG", 50)
	c.Strategy.RSIPeriod = intFromEnv("RSI_PERIOD", 14)
	c.Strategy.RSIOverbought = floatFromEnv("RSI_OVERBOUGHT", 65)
	c.Strategy.RSIOversold = floatFromEnv("RSI_OVERSOLD", 35)
	c.Strategy.DonchianPeriod = intFromEnv("DONCHIAN_PERIOD", 20)
	c.Strategy.MinConfidence = floatFromEnv("MIN_CONFIDENCE", 0.6)
	c.Strategy.Cooldown = durationFromEnv("COOLDOWN_PER_SYMBOL", "30m")

	c.Market.MinInterval = durationFromEnv("MARKET_MIN_INTERVAL", "200ms")
	c.Market.MaxRetries = uint64(intFromEnv("MARKET_MAX_RETRIES", 3))
	c.Market.RetryDelay = durationFromEnv("MARKET_RETRY_DELAY", "500ms")
	c.Market.StreamTickers = boolFromEnv("MARKET_STREAM_TICKERS", true)

	c.Archive.Bucket = os.Getenv("ARCHIVE_BUCKET")
	c.Archive.Region = getenvDefault("AWS_REGION", "us-east-1")
	c.Archive.Endpoint = os.Getenv("ARCHIVE_ENDPOINT")
	c.Archive.Prefix = getenvDefault("ARCHIVE_PREFIX", "virtual_trader")
	c.Archive.AccessKey = os.Getenv("ARCHIVE_ACCESS_KEY")
	c.Archive.SecretKey = os.Getenv("ARCHIVE_SECRET_KEY")

	c.Tracing.Enabled = boolFromEnv("TRACING_ENABLED", false)
	c.Tracing.AgentHost = getenvDefault("JAEGER_AGENT", "localhost:6831")
	return c
}

// Validate — проверка финансовых параметров до старта.
func (c *Config) Validate() error {
	t := c.Trading
	switch {
	case t.InitialBalance <= 0:
		return fmt.Errorf("initial_balance must be positive, got %v", t.InitialBalance)
	case t.PositionSizePercent <= 0 || t.PositionSizePercent > 100:
		return fmt.Errorf("position_size_percent must be in (0, 100], got %v", t.PositionSizePercent)
	case t.MaxExposurePercent < t.PositionSizePercent || t.MaxExposurePercent > 100:
		return fmt.Errorf("max_exposure_percent must be in [position_size_percent, 100], got %v", t.MaxExposurePercent)
	case t.CycleInterval <= 0:
		return fmt.Errorf("cycle_interval must be positive")
	case t.FreshnessMaxDrift <= 0:
		return fmt.Errorf("freshness_max_drift must be positive")
	case len(t.Symbols) == 0 && t.WatchTopN <= 0:
		return fmt.Errorf("either symbols or watch_top_n must be set")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.token is set")
	}
	if c.Strategy.EMAShort >= c.Strategy.EMALong {
		return fmt.Errorf("ema_short must be < ema_long")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
