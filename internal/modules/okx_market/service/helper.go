package service

import (
	"fmt"
	"strings"
	"time"
)

func timeframeToDuration(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1H", "1h":
		return time.Hour
	case "2H", "2h":
		return 2 * time.Hour
	case "4H", "4h":
		return 4 * time.Hour
	case "1D", "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}

func okxBar(tf string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m", "3m", "5m", "15m", "30m":
		return strings.ToLower(tf), nil
	case "60m", "1h":
		return "1H", nil
	case "2h":
		return "2H", nil
	case "4h":
		return "4H", nil
	case "6h":
		return "6H", nil
	case "12h":
		return "12H", nil
	case "1d":
		return "1D", nil
	case "1w":
		return "1W", nil
	}
	return "", fmt.Errorf("unsupported timeframe for OKX bar: %q", tf)
}

// InstID переводит символ сигнала в инструмент OKX:
// BTCUSDT -> BTC-USDT-SWAP, уже готовые id не трогаем.
func InstID(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "-") {
		return s
	}
	for _, q := range []string{"USDT", "USDC"} {
		if base, ok := strings.CutSuffix(s, q); ok && base != "" {
			return base + "-" + q + "-SWAP"
		}
	}
	return s
}

// Symbol — обратное преобразование: BTC-USDT-SWAP -> BTCUSDT.
func Symbol(instID string) string {
	s := strings.TrimSuffix(strings.ToUpper(instID), "-SWAP")
	return strings.ReplaceAll(s, "-", "")
}
