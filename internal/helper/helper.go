package helper

import (
	"fmt"
	"math"
	"runtime/debug"
	"time"
)

// MinutesToTF: 15 -> "15m", 60 -> "1h".
func MinutesToTF(minutes int) string {
	switch {
	case minutes <= 0:
		return "15m"
	case minutes%1440 == 0:
		return fmt.Sprintf("%dd", minutes/1440)
	case minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func MinutesBetween(from, to time.Time) float64 {
	return to.Sub(from).Minutes()
}

// PctDiff — |a−b|/b, ноль при b == 0.
func PctDiff(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return math.Abs(a-b) / math.Abs(b)
}

// Guard выполняет fn и превращает панику в ошибку,
// чтобы сбой одного символа не ронял весь цикл.
func Guard(scope string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v\n%s", scope, r, debug.Stack())
		}
	}()
	return fn()
}
