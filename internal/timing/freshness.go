package timing

import (
	"fmt"
	"time"

	"virtual_trader/internal/helper"
	"virtual_trader/internal/models"
)

const (
	DefaultMaxWait  = 90 * time.Minute
	DefaultMaxDrift = 0.02
)

// ValidateFreshness — проверка готового сигнала перед открытием позиции:
// слишком долгое ожидание или уход цены от исходного сигнала.
func ValidateFreshness(sig models.Signal, maxWait time.Duration, maxDrift float64) error {
	if sig.Timing == nil {
		return nil
	}
	if maxWait > 0 && sig.Timing.WaitTimeMinutes > maxWait.Minutes() {
		return fmt.Errorf("signal %s stale: waited %.1f min > %.0f min",
			sig.Symbol, sig.Timing.WaitTimeMinutes, maxWait.Minutes())
	}
	orig := sig.Timing.OriginalSignalPrice
	if orig <= 0 {
		return nil
	}
	if drift := helper.PctDiff(sig.Price, orig); maxDrift > 0 && drift > maxDrift {
		return fmt.Errorf("signal %s stale: price drift %.2f%% > %.2f%%",
			sig.Symbol, drift*100, maxDrift*100)
	}
	return nil
}
