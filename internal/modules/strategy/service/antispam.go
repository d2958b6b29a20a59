package service

import (
	"fmt"
	"time"

	"virtual_trader/internal/helper"
	"virtual_trader/internal/models"
)

type lastSignal struct {
	at    time.Time
	price float64
	side  models.Side
}

// antispam: кулдаун на символ, двойной кулдаун на разворот,
// минимальное изменение цены между сигналами.
type antispam struct {
	cooldown  time.Duration
	minChange float64
	last      map[string]lastSignal
}

func newAntispam(cooldown time.Duration, minChangePct float64) *antispam {
	return &antispam{
		cooldown:  cooldown,
		minChange: minChangePct / 100,
		last:      make(map[string]lastSignal),
	}
}

func (a *antispam) allow(sig models.Signal, now time.Time) (string, bool) {
	prev, ok := a.last[sig.Symbol]
	if !ok {
		return "", true
	}
	dt := now.Sub(prev.at)
	if dt < a.cooldown {
		return fmt.Sprintf("кулдаун %.1f/%.1f мин", dt.Minutes(), a.cooldown.Minutes()), false
	}
	if prev.side != sig.Side && dt < 2*a.cooldown {
		return fmt.Sprintf("разворот раньше %.1f мин", (2 * a.cooldown).Minutes()), false
	}
	if helper.PctDiff(sig.Price, prev.price) < a.minChange {
		return "цена почти не изменилась", false
	}
	return "", true
}

func (a *antispam) register(sig models.Signal, now time.Time) {
	a.last[sig.Symbol] = lastSignal{at: now, price: sig.Price, side: sig.Side}
}
