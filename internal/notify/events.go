package notify

import "virtual_trader/internal/models"

// Events пересылает события позиций в Notifier.
type Events struct {
	n Notifier
}

func NewEvents(n Notifier) *Events { return &Events{n: n} }

func (e *Events) OnOpen(p *models.Position) {
	e.n.Send(FormatEntry(p))
}

func (e *Events) OnExit(p *models.Position, t models.ClosedTrade) {
	e.n.Send(FormatExit(p, t))
}
