package notify

import (
	"context"
	"fmt"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"virtual_trader/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// StatusProvider отвечает на команды чата текущим состоянием трейдера.
type StatusProvider interface {
	StatusText() string
	PositionsText() string
	PendingText() string
}

// Telegram — пассивный нотифайер + команды /status, /positions, /pending.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *logger.Logger

	mu     sync.RWMutex
	status StatusProvider
}

func NewTelegram(token string, chatID int64, log *logger.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	log.Info("[TG] бот авторизован как @%s", b.Self.UserName)
	return &Telegram{bot: b, chatID: chatID, log: log}, nil
}

func (t *Telegram) SetStatusProvider(p StatusProvider) {
	t.mu.Lock()
	t.status = p
	t.mu.Unlock()
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		t.log.Error("[TG] отправка: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) handleCommand(cmd string) {
	t.mu.RLock()
	p := t.status
	t.mu.RUnlock()
	if p == nil {
		t.Send("⏳ Трейдер ещё не запущен")
		return
	}

	switch cmd {
	case "status":
		t.Send(p.StatusText())
	case "positions":
		t.Send(p.PositionsText())
	case "pending":
		t.Send(p.PendingText())
	}
}

// Start: long-polling для команд из своего чата.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message != nil && upd.Message.Chat != nil &&
					upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {
					go t.handleCommand(upd.Message.Command())
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t == nil || t.bot == nil {
		return
	}
	t.bot.StopReceivingUpdates()
}

// Stdout — всё в лог.
type Stdout struct {
	log *logger.Logger
}

func NewStdout(log *logger.Logger) *Stdout         { return &Stdout{log: log} }
func (s *Stdout) Send(msg string)                  { s.log.Info("[NOTIFY] %s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { s.log.Info("[NOTIFY] "+format, args...) }
