// Package telegram feeds chat messages into the coordinator.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"pixelbot/internal/coordinator"
	"pixelbot/pkg/logx"
)

type Config struct {
	Enabled     bool          `json:"enabled"`
	Token       string        `json:"token"`
	PollTimeout time.Duration `json:"poll_timeout"`
	Operators   []int64       `json:"operators"`
}

type Adapter struct {
	cfg   Config
	bot   *tele.Bot
	coord *coordinator.Coordinator
	log   logx.Logger

	ops map[int64]bool
}

func New(cfg Config, coord *coordinator.Coordinator, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, bot: b, coord: coord, log: log, ops: make(map[int64]bool)}
	for _, id := range cfg.Operators {
		a.ops[id] = true
	}
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		cmd := coordinator.Command{
			UserID:   m.Sender.ID,
			UserName: displayName(m.Sender),
			Text:     m.Text,
			Operator: a.ops[m.Sender.ID],
		}
		if err := a.coord.Handle(context.Background(), cmd); err != nil {
			a.log.Warn("command failed", logx.Int64("uid", cmd.UserID), logx.Err(err))
		}
		return nil
	})
}

// Start runs the long poller until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	go a.bot.Start()
	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	a.log.Info("telegram adapter started")
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
