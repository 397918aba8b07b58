// Package coordinator sequences chat commands through the core components
// and publishes the resulting events.
package coordinator

import (
	"context"

	"pixelbot/internal/broadcast"
	"pixelbot/internal/canvas"
	"pixelbot/internal/model"
	"pixelbot/internal/playlist"
	"pixelbot/internal/usercache"
	"pixelbot/pkg/logx"
)

// Command is one parsed-enough chat event: the transport has identified the
// sender, the text is still raw.
type Command struct {
	UserID   int64
	UserName string
	Text     string
	Operator bool
}

// Gift is a currency event from the chat platform.
type Gift struct {
	UserID   int64  `json:"uid"`
	UserName string `json:"name"`
	CoinType string `json:"coin_type"` // "gold" or "silver"
	Amount   int64  `json:"amount"`
}

type Coordinator struct {
	users    *usercache.Cache
	canvas   *canvas.Canvas
	queue    *playlist.Queue
	canvasCh *broadcast.Channel
	chatCh   *broadcast.Channel
	log      logx.Logger
}

func New(users *usercache.Cache, cv *canvas.Canvas, queue *playlist.Queue, canvasCh, chatCh *broadcast.Channel, log logx.Logger) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Coordinator{
		users:    users,
		canvas:   cv,
		queue:    queue,
		canvasCh: canvasCh,
		chatCh:   chatCh,
		log:      log,
	}
}

// Handle runs one chat command end to end. Policy rejections are silent
// no-ops toward the sender; only infrastructure faults come back as errors.
func (c *Coordinator) Handle(ctx context.Context, cmd Command) error {
	act := parse(cmd.Text)
	switch act.kind {
	case actionDraw:
		return c.draw(ctx, cmd, act)
	case actionDrawRect:
		return c.drawRect(ctx, cmd, act)
	case actionPlay:
		return c.play(ctx, cmd, act.query)
	case actionSkip:
		return c.skip(ctx, cmd)
	default:
		// Plain chatter goes straight to the chat feed.
		c.chatCh.Publish(model.Message{
			Type: model.MsgTextMessage,
			Data: chatEvent{Name: cmd.UserName, Text: cmd.Text},
		})
		return nil
	}
}

type chatEvent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type drawEvent struct {
	Name    string `json:"name"`
	Pos     int    `json:"pos"`
	ColorID int    `json:"color_id"`
}

func (c *Coordinator) draw(ctx context.Context, cmd Command, act action) error {
	res, err := c.canvas.Draw(ctx, cmd.UserID, act.x, act.y, act.color)
	if err != nil {
		return err
	}
	if res.Verdict != canvas.Accepted {
		c.log.Debug("draw rejected", logx.Int64("uid", cmd.UserID), logx.String("why", res.Verdict.String()))
		return nil
	}
	user, err := c.users.Update(ctx, cmd.UserID, cmd.UserName, func(u *model.User) {
		u.DotsDrawn++
	})
	if err != nil {
		return err
	}
	c.canvasCh.Publish(model.Message{
		Type: model.MsgDrawPixel,
		Data: drawEvent{Name: user.Name, Pos: res.Pixel.Pos, ColorID: res.Pixel.ColorID},
	})
	return nil
}

// drawRect gates the batch on the actor's quota instead of the per-draw
// cooldown: the whole area must fit in the current weight, and each accepted
// cell spends one point. Application is partial, no rollback.
//
// The weight for the whole area is reserved up front so two concurrent
// batches cannot both pass the gate on the same points; cells that fall
// outside the grid are refunded afterwards.
func (c *Coordinator) drawRect(ctx context.Context, cmd Command, act action) error {
	area := int64(abs(act.x1-act.x0)+1) * int64(abs(act.y1-act.y0)+1)
	reserved := false
	user, err := c.users.Update(ctx, cmd.UserID, cmd.UserName, func(u *model.User) {
		if area <= u.Weight {
			u.Weight -= area
			reserved = true
		}
	})
	if err != nil {
		return err
	}
	if !reserved {
		c.log.Debug("batch draw over quota", logx.Int64("uid", cmd.UserID), logx.Int64("area", area), logx.Int64("weight", user.Weight))
		return nil
	}
	accepted, err := c.canvas.DrawRange(ctx, cmd.UserID, act.x0, act.x1, act.y0, act.y1, act.color)
	if _, uerr := c.users.Update(ctx, cmd.UserID, cmd.UserName, func(u *model.User) {
		u.Weight += area - int64(len(accepted))
		u.DotsDrawn += int64(len(accepted))
	}); uerr != nil && err == nil {
		err = uerr
	}
	for _, p := range accepted {
		c.canvasCh.Publish(model.Message{
			Type: model.MsgDrawPixel,
			Data: drawEvent{Name: user.Name, Pos: p.Pos, ColorID: p.ColorID},
		})
	}
	return err
}

func (c *Coordinator) play(ctx context.Context, cmd Command, query string) error {
	user, err := c.users.GetOrCreate(ctx, cmd.UserID, cmd.UserName)
	if err != nil {
		return err
	}
	song, ok := c.queue.Submit(ctx, &user, query)
	if !ok {
		return nil
	}
	if _, err := c.users.Update(ctx, cmd.UserID, cmd.UserName, func(u *model.User) {
		u.MusicOrdered++
	}); err != nil {
		return err
	}
	c.log.Debug("song ordered", logx.Int64("uid", user.UID), logx.Int64("track", song.TrackID))
	c.publishPlaylist(ctx)
	return nil
}

// skip advances the queue when the caller owns the current song, is an
// operator, or the current pick is ambient.
func (c *Coordinator) skip(ctx context.Context, cmd Command) error {
	cur := c.queue.Current(ctx)
	if cur == nil {
		return nil
	}
	if !cur.Ambient && cur.UserID != cmd.UserID && !cmd.Operator {
		c.log.Debug("skip denied", logx.Int64("uid", cmd.UserID), logx.Int64("owner", cur.UserID))
		return nil
	}
	c.advance(ctx, cur)
	return nil
}

// Skip force-advances the queue (control surface, already authorized).
func (c *Coordinator) Skip(ctx context.Context) {
	c.advance(ctx, c.queue.Current(ctx))
}

func (c *Coordinator) advance(ctx context.Context, skipped *model.Song) {
	c.queue.Advance(ctx)
	if skipped != nil {
		c.chatCh.Publish(model.Message{Type: model.MsgSkipSong, Data: skipped})
	}
	c.publishPlaylist(ctx)
}

// HandleGift credits a currency event to the sender.
func (c *Coordinator) HandleGift(ctx context.Context, g Gift) error {
	if _, err := c.users.Update(ctx, g.UserID, g.UserName, func(u *model.User) {
		switch g.CoinType {
		case "gold":
			u.GoldCoin += g.Amount
		default:
			u.SilverCoin += g.Amount
		}
	}); err != nil {
		return err
	}
	c.chatCh.Publish(model.Message{Type: model.MsgReceiveGift, Data: g})
	return nil
}

func (c *Coordinator) publishPlaylist(ctx context.Context) {
	c.chatCh.Publish(model.Message{Type: model.MsgUpdatePlaylist, Data: c.queue.Songs(ctx)})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
