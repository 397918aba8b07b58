package canvas

import (
	"context"
	"testing"
	"time"

	"pixelbot/internal/model"
	"pixelbot/internal/ratelimit"
	"pixelbot/internal/storage"
	"pixelbot/pkg/logx"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCanvas(t *testing.T, cols, rows int) (*Canvas, *storage.Memory, *clock) {
	t.Helper()
	st := storage.NewMemory()
	ctx := context.Background()
	if err := st.SeedColors(ctx, []model.Color{{ID: 0, Hex: "#fff"}, {ID: 1, Hex: "#000"}}); err != nil {
		t.Fatal(err)
	}
	c := New(st, ratelimit.New(3*time.Second, logx.Nop()), logx.Nop())
	if err := c.Configure(cols, rows); err != nil {
		t.Fatal(err)
	}
	if err := c.Load(ctx); err != nil {
		t.Fatal(err)
	}
	ck := &clock{t: time.Now()}
	c.now = ck.now
	return c, st, ck
}

func TestConfigureInvariants(t *testing.T) {
	t.Parallel()
	c := New(storage.NewMemory(), ratelimit.New(0, logx.Nop()), logx.Nop())
	if _, err := c.Draw(context.Background(), 1, 0, 0, 0); err != ErrNotConfigured {
		t.Fatalf("draw before configure: err = %v, want ErrNotConfigured", err)
	}
	if err := c.Configure(4, 4); err != nil {
		t.Fatal(err)
	}
	if err := c.Configure(4, 4); err != ErrConfigured {
		t.Fatalf("second configure: err = %v, want ErrConfigured", err)
	}

	// pos = y + x*cols collides or overflows on rectangular grids, so they
	// are rejected up front.
	c2 := New(storage.NewMemory(), ratelimit.New(0, logx.Nop()), logx.Nop())
	if err := c2.Configure(2, 4); err == nil {
		t.Fatal("non-square grid must be rejected")
	}
}

func TestDrawRejectsOutOfRangeAndUnknownColor(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestCanvas(t, 4, 4)
	ctx := context.Background()

	for _, tc := range []struct{ x, y int }{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		res, err := c.Draw(ctx, 1, tc.x, tc.y, 0)
		if err != nil {
			t.Fatal(err)
		}
		if res.Verdict != OutOfRange {
			t.Fatalf("(%d,%d): verdict = %v, want out of range", tc.x, tc.y, res.Verdict)
		}
	}
	res, err := c.Draw(ctx, 1, 0, 0, 99)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != UnknownColor {
		t.Fatalf("verdict = %v, want unknown color", res.Verdict)
	}
	// Rejections leave the grid untouched.
	for _, v := range c.Snapshot().Cells {
		if v != model.EmptyCell {
			t.Fatal("rejected draws must not touch the grid")
		}
	}
}

func TestDrawCooldownEndToEnd(t *testing.T) {
	t.Parallel()
	c, st, ck := newTestCanvas(t, 4, 4)
	ctx := context.Background()

	res, err := c.Draw(ctx, 1, 0, 0, 1)
	if err != nil || res.Verdict != Accepted {
		t.Fatalf("first draw: %+v, %v", res, err)
	}
	if got := c.ColorAt(0, 0); got != 1 {
		t.Fatalf("ColorAt(0,0) = %d, want 1", got)
	}
	if res.Pixel.Pos != 0 {
		t.Fatalf("pos = %d, want 0", res.Pixel.Pos)
	}

	// Immediate second draw by the same actor is throttled.
	res, err = c.Draw(ctx, 1, 1, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != Throttled {
		t.Fatalf("verdict = %v, want throttled", res.Verdict)
	}

	// After the window it succeeds; pos = y + x*cols = 1 + 1*4 = 5.
	ck.advance(3 * time.Second)
	res, err = c.Draw(ctx, 1, 1, 1, 0)
	if err != nil || res.Verdict != Accepted {
		t.Fatalf("post-cooldown draw: %+v, %v", res, err)
	}
	if res.Pixel.Pos != 5 {
		t.Fatalf("pos = %d, want 5", res.Pixel.Pos)
	}
	if got := c.Snapshot().Cells[5]; got != 0 {
		t.Fatalf("cells[5] = %d, want 0", got)
	}

	// Both pixels and cells were persisted immediately.
	if max, _ := st.MaxPixelID(ctx); max != 2 {
		t.Fatalf("MaxPixelID = %d, want 2", max)
	}
	cells, _ := st.ListCells(ctx)
	if len(cells) != 2 {
		t.Fatalf("persisted cells = %d, want 2", len(cells))
	}
}

func TestDrawRangeIgnoresCooldown(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestCanvas(t, 8, 8)
	ctx := context.Background()

	// A fresh single draw puts the actor on cooldown...
	if res, err := c.Draw(ctx, 1, 7, 7, 0); err != nil || res.Verdict != Accepted {
		t.Fatalf("single draw: %+v, %v", res, err)
	}
	// ...and a 3x3 batch by the same actor still lands completely.
	accepted, err := c.DrawRange(ctx, 1, 0, 2, 0, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 9 {
		t.Fatalf("accepted = %d, want 9", len(accepted))
	}
}

func TestDrawRangePartialApplication(t *testing.T) {
	t.Parallel()
	c, _, _ := newTestCanvas(t, 4, 4)
	ctx := context.Background()

	// The x range walks off the grid; in-range cells still land.
	accepted, err := c.DrawRange(ctx, 1, 2, 5, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 2 {
		t.Fatalf("accepted = %d, want 2 (x=2 and x=3)", len(accepted))
	}
}

func TestPixelIDsAreSequentialAcrossRestart(t *testing.T) {
	t.Parallel()
	c, st, _ := newTestCanvas(t, 4, 4)
	ctx := context.Background()

	res, err := c.Draw(ctx, 1, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pixel.ID != 1 {
		t.Fatalf("first id = %d, want 1", res.Pixel.ID)
	}

	// A second canvas over the same store continues the sequence and
	// rebuilds the grid from history.
	c2 := New(st, ratelimit.New(3*time.Second, logx.Nop()), logx.Nop())
	if err := c2.Configure(4, 4); err != nil {
		t.Fatal(err)
	}
	if err := c2.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := c2.ColorAt(0, 0); got != 1 {
		t.Fatalf("rebuilt ColorAt(0,0) = %d, want 1", got)
	}
	res2, err := c2.Draw(ctx, 2, 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Pixel.ID != 2 {
		t.Fatalf("id after restart = %d, want 2", res2.Pixel.ID)
	}
}

func TestLoadRequiresPalette(t *testing.T) {
	t.Parallel()
	c := New(storage.NewMemory(), ratelimit.New(0, logx.Nop()), logx.Nop())
	if err := c.Configure(4, 4); err != nil {
		t.Fatal(err)
	}
	if err := c.Load(context.Background()); err != ErrNoPalette {
		t.Fatalf("err = %v, want ErrNoPalette", err)
	}
}
