// Package canvas owns the shared pixel grid.
//
// Grid positions use the reference layout pos = y + x*cols. The grid is
// rebuilt from persisted draw history at startup and mutated in place on
// every accepted draw; pixel ids come from a single sequence seeded from
// the persisted maximum.
package canvas

import (
	"context"
	"errors"
	"sync"
	"time"

	"pixelbot/internal/model"
	"pixelbot/internal/ratelimit"
	"pixelbot/pkg/logx"
)

var (
	ErrConfigured    = errors.New("canvas already configured")
	ErrNotConfigured = errors.New("canvas not configured")
	ErrNoPalette     = errors.New("color palette is empty")
)

// Verdict classifies a draw attempt. Only Accepted carries a pixel;
// everything else is a policy rejection, not an error.
type Verdict int

const (
	Accepted Verdict = iota
	OutOfRange
	UnknownColor
	Throttled
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case OutOfRange:
		return "out of range"
	case UnknownColor:
		return "unknown color"
	case Throttled:
		return "throttled"
	default:
		return "unknown"
	}
}

// DrawResult reports one draw attempt. Wait is only set when throttled.
type DrawResult struct {
	Pixel   *model.Pixel
	Verdict Verdict
	Wait    time.Duration
}

// Store is the slice of the entity store the canvas needs.
type Store interface {
	InsertPixel(ctx context.Context, p *model.Pixel) error
	FindPixel(ctx context.Context, id int64) (*model.Pixel, bool, error)
	MaxPixelID(ctx context.Context) (int64, error)
	UpsertCell(ctx context.Context, c model.Cell) error
	ListCells(ctx context.Context) ([]model.Cell, error)
	ListColors(ctx context.Context) ([]model.Color, error)
}

// Canvas is safe for concurrent use.
type Canvas struct {
	mu      sync.Mutex
	cols    int
	rows    int
	cells   []int
	palette map[int]string
	nextID  int64

	store  Store
	buffer *ratelimit.Buffer
	log    logx.Logger
	now    func() time.Time
}

func New(store Store, buffer *ratelimit.Buffer, log logx.Logger) *Canvas {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Canvas{store: store, buffer: buffer, log: log, now: time.Now}
}

// Configure fixes the grid dimensions. Must be called exactly once before
// Load or any draw; a second call is an invariant violation. The grid must
// be square: the position layout pos = y + x*cols is only bijective when
// cols == rows.
func (c *Canvas) Configure(cols, rows int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cells != nil {
		return ErrConfigured
	}
	if cols <= 0 || rows <= 0 {
		return errors.New("canvas dimensions must be positive")
	}
	if cols != rows {
		return errors.New("canvas grid must be square")
	}
	c.cols = cols
	c.rows = rows
	c.cells = make([]int, cols*rows)
	for i := range c.cells {
		c.cells[i] = model.EmptyCell
	}
	return nil
}

// Load reads the palette and replays persisted cells into the grid, then
// seeds the pixel id sequence from the stored maximum.
func (c *Canvas) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cells == nil {
		return ErrNotConfigured
	}

	colors, err := c.store.ListColors(ctx)
	if err != nil {
		return err
	}
	if len(colors) == 0 {
		return ErrNoPalette
	}
	c.palette = make(map[int]string, len(colors))
	for _, col := range colors {
		c.palette[col.ID] = col.Hex
	}

	cells, err := c.store.ListCells(ctx)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		if cell.Pos < 0 || cell.Pos >= len(c.cells) {
			continue
		}
		p, ok, err := c.store.FindPixel(ctx, cell.PixelID)
		if err != nil {
			return err
		}
		if ok {
			c.cells[cell.Pos] = p.ColorID
		}
	}

	max, err := c.store.MaxPixelID(ctx)
	if err != nil {
		return err
	}
	c.nextID = max
	c.log.Info("canvas loaded",
		logx.Int("cols", c.cols), logx.Int("rows", c.rows),
		logx.Int("cells", len(cells)), logx.Int64("last_pixel", max))
	return nil
}

// Draw applies one cooldown-gated pixel. Policy rejections come back in the
// verdict; an error means the store call did not complete.
func (c *Canvas) Draw(ctx context.Context, actorID int64, x, y, colorID int) (DrawResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draw(ctx, actorID, x, y, colorID, false)
}

// DrawRange draws the cross product of two inclusive ranges, skipping the
// per-draw cooldown (the caller has done its own aggregate admission).
// Application is partial: the accepted subset is returned even on error.
func (c *Canvas) DrawRange(ctx context.Context, actorID int64, x0, x1, y0, y1, colorID int) ([]*model.Pixel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	var accepted []*model.Pixel
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			res, err := c.draw(ctx, actorID, x, y, colorID, true)
			if err != nil {
				return accepted, err
			}
			if res.Verdict == Accepted {
				accepted = append(accepted, res.Pixel)
			}
		}
	}
	return accepted, nil
}

// draw holds c.mu. Check order: bounds, palette, cooldown.
func (c *Canvas) draw(ctx context.Context, actorID int64, x, y, colorID int, force bool) (DrawResult, error) {
	if c.cells == nil {
		return DrawResult{}, ErrNotConfigured
	}
	pos, ok := c.pos(x, y)
	if !ok {
		c.log.Debug("draw out of range", logx.Int("x", x), logx.Int("y", y))
		return DrawResult{Verdict: OutOfRange}, nil
	}
	if _, ok := c.palette[colorID]; !ok {
		c.log.Debug("unknown color", logx.Int("color", colorID))
		return DrawResult{Verdict: UnknownColor}, nil
	}
	now := c.now()
	if force {
		c.buffer.Force(actorID, now)
	} else if ok, wait := c.buffer.Attempt(actorID, now); !ok {
		return DrawResult{Verdict: Throttled, Wait: wait}, nil
	}

	c.nextID++
	pixel := &model.Pixel{
		ID:      c.nextID,
		Pos:     pos,
		At:      now,
		ColorID: colorID,
		UserID:  actorID,
	}
	if err := c.store.InsertPixel(ctx, pixel); err != nil {
		return DrawResult{}, err
	}
	if err := c.store.UpsertCell(ctx, model.Cell{Pos: pos, PixelID: pixel.ID}); err != nil {
		return DrawResult{}, err
	}
	c.cells[pos] = colorID
	c.log.Debug("pixel drawn", logx.Int64("id", pixel.ID), logx.Int("pos", pos), logx.Int64("actor", actorID))
	return DrawResult{Pixel: pixel, Verdict: Accepted}, nil
}

func (c *Canvas) pos(x, y int) (int, bool) {
	if x < 0 || x >= c.cols || y < 0 || y >= c.rows {
		return 0, false
	}
	return y + x*c.cols, true
}

// Snapshot returns the whole grid for cold-start delivery to a new
// observer.
func (c *Canvas) Snapshot() model.CanvasSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	cells := make([]int, len(c.cells))
	copy(cells, c.cells)
	colors := make(map[int]string, len(c.palette))
	for id, hex := range c.palette {
		colors[id] = hex
	}
	return model.CanvasSnapshot{Cols: c.cols, Rows: c.rows, Colors: colors, Cells: cells}
}

// ColorAt reports the color index at (x, y), or EmptyCell.
func (c *Canvas) ColorAt(x, y int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.pos(x, y)
	if !ok {
		return model.EmptyCell
	}
	return c.cells[pos]
}
