package storage

import (
	"context"
	"sort"
	"sync"

	"pixelbot/internal/model"
)

// Memory is a map-backed Store. It backs the "memory" driver and doubles as
// the store fake in component tests; FailWrites simulates an unavailable
// backend for write-back failure paths.
type Memory struct {
	mu     sync.Mutex
	users  map[int64]model.User
	pixels map[int64]model.Pixel
	cells  map[int]int64
	colors map[int]string

	// FailWrites, when set, makes every mutating call return ErrClosed.
	FailWrites bool
	// Upserts counts UpsertUser calls, including failed ones.
	Upserts int
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[int64]model.User),
		pixels: make(map[int64]model.Pixel),
		cells:  make(map[int]int64),
		colors: make(map[int]string),
	}
}

func (m *Memory) FindUser(_ context.Context, uid int64) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, false, nil
	}
	cp := u
	return &cp, true, nil
}

func (m *Memory) UpsertUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts++
	if m.FailWrites {
		return ErrClosed
	}
	m.users[u.UID] = *u
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		cp := u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (m *Memory) InsertPixel(_ context.Context, p *model.Pixel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrClosed
	}
	m.pixels[p.ID] = *p
	return nil
}

func (m *Memory) FindPixel(_ context.Context, id int64) (*model.Pixel, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pixels[id]
	if !ok {
		return nil, false, nil
	}
	cp := p
	return &cp, true, nil
}

func (m *Memory) MaxPixelID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for id := range m.pixels {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (m *Memory) UpsertCell(_ context.Context, c model.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrClosed
	}
	m.cells[c.Pos] = c.PixelID
	return nil
}

func (m *Memory) ListCells(_ context.Context) ([]model.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Cell, 0, len(m.cells))
	for pos, id := range m.cells {
		out = append(out, model.Cell{Pos: pos, PixelID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out, nil
}

func (m *Memory) ListColors(_ context.Context) ([]model.Color, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Color, 0, len(m.colors))
	for id, hex := range m.colors {
		out = append(out, model.Color{ID: id, Hex: hex})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SeedColors(_ context.Context, colors []model.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrClosed
	}
	for _, c := range colors {
		m.colors[c.ID] = c.Hex
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }
