package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "bot.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, ok, err := st.FindUser(ctx, 42)
	require.NoError(t, err)
	require.False(t, ok)

	u := model.NewUser(42, "alice")
	u.DotsDrawn = 3
	require.NoError(t, st.UpsertUser(ctx, u))

	got, ok, err := st.FindUser(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u, got)

	// Upsert of the same key updates in place.
	u.DotsDrawn = 4
	require.NoError(t, st.UpsertUser(ctx, u))
	got, _, err = st.FindUser(ctx, 42)
	require.NoError(t, err)
	require.EqualValues(t, 4, got.DotsDrawn)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestPixelSequenceSeed(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	max, err := st.MaxPixelID(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, max)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, st.InsertPixel(ctx, &model.Pixel{ID: 7, Pos: 3, At: at, ColorID: 1, UserID: 42}))

	max, err = st.MaxPixelID(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 7, max)

	p, ok, err := st.FindPixel(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, p.Pos)
	require.True(t, p.At.Equal(at))
}

func TestCellUpsertKeepsLatest(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCell(ctx, model.Cell{Pos: 5, PixelID: 1}))
	require.NoError(t, st.UpsertCell(ctx, model.Cell{Pos: 5, PixelID: 9}))

	cells, err := st.ListCells(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Cell{{Pos: 5, PixelID: 9}}, cells)
}

func TestColorSeedAndList(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	seed := []model.Color{{ID: 0, Hex: "#fff"}, {ID: 1, Hex: "#000"}}
	require.NoError(t, st.SeedColors(ctx, seed))
	got, err := st.ListColors(ctx)
	require.NoError(t, err)
	require.Equal(t, seed, got)
}

func TestPingAfterClose(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	require.NoError(t, st.Ping(context.Background()))
	require.NoError(t, st.Close())
	require.Error(t, st.Ping(context.Background()))
}
