package storage

import (
	sq "github.com/Masterminds/squirrel"

	"pixelbot/internal/model"
)

// Statement builders for the four tables. Column order here is the single
// source of truth; scan helpers below must match it.

var (
	userCols  = []string{"uid", "name", "gold_coin", "silver_coin", "music_ordered", "dots_drawn", "weight"}
	pixelCols = []string{"id", "pos", "at", "color_id", "user_id"}
)

func selectUser(uid int64) sq.SelectBuilder {
	return sq.Select(userCols...).From("users").Where(sq.Eq{"uid": uid})
}

func selectUsers() sq.SelectBuilder {
	return sq.Select(userCols...).From("users").OrderBy("uid")
}

func upsertUser(u *model.User) sq.InsertBuilder {
	return sq.Insert("users").
		Columns(userCols...).
		Values(u.UID, u.Name, u.GoldCoin, u.SilverCoin, u.MusicOrdered, u.DotsDrawn, u.Weight).
		Suffix(`ON CONFLICT(uid) DO UPDATE SET
			name=excluded.name,
			gold_coin=excluded.gold_coin,
			silver_coin=excluded.silver_coin,
			music_ordered=excluded.music_ordered,
			dots_drawn=excluded.dots_drawn,
			weight=excluded.weight`)
}

func insertPixel(p *model.Pixel, at string) sq.InsertBuilder {
	return sq.Insert("pixel_history").
		Columns(pixelCols...).
		Values(p.ID, p.Pos, at, p.ColorID, p.UserID)
}

func selectPixel(id int64) sq.SelectBuilder {
	return sq.Select(pixelCols...).From("pixel_history").Where(sq.Eq{"id": id})
}

func selectMaxPixelID() sq.SelectBuilder {
	return sq.Select("COALESCE(MAX(id), 0)").From("pixel_history")
}

func upsertCell(c model.Cell) sq.InsertBuilder {
	return sq.Insert("canvas_cells").
		Columns("pos", "pixel_id").
		Values(c.Pos, c.PixelID).
		Suffix("ON CONFLICT(pos) DO UPDATE SET pixel_id=excluded.pixel_id")
}

func selectCells() sq.SelectBuilder {
	return sq.Select("pos", "pixel_id").From("canvas_cells").OrderBy("pos")
}

func selectColors() sq.SelectBuilder {
	return sq.Select("id", "hex").From("colors").OrderBy("id")
}

func insertColor(c model.Color) sq.InsertBuilder {
	return sq.Insert("colors").
		Columns("id", "hex").
		Values(c.ID, c.Hex).
		Suffix("ON CONFLICT(id) DO UPDATE SET hex=excluded.hex")
}
