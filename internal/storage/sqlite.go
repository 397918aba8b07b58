package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	busy time.Duration
	log  logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	st := &sqliteStore{path: cfg.Path, busy: cfg.BusyTimeout, log: log}
	if err := st.open(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if s.busy > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", s.busy.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func migrate(db *sql.DB) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

func (s *sqliteStore) handle() (*sql.DB, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil, ErrClosed
	}
	return db, nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

// Ping probes the handle and reopens it when the probe fails, mirroring a
// keepalive-and-reconnect pool. Scheduled periodically by the caller.
func (s *sqliteStore) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		s.log.Warn("storage ping failed, reopening", logx.Err(err))
		if rerr := s.open(); rerr != nil {
			return rerr
		}
	}
	return nil
}

func (s *sqliteStore) FindUser(ctx context.Context, uid int64) (*model.User, bool, error) {
	db, err := s.handle()
	if err != nil {
		return nil, false, err
	}
	query, args, err := selectUser(uid).ToSql()
	if err != nil {
		return nil, false, err
	}
	var u model.User
	err = db.QueryRowContext(ctx, query, args...).Scan(
		&u.UID, &u.Name, &u.GoldCoin, &u.SilverCoin, &u.MusicOrdered, &u.DotsDrawn, &u.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

func (s *sqliteStore) UpsertUser(ctx context.Context, u *model.User) error {
	return s.exec(ctx, upsertUser(u))
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query, args, err := selectUsers().ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.UID, &u.Name, &u.GoldCoin, &u.SilverCoin, &u.MusicOrdered, &u.DotsDrawn, &u.Weight); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *sqliteStore) InsertPixel(ctx context.Context, p *model.Pixel) error {
	return s.exec(ctx, insertPixel(p, p.At.Format(time.RFC3339Nano)))
}

func (s *sqliteStore) FindPixel(ctx context.Context, id int64) (*model.Pixel, bool, error) {
	db, err := s.handle()
	if err != nil {
		return nil, false, err
	}
	query, args, err := selectPixel(id).ToSql()
	if err != nil {
		return nil, false, err
	}
	var (
		p  model.Pixel
		at string
	)
	err = db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Pos, &at, &p.ColorID, &p.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
		p.At = t
	}
	return &p, true, nil
}

func (s *sqliteStore) MaxPixelID(ctx context.Context) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	query, args, err := selectMaxPixelID().ToSql()
	if err != nil {
		return 0, err
	}
	var max int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (s *sqliteStore) UpsertCell(ctx context.Context, c model.Cell) error {
	return s.exec(ctx, upsertCell(c))
}

func (s *sqliteStore) ListCells(ctx context.Context) ([]model.Cell, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query, args, err := selectCells().ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []model.Cell
	for rows.Next() {
		var c model.Cell
		if err := rows.Scan(&c.Pos, &c.PixelID); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

func (s *sqliteStore) ListColors(ctx context.Context) ([]model.Color, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query, args, err := selectColors().ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var colors []model.Color
	for rows.Next() {
		var c model.Color
		if err := rows.Scan(&c.ID, &c.Hex); err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

func (s *sqliteStore) SeedColors(ctx context.Context, colors []model.Color) error {
	for _, c := range colors {
		if err := s.exec(ctx, insertColor(c)); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) exec(ctx context.Context, b sq.InsertBuilder) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}
