package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pixelbot/internal/api"
	"pixelbot/internal/model"
	"pixelbot/internal/music"
	"pixelbot/internal/playlist"
	"pixelbot/internal/storage"
	"pixelbot/internal/transport/telegram"
	"pixelbot/pkg/logx"
)

// Config is the on-disk configuration. Durations are strings ("3s", "5m")
// parsed on access; sections map onto component configs below.
type Config struct {
	Log      logx.Config     `json:"log"`
	Storage  StorageSection  `json:"storage"`
	Canvas   CanvasSection   `json:"canvas"`
	Cache    CacheSection    `json:"cache"`
	Playlist playlist.Config `json:"playlist"`
	Music    MusicSection    `json:"music"`
	API      api.Config      `json:"api"`
	Telegram TelegramSection `json:"telegram"`
	Schedule ScheduleSection `json:"schedule"`
}

type StorageSection struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"`
}

type CanvasSection struct {
	Cols     int           `json:"cols"`
	Rows     int           `json:"rows"`
	Cooldown string        `json:"cooldown"`
	Colors   []model.Color `json:"colors"`
}

type CacheSection struct {
	Size  int `json:"size"`
	Batch int `json:"batch"`
}

type MusicSection struct {
	BaseURL    string `json:"base_url"`
	Cookie     string `json:"cookie"`
	Timeout    string `json:"timeout"`
	RatePerSec int    `json:"rate_per_sec"`
}

type TelegramSection struct {
	Enabled     bool    `json:"enabled"`
	Token       string  `json:"token"`
	PollTimeout string  `json:"poll_timeout"`
	Operators   []int64 `json:"operators"`
}

type ScheduleSection struct {
	Flush string `json:"flush"` // cron spec for user-cache flush
	Ping  string `json:"ping"`  // cron spec for the storage liveness probe
}

// Default is the configuration used for fields the file leaves unset.
func Default() *Config {
	return &Config{
		Log: logx.Config{Level: "info", Console: true},
		Storage: StorageSection{
			Driver:      "sqlite",
			Path:        "./data/pixelbot.db",
			BusyTimeout: "1s",
		},
		Canvas: CanvasSection{
			Cols:     32,
			Rows:     32,
			Cooldown: "3s",
			Colors: []model.Color{
				{ID: 0, Hex: "#ffffff"},
				{ID: 1, Hex: "#000000"},
			},
		},
		Cache:    CacheSection{Size: 5, Batch: 2},
		Playlist: playlist.Config{TotalLimit: 50, PerUserLimit: 2},
		Music:    MusicSection{BaseURL: "http://localhost:3000", Timeout: "8s", RatePerSec: 5},
		API:      api.Config{Enabled: true, Addr: "127.0.0.1:3003"},
		Schedule: ScheduleSection{Flush: "@every 5m", Ping: "@every 10s"},
	}
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.Canvas.Cols <= 0 || c.Canvas.Rows <= 0 {
		return errors.New("canvas: cols and rows must be positive")
	}
	if c.Canvas.Cols != c.Canvas.Rows {
		return errors.New("canvas: grid must be square")
	}
	if len(c.Canvas.Colors) == 0 {
		return errors.New("canvas: at least one color is required")
	}
	seen := map[int]bool{}
	for _, col := range c.Canvas.Colors {
		if seen[col.ID] {
			return fmt.Errorf("canvas: duplicate color id %d", col.ID)
		}
		seen[col.ID] = true
	}
	if c.Cache.Batch > c.Cache.Size {
		return errors.New("cache: batch must not exceed size")
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram: token is required when enabled")
	}
	for _, raw := range []string{c.Storage.BusyTimeout, c.Canvas.Cooldown, c.Music.Timeout, c.Telegram.PollTimeout} {
		if _, err := parseDuration("config", raw); err != nil {
			return err
		}
	}
	return nil
}

func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func mustDuration(raw string) time.Duration {
	d, _ := parseDuration("", raw)
	return d
}

// Component config mapping. Call only on a validated Config.

func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: mustDuration(c.Storage.BusyTimeout),
	}
}

func (c *Config) Cooldown() time.Duration { return mustDuration(c.Canvas.Cooldown) }

func (c *Config) MusicConfig() music.Config {
	return music.Config{
		BaseURL:    c.Music.BaseURL,
		Cookie:     c.Music.Cookie,
		Timeout:    mustDuration(c.Music.Timeout),
		RatePerSec: c.Music.RatePerSec,
	}
}

func (c *Config) TelegramConfig() telegram.Config {
	return telegram.Config{
		Enabled:     c.Telegram.Enabled,
		Token:       c.Telegram.Token,
		PollTimeout: mustDuration(c.Telegram.PollTimeout),
		Operators:   c.Telegram.Operators,
	}
}
