package config

import (
	"os"
	"path/filepath"
	"testing"

	"pixelbot/pkg/logx"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSONWithDefaults(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"canvas":{"cols":8,"rows":8}}`)
	cfg, err := NewManager(path, logx.Nop()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Canvas.Cols != 8 {
		t.Fatalf("cols = %d, want 8", cfg.Canvas.Cols)
	}
	// Unset sections keep their defaults.
	if cfg.Playlist.TotalLimit != 50 || cfg.Canvas.Cooldown != "3s" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "canvas:\n  cols: 16\n  rows: 16\n  cooldown: 5s\n")
	cfg, err := NewManager(path, logx.Nop()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Canvas.Cols != 16 || cfg.Cooldown().Seconds() != 5 {
		t.Fatalf("unexpected config: %+v", cfg.Canvas)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"canvs":{"cols":8}}`)
	if _, err := NewManager(path, logx.Nop()).Load(); err == nil {
		t.Fatal("typoed section must be rejected")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mod  func(c *Config)
	}{
		{name: "zero cols", mod: func(c *Config) { c.Canvas.Cols = 0 }},
		{name: "non-square grid", mod: func(c *Config) { c.Canvas.Rows = c.Canvas.Cols + 1 }},
		{name: "no colors", mod: func(c *Config) { c.Canvas.Colors = nil }},
		{name: "duplicate color", mod: func(c *Config) { c.Canvas.Colors = append(c.Canvas.Colors, c.Canvas.Colors[0]) }},
		{name: "batch over size", mod: func(c *Config) { c.Cache.Batch = c.Cache.Size + 1 }},
		{name: "bad duration", mod: func(c *Config) { c.Canvas.Cooldown = "soon" }},
		{name: "telegram without token", mod: func(c *Config) { c.Telegram.Enabled = true }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
