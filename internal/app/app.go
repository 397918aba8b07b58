// Package app wires the bot's components together and owns their
// lifecycle: construction from config, startup order, hot reload, and
// graceful shutdown.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pixelbot/internal/api"
	"pixelbot/internal/broadcast"
	"pixelbot/internal/canvas"
	"pixelbot/internal/config"
	"pixelbot/internal/coordinator"
	"pixelbot/internal/model"
	"pixelbot/internal/music"
	"pixelbot/internal/playlist"
	"pixelbot/internal/ratelimit"
	"pixelbot/internal/sched"
	"pixelbot/internal/storage"
	"pixelbot/internal/transport/telegram"
	"pixelbot/internal/transport/ws"
	"pixelbot/internal/usercache"
	"pixelbot/pkg/logx"
)

const flushTimeout = 30 * time.Second

type App struct {
	cfgm *config.Manager
	log  logx.Logger

	store    storage.Store
	users    *usercache.Cache
	queue    *playlist.Queue
	canvas   *canvas.Canvas
	canvasCh *broadcast.Channel
	chatCh   *broadcast.Channel
	coord    *coordinator.Coordinator
	srv      *api.Server
	tg       *telegram.Adapter
	runner   *sched.Runner
}

// New loads the config at cfgPath and builds every component. ctx bounds
// the initial storage work (color seed, canvas load).
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("info"))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log, err := logx.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.StorageConfig(), log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if err := store.SeedColors(ctx, cfg.Canvas.Colors); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed colors: %w", err)
	}

	buffer := ratelimit.New(cfg.Cooldown(), log.With(logx.String("comp", "ratelimit")))
	cv := canvas.New(store, buffer, log.With(logx.String("comp", "canvas")))
	if err := cv.Configure(cfg.Canvas.Cols, cfg.Canvas.Rows); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := cv.Load(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load canvas: %w", err)
	}

	users := usercache.New(cfg.Cache.Size, cfg.Cache.Batch, store, log.With(logx.String("comp", "usercache")))
	mc := music.New(cfg.MusicConfig(), log.With(logx.String("comp", "music")))
	queue := playlist.New(cfg.Playlist, mc, log.With(logx.String("comp", "playlist")))

	canvasCh := broadcast.New("canvas", log.With(logx.String("comp", "broadcast")))
	chatCh := broadcast.New("chat", log.With(logx.String("comp", "broadcast")))
	coord := coordinator.New(users, cv, queue, canvasCh, chatCh, log.With(logx.String("comp", "coordinator")))

	srv := api.New(cfg.API, queue, cv, coord, mc, log.With(logx.String("comp", "api")))
	canvasHub := ws.NewHub(canvasCh, func() model.Message {
		return model.Message{Type: model.MsgInitCanvas, Data: cv.Snapshot()}
	}, log.With(logx.String("comp", "ws")))
	chatHub := ws.NewHub(chatCh, func() model.Message {
		return model.Message{Type: model.MsgInitMessage, Data: queue.Songs(context.Background())}
	}, log.With(logx.String("comp", "ws")))
	srv.Mount("/ws/canvas", canvasHub.Handler())
	srv.Mount("/ws/chat", chatHub.Handler())

	var tg *telegram.Adapter
	if cfg.Telegram.Enabled {
		tg, err = telegram.New(cfg.TelegramConfig(), coord, log.With(logx.String("comp", "telegram")))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	runner := sched.New(log.With(logx.String("comp", "sched")))
	if err := runner.Add("cache-flush", cfg.Schedule.Flush, flushTimeout, func(ctx context.Context) error {
		n, err := users.FlushAll(ctx)
		if n > 0 {
			log.Debug("user cache flushed", logx.Int("users", n))
		}
		return err
	}); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := runner.Add("storage-ping", cfg.Schedule.Ping, 10*time.Second, store.Ping); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfgm:     cfgm,
		log:      log.With(logx.String("comp", "app")),
		store:    store,
		users:    users,
		queue:    queue,
		canvas:   cv,
		canvasCh: canvasCh,
		chatCh:   chatCh,
		coord:    coord,
		srv:      srv,
		tg:       tg,
		runner:   runner,
	}, nil
}

// Start brings every component up. Components that watch ctx stop on
// their own when it is cancelled; the rest are torn down by Stop.
func (a *App) Start(ctx context.Context) error {
	a.canvasCh.Start()
	a.chatCh.Start()

	cfg := a.cfgm.Get()
	if cfg.API.Enabled {
		a.srv.Start(ctx)
		a.log.Info("control token issued", logx.String("token", a.srv.Token()))
	}
	if a.tg != nil {
		a.tg.Start(ctx)
	}
	if err := a.runner.Start(ctx); err != nil {
		return err
	}

	if err := a.cfgm.Watch(ctx); err != nil {
		a.log.Warn("config watch unavailable", logx.Err(err))
	} else {
		go a.reloadLoop(ctx, a.cfgm.Subscribe(1))
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("started")
	return nil
}

// reloadLoop applies the config fields that support hot reload. The rest
// take effect on restart.
func (a *App) reloadLoop(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.queue.Apply(cfg.Playlist)
			a.log.Info("playlist limits reloaded",
				logx.Int("total", cfg.Playlist.TotalLimit),
				logx.Int("per_user", cfg.Playlist.PerUserLimit))
		}
	}
}

// Stop flushes dirty user records, drains the broadcast channels, and
// closes storage. Call after the Start ctx is cancelled.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.runner.Stop()

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if n, err := a.users.FlushAll(flushCtx); err != nil {
		a.log.Error("final flush failed", logx.Int("flushed", n), logx.Err(err))
	}

	a.canvasCh.Stop()
	a.chatCh.Stop()

	err := a.store.Close()
	a.log.Info("stopped")
	_ = a.log.Close()
	return err
}
