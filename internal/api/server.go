// Package api is the HTTP control surface for the player overlay.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pixelbot/internal/canvas"
	"pixelbot/internal/coordinator"
	"pixelbot/internal/model"
	"pixelbot/internal/music"
	"pixelbot/internal/playlist"
	"pixelbot/pkg/logx"
)

const authHeader = "XAuth-Token"

type Config struct {
	Enabled   bool   `json:"enabled"`
	Addr      string `json:"addr"`
	AuthToken string `json:"auth_token"` // generated at boot when empty
}

type Server struct {
	cfg    Config
	queue  *playlist.Queue
	canvas *canvas.Canvas
	coord  *coordinator.Coordinator
	music  *music.Client
	log    logx.Logger
	router chi.Router
	srv    *http.Server
}

func New(cfg Config, queue *playlist.Queue, cv *canvas.Canvas, coord *coordinator.Coordinator, mc *music.Client, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:3003"
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = newToken()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, queue: queue, canvas: cv, coord: coord, music: mc, log: log}
	s.srv = &http.Server{Addr: cfg.Addr, Handler: s.routes()}
	return s
}

// Token returns the control-surface auth token so it can be handed to the
// overlay at boot.
func (s *Server) Token() string { return s.cfg.AuthToken }

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Mount registers an extra GET handler on the router, used for the
// WebSocket feeds. Call before Start.
func (s *Server) Mount(pattern string, h http.HandlerFunc) {
	s.router.Get(pattern, h)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	s.router = r
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/api/canvas", s.handleCanvas)
	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/api/music/playlist", s.handlePlaylist)
		r.Get("/api/music/play", s.handlePlay)
		r.Get("/api/music/skip", s.handleSkip)
		r.Post("/api/gift", s.handleGift)
	})
	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(authHeader) != s.cfg.AuthToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, model.Message{Type: model.MsgInitCanvas, Data: s.canvas.Snapshot()})
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, model.Message{Type: model.MsgUpdatePlaylist, Data: s.queue.Songs(r.Context())})
}

type playPayload struct {
	Info     music.Info `json:"info"`
	PlayURL  string     `json:"play_url"`
	UserName string     `json:"user_name"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	song := s.queue.Current(r.Context())
	if song == nil {
		http.Error(w, "nothing to play", http.StatusNotFound)
		return
	}
	info, err := s.music.GetInfo(r.Context(), song.TrackID)
	if err != nil {
		s.log.Warn("play detail lookup failed", logx.Int64("track", song.TrackID), logx.Err(err))
		http.Error(w, "metadata unavailable", http.StatusBadGateway)
		return
	}
	playURL, err := s.music.GetPlayURL(r.Context(), song.TrackID)
	if err != nil {
		s.log.Warn("play url lookup failed", logx.Int64("track", song.TrackID), logx.Err(err))
		http.Error(w, "metadata unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, model.Message{Type: model.MsgPlaySong, Data: playPayload{
		Info:     info,
		PlayURL:  playURL,
		UserName: song.UserName,
	}})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.coord.Skip(r.Context())
	s.handlePlaylist(w, r)
}

// handleGift credits a currency event reported by an external chat
// bridge that has no direct coordinator hookup.
func (s *Server) handleGift(w http.ResponseWriter, r *http.Request) {
	var g coordinator.Gift
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil || g.UserID == 0 {
		http.Error(w, "bad gift payload", http.StatusBadRequest)
		return
	}
	if err := s.coord.HandleGift(r.Context(), g); err != nil {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.log.Info("api listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server stopped", logx.Err(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutCtx)
	}()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
