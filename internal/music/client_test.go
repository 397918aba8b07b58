package music

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pixelbot/pkg/logx"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New(Config{BaseURL: srv.URL, RatePerSec: 1000}, logx.Nop())
	return c, srv
}

func TestSearchParsesFirstHit(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("keywords"); got != "some song" {
			t.Errorf("keywords = %q", got)
		}
		w.Write([]byte(`{"result":{"songs":[
			{"id":99,"name":"Some Song","artists":[{"name":"A"},{"name":"B"}]},
			{"id":100,"name":"Other","artists":[]}
		]}}`))
	})
	defer srv.Close()

	track, err := c.Search(context.Background(), "some song")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if track.ID != 99 || track.Name != "Some Song" || track.Artists != "A, B" {
		t.Fatalf("track = %+v", track)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"songs":[]}}`))
	})
	defer srv.Close()

	_, err := c.Search(context.Background(), "nothing")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestSearchServiceDown(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := c.Search(context.Background(), "q")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}

	// Unreachable host behaves the same.
	dead := New(Config{BaseURL: "http://127.0.0.1:1", RatePerSec: 1000}, logx.Nop())
	_, err = dead.Search(context.Background(), "q")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestGetPlayURL(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/song/url":
			w.Write([]byte(`{"data":[{"url":"http://cdn/song.mp3"}]}`))
		case "/song/detail":
			w.Write([]byte(`{"songs":[{"name":"N","ar":[{"name":"A"}],"al":{"picUrl":"http://img"}}]}`))
		}
	})
	defer srv.Close()

	u, err := c.GetPlayURL(context.Background(), 99)
	if err != nil || u != "http://cdn/song.mp3" {
		t.Fatalf("GetPlayURL = (%q, %v)", u, err)
	}
	info, err := c.GetInfo(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.CoverURL != "http://img?param=100y100" {
		t.Fatalf("cover = %q", info.CoverURL)
	}
}
