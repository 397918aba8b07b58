// Package music talks to the external song-metadata service.
package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

var (
	// ErrNoMatch means the service answered but found nothing.
	ErrNoMatch = errors.New("music: no match")
	// ErrUnavailable means the service could not be reached or answered
	// with a non-200 status. Transient; callers treat it as a soft miss.
	ErrUnavailable = errors.New("music: service unavailable")
)

type Config struct {
	BaseURL    string        `json:"base_url"`
	Cookie     string        `json:"cookie"`
	Timeout    time.Duration `json:"timeout"`
	RatePerSec int           `json:"rate_per_sec"`
}

// Client is an HTTP client for a NetEase-style lookup API. Outbound
// requests are paced so a chat burst cannot hammer the service.
type Client struct {
	base    string
	cookie  string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		cookie:  cfg.Cookie,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

type searchResponse struct {
	Result struct {
		Songs []struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// Search resolves a free-text query to the best-matching track.
func (c *Client) Search(ctx context.Context, query string) (model.Track, error) {
	var out searchResponse
	if err := c.get(ctx, "/search", url.Values{"keywords": {query}}, &out); err != nil {
		return model.Track{}, err
	}
	songs := out.Result.Songs
	if len(songs) == 0 {
		return model.Track{}, ErrNoMatch
	}
	names := make([]string, 0, len(songs[0].Artists))
	for _, a := range songs[0].Artists {
		names = append(names, a.Name)
	}
	return model.Track{
		ID:      songs[0].ID,
		Name:    songs[0].Name,
		Artists: strings.Join(names, ", "),
	}, nil
}

type detailResponse struct {
	Songs []struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"ar"`
		Album struct {
			PicURL string `json:"picUrl"`
		} `json:"al"`
	} `json:"songs"`
}

// Info is the playback detail payload for one track.
type Info struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Artists  []string `json:"artists"`
	CoverURL string   `json:"cover_url"`
}

// GetInfo fetches display detail for a track id.
func (c *Client) GetInfo(ctx context.Context, id int64) (Info, error) {
	var out detailResponse
	if err := c.get(ctx, "/song/detail", url.Values{"ids": {strconv.FormatInt(id, 10)}}, &out); err != nil {
		return Info{}, err
	}
	if len(out.Songs) == 0 {
		return Info{}, ErrNoMatch
	}
	s := out.Songs[0]
	info := Info{ID: id, Name: s.Name}
	for _, a := range s.Artists {
		info.Artists = append(info.Artists, a.Name)
	}
	if s.Album.PicURL != "" {
		info.CoverURL = s.Album.PicURL + "?param=100y100"
	}
	return info, nil
}

type urlResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GetPlayURL fetches a streamable URL for a track id.
func (c *Client) GetPlayURL(ctx context.Context, id int64) (string, error) {
	var out urlResponse
	q := url.Values{"id": {strconv.FormatInt(id, 10)}, "br": {"192000"}}
	if err := c.get(ctx, "/song/url", q, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", ErrNoMatch
	}
	return out.Data[0].URL, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.cookie != "" {
		params.Set("cookie", c.cookie)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("music service unreachable", logx.String("path", path), logx.Err(err))
		return ErrUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("music service error", logx.String("path", path), logx.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
