// Package playlist keeps the shared playback queue.
//
// Requests are ordered by the submitter's weight at insertion time,
// descending, with stable arrival order on ties. Admission is capped both
// globally and per actor; when nothing is queued an ambient pick from a
// fixed pool stands in.
package playlist

import (
	"context"
	"sync"

	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

const (
	DefaultTotalLimit   = 50
	DefaultPerUserLimit = 2
)

// Searcher resolves a free-text query to track metadata. Any error is a
// soft miss at this boundary: the submission is rejected, nothing surfaces.
type Searcher interface {
	Search(ctx context.Context, query string) (model.Track, error)
}

type Config struct {
	TotalLimit   int      `json:"total_limit"`
	PerUserLimit int      `json:"per_user_limit"`
	Ambient      []string `json:"ambient"`
}

// Queue is safe for concurrent use. The lock is held across the metadata
// lookup inside Submit so the admission check and the insert stay atomic.
type Queue struct {
	mu        sync.Mutex
	cfg       Config
	svc       Searcher
	items     []*model.Song
	userCount map[int64]int

	ambient  []string
	lastPick int
	current  *model.Song // cached ambient song

	rand func(n int) int
	log  logx.Logger
}

func New(cfg Config, svc Searcher, log logx.Logger) *Queue {
	if cfg.TotalLimit <= 0 {
		cfg.TotalLimit = DefaultTotalLimit
	}
	if cfg.PerUserLimit <= 0 {
		cfg.PerUserLimit = DefaultPerUserLimit
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	q := &Queue{
		cfg:       cfg,
		svc:       svc,
		userCount: make(map[int64]int),
		lastPick:  -1,
		rand:      randIntn,
		log:       log,
	}
	for _, query := range cfg.Ambient {
		q.addAmbient(query)
	}
	return q
}

// Apply updates the admission caps and extends the ambient pool with any
// new queries. Queued songs are never retroactively dropped; the caps only
// gate new submissions.
func (q *Queue) Apply(cfg Config) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cfg.TotalLimit > 0 {
		q.cfg.TotalLimit = cfg.TotalLimit
	}
	if cfg.PerUserLimit > 0 {
		q.cfg.PerUserLimit = cfg.PerUserLimit
	}
	for _, query := range cfg.Ambient {
		q.addAmbient(query)
	}
}

// Submit queues a playback request for user. Rejections (caps reached,
// nothing found, lookup down) return ok=false and leave the queue untouched.
func (q *Queue) Submit(ctx context.Context, user *model.User, query string) (*model.Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.cfg.TotalLimit {
		q.log.Debug("queue full", logx.Int("limit", q.cfg.TotalLimit))
		return nil, false
	}
	if q.userCount[user.UID] >= q.cfg.PerUserLimit {
		q.log.Debug("per-user limit reached", logx.Int64("uid", user.UID))
		return nil, false
	}
	track, err := q.svc.Search(ctx, query)
	if err != nil {
		q.log.Debug("lookup missed", logx.String("query", query), logx.Err(err))
		return nil, false
	}

	song := &model.Song{
		UserID:   user.UID,
		UserName: user.Name,
		TrackID:  track.ID,
		Name:     track.Name,
		Artists:  track.Artists,
		Weight:   user.Weight,
	}
	q.userCount[user.UID]++
	q.insert(song)
	q.log.Debug("song queued", logx.Int64("track", song.TrackID), logx.Int64("uid", user.UID))
	return song, true
}

// insert keeps the descending-weight order with stable ties: scan from the
// second slot and place the song right before the first strictly lighter
// one. Slot 0 is the currently playing request and is never displaced.
func (q *Queue) insert(song *model.Song) {
	n := len(q.items)
	if n == 0 || song.Weight <= q.items[n-1].Weight {
		q.items = append(q.items, song)
		return
	}
	for i := 1; i < n; i++ {
		if q.items[i].Weight < song.Weight {
			q.items = append(q.items, nil)
			copy(q.items[i+1:], q.items[i:])
			q.items[i] = song
			return
		}
	}
	q.items = append(q.items, song)
}

// Current returns the head of the queue, or the ambient pick when nothing
// is queued. Returns nil only when the ambient pool is empty or the lookup
// for it keeps failing.
func (q *Queue) Current(ctx context.Context) *model.Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		return q.items[0]
	}
	if q.current == nil {
		q.repick(ctx)
	}
	return q.current
}

// Advance pops the played head and releases its submitter's slot; on an
// empty queue it re-rolls the ambient pick instead. Always safe to call.
func (q *Queue) Advance(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		q.repick(ctx)
		return
	}
	song := q.items[0]
	q.items = q.items[1:]
	q.userCount[song.UserID]--
	if q.userCount[song.UserID] <= 0 {
		delete(q.userCount, song.UserID)
	}
	q.log.Debug("song skipped", logx.Int64("track", song.TrackID))
}

// Songs returns the queue in play order; when empty it returns the ambient
// pick alone, or nothing when there is none.
func (q *Queue) Songs(ctx context.Context) []*model.Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.current == nil {
			q.repick(ctx)
		}
		if q.current == nil {
			return nil
		}
		return []*model.Song{q.current}
	}
	out := make([]*model.Song, len(q.items))
	copy(out, q.items)
	return out
}

// Outstanding reports how many submissions by uid are still queued.
func (q *Queue) Outstanding(uid int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.userCount[uid]
}

// Len reports the queue length, not counting the ambient pick.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
