package playlist

import (
	"context"
	"math/rand"

	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

// AmbientName labels the system actor behind ambient picks.
const AmbientName = "system"

func randIntn(n int) int { return rand.Intn(n) }

// addAmbient adds a fallback query to the ambient pool (deduplicated).
// Caller holds q.mu.
func (q *Queue) addAmbient(query string) {
	for _, have := range q.ambient {
		if have == query {
			return
		}
	}
	q.ambient = append(q.ambient, query)
}

// repick replaces the cached ambient song with a fresh pick, avoiding the
// immediately previous index when there is a choice. On a failed lookup the
// previous pick is kept so playback has something to fall back on.
// Caller holds q.mu.
func (q *Queue) repick(ctx context.Context) {
	n := len(q.ambient)
	if n == 0 {
		q.current = nil
		return
	}
	idx := q.rand(n)
	if n > 1 && idx == q.lastPick {
		idx = (idx + 1 + q.rand(n-1)) % n
	}
	track, err := q.svc.Search(ctx, q.ambient[idx])
	if err != nil {
		q.log.Warn("ambient lookup failed", logx.String("query", q.ambient[idx]), logx.Err(err))
		return
	}
	q.lastPick = idx
	q.current = &model.Song{
		UserName: AmbientName,
		TrackID:  track.ID,
		Name:     track.Name,
		Artists:  track.Artists,
		Ambient:  true,
	}
	q.log.Debug("ambient song picked", logx.String("query", q.ambient[idx]))
}
