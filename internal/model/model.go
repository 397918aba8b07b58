// Package model holds the shared record types persisted by the store and
// carried on broadcast messages. It is dependency-free on purpose so every
// layer can import it.
package model

import "time"

// User is one chat actor. UID is assigned by the chat platform and is
// immutable; counters are only adjusted by coordinator operations.
type User struct {
	UID          int64  `json:"uid"`
	Name         string `json:"name"`
	GoldCoin     int64  `json:"gold_coin"`
	SilverCoin   int64  `json:"silver_coin"`
	MusicOrdered int64  `json:"music_ordered"`
	DotsDrawn    int64  `json:"dots_drawn"`
	Weight       int64  `json:"weight"`
}

// DefaultWeight is the spendable quota a fresh user starts with.
const DefaultWeight = 10

// NewUser returns a user record with default counters.
func NewUser(uid int64, name string) *User {
	return &User{UID: uid, Name: name, Weight: DefaultWeight}
}

// Pixel is one accepted draw event. ID is allocated exactly once from the
// canvas sequence and never reused; records are immutable after creation.
type Pixel struct {
	ID      int64     `json:"id"`
	Pos     int       `json:"pos"`
	At      time.Time `json:"time"`
	ColorID int       `json:"color_id"`
	UserID  int64     `json:"user_id"`
}

// Cell maps a grid position to the latest pixel drawn there.
type Cell struct {
	Pos     int   `json:"pos"`
	PixelID int64 `json:"pixel_id"`
}

// Color is one palette entry.
type Color struct {
	ID  int    `json:"id"`
	Hex string `json:"hex"`
}

// Track is the result of a metadata lookup.
type Track struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Artists string `json:"artists"`
}

// Song is one queued playback request. Weight is the submitter's quota at
// insertion time and is the queue's sort key.
type Song struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	TrackID  int64  `json:"song_id"`
	Name     string `json:"song_name"`
	Artists  string `json:"artists"`
	Weight   int64  `json:"-"`
	Ambient  bool   `json:"-"`
}
