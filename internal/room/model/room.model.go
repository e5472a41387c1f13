package model

import "time"

// FreshnessWindow is how long a room is reused before a new one is made.
const FreshnessWindow = 24 * time.Hour

type Room struct {
	ServerID  string    `json:"server_id"`
	URL       string    `json:"url"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Fresh reports whether the room is still inside window at now.
func (r Room) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(r.CreatedAt) < window
}

// ExpiresAt is when the room stops being reused.
func (r Room) ExpiresAt(window time.Duration) time.Time {
	return r.CreatedAt.Add(window)
}

// Result is what GetOrCreate hands back. Created is false when an existing
// fresh room was reused; Renewed is true when a new room replaced an older
// record.
type Result struct {
	Room    Room
	Created bool
	Renewed bool
}

type Event struct {
	ServerID  string `json:"server_id"`
	URL       string `json:"url,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

const (
	EventOpened  = "room.opened"
	EventDeleted = "room.deleted"
)
