package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is one participant's identity and live typing-progress record
// within a room. Every field past is_host is written exclusively by that
// player's own client while the race runs.
type Player struct {
	ID         uuid.UUID  `json:"id"`
	RoomID     uuid.UUID  `json:"room_id"`
	Name       string     `json:"name"`
	IsHost     bool       `json:"is_host"`
	Progress   int        `json:"progress"`
	WPM        int        `json:"wpm"`
	Accuracy   int        `json:"accuracy"`
	Finished   bool       `json:"finished"`
	FinishTime *time.Time `json:"finish_time,omitempty"`
	Score      int        `json:"score"`
	CreatedAt  time.Time  `json:"created_at"`
}
