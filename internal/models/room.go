package models

import (
	"time"

	"github.com/google/uuid"
)

// Room represents one shared race session, identified by a short join code.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Started   bool      `json:"started"`
	CreatedAt time.Time `json:"created_at"`
}
