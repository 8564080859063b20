// Package store defines the shared row store the race protocol coordinates
// through. Clients never talk to each other directly: every room and player
// mutation goes through a Store, and every remote observation arrives as a
// change Event on a Subscription.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chvlpont/typesprint/internal/models"
)

// Table names a watched table.
type Table string

const (
	TableRooms   Table = "rooms"
	TablePlayers Table = "players"
)

// EventType is the class of row change a subscriber asked for.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one change notification. RoomID scopes insert and update events.
// Delete events carry only the row id: the backing store does not include the
// old row in its delete payload, so delete subscriptions cannot be filtered
// by room and subscribers must re-filter after re-fetching.
type Event struct {
	Table     Table     `json:"table"`
	Type      EventType `json:"type"`
	RowID     uuid.UUID `json:"row_id"`
	RoomID    uuid.UUID `json:"room_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter scopes a subscription to one room. The zero Filter matches all rows.
type Filter struct {
	RoomID uuid.UUID
}

// Subscription is a live change-notification stream. Events may be delayed,
// reordered across subscribers, or dropped if the consumer falls behind;
// consumers re-fetch full state on every event rather than applying diffs.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// ProgressUpdate is the absolute snapshot a race session publishes to its own
// player row on every input change. It is never a delta.
type ProgressUpdate struct {
	Progress   int
	WPM        int
	Accuracy   int
	Finished   bool
	FinishTime *time.Time
	Score      int
}

// Store is the external collaborator holding rooms and players. Writes are
// single-row and non-transactional; there is no cross-row atomicity.
type Store interface {
	InsertRoom(ctx context.Context, code string) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	SetRoomStarted(ctx context.Context, id uuid.UUID) error
	// DeleteRoom cascades to every player row in the room.
	DeleteRoom(ctx context.Context, id uuid.UUID) error

	InsertPlayer(ctx context.Context, roomID uuid.UUID, name string, isHost bool) (*models.Player, error)
	UpdatePlayerProgress(ctx context.Context, id uuid.UUID, up ProgressUpdate) error
	DeletePlayer(ctx context.Context, id uuid.UUID) error
	// ListPlayers returns the room's players ordered by creation time
	// ascending, so the host is consistently first.
	ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)

	// Subscribe opens a change stream for one table and event type. The
	// filter is honored for insert and update events only; delete events are
	// delivered unfiltered (see Event).
	Subscribe(ctx context.Context, table Table, event EventType, filter Filter) (Subscription, error)
}
