// Package memory is an in-process Store with change notifications. It backs
// tests and single-node embedded runs; the semantics mirror the Postgres
// store, including unfiltered delete notifications.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/store"
)

const subscriptionBuffer = 128

// Store keeps rooms and players in mutex-guarded maps and fans change events
// out to subscribers over buffered channels. A slow subscriber drops events
// rather than blocking writers; that is fine because consumers re-fetch full
// state on every event.
type Store struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]models.Room
	players map[uuid.UUID]models.Player
	seq     map[uuid.UUID]uint64
	nextSeq uint64
	subs    map[*subscription]bool
	clock   clockwork.Clock
}

type subscription struct {
	store  *Store
	table  store.Table
	event  store.EventType
	filter store.Filter
	ch     chan store.Event
	once   sync.Once
}

func (s *subscription) Events() <-chan store.Event { return s.ch }

func (s *subscription) Close() error {
	// Closing under the write lock excludes in-flight publishes, which send
	// while holding the read lock.
	s.store.mu.Lock()
	delete(s.store.subs, s)
	s.once.Do(func() { close(s.ch) })
	s.store.mu.Unlock()
	return nil
}

// New returns an empty in-memory store using the wall clock.
func New() *Store {
	return NewWithClock(clockwork.NewRealClock())
}

// NewWithClock returns an empty store stamping rows with the given clock.
func NewWithClock(clock clockwork.Clock) *Store {
	return &Store{
		rooms:   make(map[uuid.UUID]models.Room),
		players: make(map[uuid.UUID]models.Player),
		seq:     make(map[uuid.UUID]uint64),
		subs:    make(map[*subscription]bool),
		clock:   clock,
	}
}

func (m *Store) InsertRoom(ctx context.Context, code string) (*models.Room, error) {
	m.mu.Lock()
	room := models.Room{
		ID:        uuid.New(),
		Code:      code,
		Started:   false,
		CreatedAt: m.clock.Now(),
	}
	m.rooms[room.ID] = room
	m.mu.Unlock()

	m.publish(store.Event{Table: store.TableRooms, Type: store.EventInsert, RowID: room.ID, RoomID: room.ID})
	return &room, nil
}

// GetRoomByCode matches case-insensitively, like the Postgres store's
// upper(code) = upper($1) lookup.
func (m *Store) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		if strings.EqualFold(room.Code, code) {
			r := room
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	r := room
	return &r, nil
}

func (m *Store) SetRoomStarted(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	room, ok := m.rooms[id]
	if !ok {
		m.mu.Unlock()
		return store.NewOperationError("update rooms", errNoRow)
	}
	room.Started = true
	m.rooms[id] = room
	m.mu.Unlock()

	m.publish(store.Event{Table: store.TableRooms, Type: store.EventUpdate, RowID: id, RoomID: id})
	return nil
}

func (m *Store) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.rooms, id)
	var cascaded []uuid.UUID
	for pid, p := range m.players {
		if p.RoomID == id {
			delete(m.players, pid)
			delete(m.seq, pid)
			cascaded = append(cascaded, pid)
		}
	}
	m.mu.Unlock()

	// Cascaded player deletes notify first, then the room delete, matching
	// the trigger order of the Postgres schema.
	for _, pid := range cascaded {
		m.publish(store.Event{Table: store.TablePlayers, Type: store.EventDelete, RowID: pid})
	}
	m.publish(store.Event{Table: store.TableRooms, Type: store.EventDelete, RowID: id})
	return nil
}

func (m *Store) InsertPlayer(ctx context.Context, roomID uuid.UUID, name string, isHost bool) (*models.Player, error) {
	m.mu.Lock()
	if _, ok := m.rooms[roomID]; !ok {
		m.mu.Unlock()
		return nil, store.NewOperationError("insert players", errNoRow)
	}
	player := models.Player{
		ID:        uuid.New(),
		RoomID:    roomID,
		Name:      name,
		IsHost:    isHost,
		Accuracy:  100,
		CreatedAt: m.clock.Now(),
	}
	m.players[player.ID] = player
	m.seq[player.ID] = m.nextSeq
	m.nextSeq++
	m.mu.Unlock()

	m.publish(store.Event{Table: store.TablePlayers, Type: store.EventInsert, RowID: player.ID, RoomID: roomID})
	return &player, nil
}

func (m *Store) UpdatePlayerProgress(ctx context.Context, id uuid.UUID, up store.ProgressUpdate) error {
	m.mu.Lock()
	player, ok := m.players[id]
	if !ok {
		m.mu.Unlock()
		return store.NewOperationError("update players", errNoRow)
	}
	player.Progress = up.Progress
	player.WPM = up.WPM
	player.Accuracy = up.Accuracy
	player.Finished = up.Finished
	player.FinishTime = up.FinishTime
	player.Score = up.Score
	m.players[id] = player
	m.mu.Unlock()

	m.publish(store.Event{Table: store.TablePlayers, Type: store.EventUpdate, RowID: id, RoomID: player.RoomID})
	return nil
}

func (m *Store) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.players, id)
	delete(m.seq, id)
	m.mu.Unlock()

	m.publish(store.Event{Table: store.TablePlayers, Type: store.EventDelete, RowID: id})
	return nil
}

func (m *Store) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	m.mu.RLock()
	var players []models.Player
	seq := make(map[uuid.UUID]uint64, len(m.players))
	for _, p := range m.players {
		if p.RoomID == roomID {
			players = append(players, p)
			seq[p.ID] = m.seq[p.ID]
		}
	}
	m.mu.RUnlock()

	// Order by creation time, with insertion order breaking ties for rows
	// created in the same clock tick.
	sort.SliceStable(players, func(i, j int) bool {
		if !players[i].CreatedAt.Equal(players[j].CreatedAt) {
			return players[i].CreatedAt.Before(players[j].CreatedAt)
		}
		return seq[players[i].ID] < seq[players[j].ID]
	})
	return players, nil
}

func (m *Store) Subscribe(ctx context.Context, table store.Table, event store.EventType, filter store.Filter) (store.Subscription, error) {
	sub := &subscription{
		store:  m,
		table:  table,
		event:  event,
		filter: filter,
		ch:     make(chan store.Event, subscriptionBuffer),
	}
	m.mu.Lock()
	m.subs[sub] = true
	m.mu.Unlock()
	return sub, nil
}

func (m *Store) publish(ev store.Event) {
	ev.Timestamp = m.clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subs {
		if sub.table != ev.Table || sub.event != ev.Type {
			continue
		}
		// Delete payloads carry no room id, so the filter only applies to
		// inserts and updates.
		if ev.Type != store.EventDelete && sub.filter.RoomID != uuid.Nil && sub.filter.RoomID != ev.RoomID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Warn().
				Str("table", string(ev.Table)).
				Str("event", string(ev.Type)).
				Msg("subscriber buffer full, dropping change event")
		}
	}
}
