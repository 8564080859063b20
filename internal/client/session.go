// Package client composes the room coordinator, registry view, race session
// and outcome resolver into one per-player session object. The session owns
// the LOBBY → RACING → RESULTS state machine each client runs independently;
// room identity lives here, passed by reference, instead of being threaded
// through URLs.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/outcome"
	"github.com/chvlpont/typesprint/internal/race"
	"github.com/chvlpont/typesprint/internal/registry"
	"github.com/chvlpont/typesprint/internal/rooms"
	"github.com/chvlpont/typesprint/internal/store"
)

// State is the session's screen-level state. There is no transition out of
// StateResults except leaving the room, which lands in StateClosed.
type State string

const (
	StateLobby   State = "LOBBY"
	StateRacing  State = "RACING"
	StateResults State = "RESULTS"
	StateClosed  State = "CLOSED"
)

var (
	// ErrNotRacing means typed input arrived outside the RACING state.
	ErrNotRacing = errors.New("session is not racing")
	// ErrNotHost means a non-host session tried to start the race.
	ErrNotHost = errors.New("only the host can start the race")
)

// Callbacks deliver session events to the owning surface (a websocket
// connection, a test harness). All callbacks are optional and are invoked
// from the session's background loops.
type Callbacks struct {
	OnPlayers     func(players []models.Player)
	OnRaceStarted func(text string)
	OnResults     func(winner string, rankings []models.Player)
	OnRoomDeleted func()
}

// Session is one player's connection to a room.
type Session struct {
	store     store.Store
	clock     clockwork.Clock
	coord     *rooms.App
	callbacks Callbacks

	mu         sync.Mutex
	state      State
	membership *rooms.Membership
	view       *registry.View
	raceSess   *race.Session
	resolver   *outcome.Resolver
	roomSubs   []store.Subscription
	cancel     context.CancelFunc
}

// NewSession creates a detached session; Create or Join binds it to a room.
func NewSession(st store.Store, clock clockwork.Clock, callbacks Callbacks) *Session {
	return &Session{
		store:     st,
		clock:     clock,
		coord:     rooms.NewApp(st),
		callbacks: callbacks,
		state:     StateLobby,
	}
}

// Create makes a new room with this player as host and enters its lobby.
func (s *Session) Create(ctx context.Context, hostName string) (*rooms.Membership, error) {
	m, err := s.coord.CreateRoom(ctx, hostName)
	if err != nil {
		return nil, err
	}
	if err := s.enter(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Join enters an existing room's lobby by code.
func (s *Session) Join(ctx context.Context, code, playerName string) (*rooms.Membership, error) {
	m, err := s.coord.JoinRoom(ctx, code, playerName)
	if err != nil {
		return nil, err
	}
	if err := s.enter(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Resume reattaches a session to an existing membership, validating both ids
// against the store rather than trusting them from the caller.
func (s *Session) Resume(ctx context.Context, m *rooms.Membership) error {
	room, err := s.store.GetRoom(ctx, m.Room.ID)
	if err != nil {
		return fmt.Errorf("validate room: %w", err)
	}
	if room == nil {
		return rooms.ErrRoomNotFound
	}
	players, err := s.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("validate player: %w", err)
	}
	found := false
	for _, p := range players {
		if p.ID == m.Player.ID {
			pl := p
			m.Player = &pl
			found = true
			break
		}
	}
	if !found {
		return rooms.ErrRoomNotFound
	}
	m.Room = room
	if err := s.enter(m); err != nil {
		return err
	}
	if room.Started {
		s.startRacing()
	}
	return nil
}

// Start flips the room's started flag. Host only, enforced here at the
// session surface; the store itself would accept the write from anyone.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	m := s.membership
	s.mu.Unlock()
	if m == nil {
		return rooms.ErrRoomNotFound
	}
	if !m.Player.IsHost {
		return ErrNotHost
	}
	if err := s.coord.StartRoom(ctx, m.Room.ID); err != nil {
		return err
	}
	// The host's own transition is action-originated; everyone else's is
	// notification-originated.
	s.startRacing()
	return nil
}

// Type feeds the player's current input to the race session and returns the
// published snapshot.
func (s *Session) Type(ctx context.Context, input string) (race.Snapshot, error) {
	s.mu.Lock()
	state := s.state
	rs := s.raceSess
	s.mu.Unlock()
	if state != StateRacing && state != StateResults {
		return race.Snapshot{}, ErrNotRacing
	}
	return rs.SetInput(ctx, input)
}

// Leave removes the player from the room and closes the session. A host
// leaving deletes the room and ends the race for everyone.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	m := s.membership
	s.mu.Unlock()
	if m == nil {
		return nil
	}
	err := s.coord.LeaveRoom(ctx, m.Player.ID, m.Room.ID, m.Player.IsHost)
	s.teardown()
	return err
}

// Close detaches the session without deleting any rows.
func (s *Session) Close() {
	s.teardown()
}

// State returns the current screen-level state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Players returns the registry view's cached snapshot.
func (s *Session) Players() []models.Player {
	s.mu.Lock()
	v := s.view
	s.mu.Unlock()
	if v == nil {
		return nil
	}
	return v.Players()
}

// RaceText returns the reference text once the session has left the lobby.
// The second return is false while no race session exists.
func (s *Session) RaceText() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raceSess == nil {
		return "", false
	}
	return s.raceSess.Text(), true
}

// Membership returns the room/player pair this session holds.
func (s *Session) Membership() *rooms.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membership
}

// enter binds the session to a room and starts its background loops. The
// loops run on the session's own context, not the caller's: the session
// outlives the request that created it and ends only on teardown.
func (s *Session) enter(m *rooms.Membership) error {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.membership = m
	s.state = StateLobby
	s.cancel = cancel
	s.resolver = outcome.NewResolver(s.clock, s.onResults)
	s.view = registry.NewView(s.store, m.Room.ID, s.onRefresh)
	s.mu.Unlock()

	if err := s.view.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start registry view: %w", err)
	}

	if err := s.watchRoom(ctx, m); err != nil {
		s.view.Close()
		cancel()
		return err
	}
	return nil
}

// watchRoom subscribes to the room row itself: the started flag for the
// lobby-to-race transition, and deletion for the host tearing the room down.
func (s *Session) watchRoom(ctx context.Context, m *rooms.Membership) error {
	updates, err := s.store.Subscribe(ctx, store.TableRooms, store.EventUpdate, store.Filter{RoomID: m.Room.ID})
	if err != nil {
		return fmt.Errorf("subscribe room updates: %w", err)
	}
	deletes, err := s.store.Subscribe(ctx, store.TableRooms, store.EventDelete, store.Filter{})
	if err != nil {
		updates.Close()
		return fmt.Errorf("subscribe room deletes: %w", err)
	}

	s.mu.Lock()
	s.roomSubs = []store.Subscription{updates, deletes}
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates.Events():
				if !ok {
					return
				}
				room, err := s.store.GetRoom(ctx, m.Room.ID)
				if err != nil {
					log.Error().Err(err).Msg("room re-fetch failed")
					continue
				}
				if room != nil && room.Started {
					s.startRacing()
				}
			case ev, ok := <-deletes.Events():
				if !ok {
					return
				}
				// Delete notifications are unfiltered; only this room's
				// deletion ends the session.
				if ev.RowID == m.Room.ID {
					s.roomDeleted()
					return
				}
			}
		}
	}()
	return nil
}

func (s *Session) startRacing() {
	s.mu.Lock()
	if s.state != StateLobby {
		s.mu.Unlock()
		return
	}
	s.state = StateRacing
	text := race.RaceText()
	s.raceSess = race.NewSession(s.store, s.clock, s.membership.Player.ID, text)
	cb := s.callbacks.OnRaceStarted
	s.mu.Unlock()

	log.Info().
		Str("room_id", s.membership.Room.ID.String()).
		Str("player_id", s.membership.Player.ID.String()).
		Msg("entering race")

	if cb != nil {
		cb(text)
	}
}

func (s *Session) onRefresh(players []models.Player) {
	s.mu.Lock()
	resolver := s.resolver
	cb := s.callbacks.OnPlayers
	s.mu.Unlock()

	if cb != nil {
		cb(players)
	}
	if resolver != nil {
		resolver.Observe(players)
	}
}

func (s *Session) onResults(winner string, rankings []models.Player) {
	s.mu.Lock()
	if s.state != StateRacing {
		s.mu.Unlock()
		return
	}
	s.state = StateResults
	cb := s.callbacks.OnResults
	s.mu.Unlock()

	if cb != nil {
		cb(winner, rankings)
	}
}

func (s *Session) roomDeleted() {
	s.mu.Lock()
	alreadyClosed := s.state == StateClosed
	s.mu.Unlock()
	if alreadyClosed {
		return
	}
	s.teardown()
	if s.callbacks.OnRoomDeleted != nil {
		s.callbacks.OnRoomDeleted()
	}
}

func (s *Session) teardown() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	cancel := s.cancel
	view := s.view
	resolver := s.resolver
	subs := s.roomSubs
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		sub.Close()
	}
	if resolver != nil {
		resolver.Stop()
	}
	if view != nil {
		view.Close()
	}
}
