// Package rooms coordinates the room lifecycle: create, join, start and
// leave. It owns no state of its own; every operation is a handful of
// single-row store calls with client-side validation in front.
package rooms

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/store"
)

const maxNameLength = 20

// App handles room coordination against the shared store.
type App struct {
	store store.Store
}

// NewApp creates a room coordinator backed by the given store.
func NewApp(st store.Store) *App {
	return &App{store: st}
}

// Membership is the pair a client holds after creating or joining a room.
type Membership struct {
	Room   *models.Room
	Player *models.Player
}

// CreateRoom generates a room code, inserts the room, then inserts the host
// player. The two inserts are not atomic: if the host insert fails the room
// row is left behind and the whole operation reports ErrRoomCreation.
func (a *App) CreateRoom(ctx context.Context, hostName string) (*Membership, error) {
	if err := validateName(hostName); err != nil {
		return nil, err
	}

	code := GenerateCode()
	room, err := a.store.InsertRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoomCreation, err)
	}

	host, err := a.store.InsertPlayer(ctx, room.ID, hostName, true)
	if err != nil {
		log.Error().Err(err).
			Str("room_id", room.ID.String()).
			Str("code", code).
			Msg("host insert failed, room row orphaned")
		return nil, fmt.Errorf("%w: %w", ErrRoomCreation, err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("code", code).
		Str("host", hostName).
		Msg("room created")

	return &Membership{Room: room, Player: host}, nil
}

// JoinRoom looks the room up by code (normalized to uppercase) and inserts a
// non-host player. Joining a started room is rejected.
func (a *App) JoinRoom(ctx context.Context, code, playerName string) (*Membership, error) {
	if err := validateName(playerName); err != nil {
		return nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "must not be empty"}
	}

	room, err := a.store.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("look up room %q: %w", code, err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if room.Started {
		return nil, ErrRoomAlreadyStarted
	}

	player, err := a.store.InsertPlayer(ctx, room.ID, playerName, false)
	if err != nil {
		return nil, fmt.Errorf("join room %q: %w", code, err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("code", code).
		Str("player", playerName).
		Msg("player joined room")

	return &Membership{Room: room, Player: player}, nil
}

// StartRoom flips the room's started flag. This is the sole transition the
// other clients watch for to leave the lobby. Nothing here verifies the
// caller is the host; the interface is the only gate.
func (a *App) StartRoom(ctx context.Context, roomID uuid.UUID) error {
	if err := a.store.SetRoomStarted(ctx, roomID); err != nil {
		return fmt.Errorf("start room: %w", err)
	}
	log.Info().Str("room_id", roomID.String()).Msg("race started")
	return nil
}

// LeaveRoom removes the player. A departing host deletes the room as well,
// which cascades to every remaining player row and ends the session for all
// participants unconditionally, mid-race included.
func (a *App) LeaveRoom(ctx context.Context, playerID, roomID uuid.UUID, isHost bool) error {
	if err := a.store.DeletePlayer(ctx, playerID); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	if isHost {
		if err := a.store.DeleteRoom(ctx, roomID); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		log.Info().Str("room_id", roomID.String()).Msg("host left, room deleted")
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len([]rune(name)) > maxNameLength {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	return nil
}
