// Package postgres implements the shared store on Postgres. Row CRUD goes
// through a pgx pool; change notifications are consumed from NATS, where the
// relay republishes the row triggers' NOTIFY payloads.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/store"
)

// Store is a Postgres-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	nc   *nats.Conn
}

// New creates a store over an existing pool and NATS connection. The caller
// owns both and closes them after the store is no longer used.
func New(pool *pgxpool.Pool, nc *nats.Conn) *Store {
	return &Store{pool: pool, nc: nc}
}

// Connect dials Postgres and NATS from the given URLs.
func Connect(ctx context.Context, databaseURL, natsURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Store{pool: pool, nc: nc}, nil
}

// Close releases the pool and NATS connection.
func (s *Store) Close() {
	s.pool.Close()
	s.nc.Close()
}

func (s *Store) InsertRoom(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rooms (code) VALUES ($1)
		 RETURNING id, code, started, created_at`,
		code,
	).Scan(&room.ID, &room.Code, &room.Started, &room.CreatedAt)
	if err != nil {
		return nil, store.NewOperationError("insert rooms", err)
	}
	return &room, nil
}

func (s *Store) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, started, created_at FROM rooms WHERE upper(code) = upper($1)`,
		code,
	).Scan(&room.ID, &room.Code, &room.Started, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewOperationError("select rooms", err)
	}
	return &room, nil
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, started, created_at FROM rooms WHERE id = $1`,
		id,
	).Scan(&room.ID, &room.Code, &room.Started, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewOperationError("select rooms", err)
	}
	return &room, nil
}

func (s *Store) SetRoomStarted(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE rooms SET started = TRUE WHERE id = $1`, id)
	if err != nil {
		return store.NewOperationError("update rooms", err)
	}
	if tag.RowsAffected() == 0 {
		return store.NewOperationError("update rooms", pgx.ErrNoRows)
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	// Player rows go with the room via the FK cascade; their delete
	// notifications come from the row triggers.
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return store.NewOperationError("delete rooms", err)
	}
	return nil
}

func (s *Store) InsertPlayer(ctx context.Context, roomID uuid.UUID, name string, isHost bool) (*models.Player, error) {
	var p models.Player
	err := s.pool.QueryRow(ctx,
		`INSERT INTO players (room_id, name, is_host) VALUES ($1, $2, $3)
		 RETURNING id, room_id, name, is_host, progress, wpm, accuracy, finished, finish_time, score, created_at`,
		roomID, name, isHost,
	).Scan(&p.ID, &p.RoomID, &p.Name, &p.IsHost, &p.Progress, &p.WPM, &p.Accuracy,
		&p.Finished, &p.FinishTime, &p.Score, &p.CreatedAt)
	if err != nil {
		return nil, store.NewOperationError("insert players", err)
	}
	return &p, nil
}

func (s *Store) UpdatePlayerProgress(ctx context.Context, id uuid.UUID, up store.ProgressUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players
		 SET progress = $2, wpm = $3, accuracy = $4, finished = $5, finish_time = $6, score = $7
		 WHERE id = $1`,
		id, up.Progress, up.WPM, up.Accuracy, up.Finished, up.FinishTime, up.Score,
	)
	if err != nil {
		return store.NewOperationError("update players", err)
	}
	if tag.RowsAffected() == 0 {
		return store.NewOperationError("update players", pgx.ErrNoRows)
	}
	return nil
}

func (s *Store) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id); err != nil {
		return store.NewOperationError("delete players", err)
	}
	return nil
}

func (s *Store) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, name, is_host, progress, wpm, accuracy, finished, finish_time, score, created_at
		 FROM players WHERE room_id = $1 ORDER BY created_at ASC`,
		roomID,
	)
	if err != nil {
		return nil, store.NewOperationError("select players", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Name, &p.IsHost, &p.Progress, &p.WPM,
			&p.Accuracy, &p.Finished, &p.FinishTime, &p.Score, &p.CreatedAt); err != nil {
			return nil, store.NewOperationError("scan players", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewOperationError("select players", err)
	}
	return players, nil
}
