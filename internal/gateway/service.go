// Package gateway is the HTTP and WebSocket surface. REST endpoints cover
// the lobby operations; each race WebSocket hosts one client session whose
// callbacks stream registry refreshes, the race-start transition and final
// results down to the player.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/client"
	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/race"
	"github.com/chvlpont/typesprint/internal/rooms"
	"github.com/chvlpont/typesprint/internal/store"
)

// Service wires the room coordinator and per-connection sessions to HTTP.
type Service struct {
	store store.Store
	clock clockwork.Clock
	coord *rooms.App
	cm    *ConnectionManager
}

// NewService creates the gateway service.
func NewService(st store.Store, clock clockwork.Clock, connCfg ConnectionConfig) *Service {
	return &Service{
		store: st,
		clock: clock,
		coord: rooms.NewApp(st),
		cm:    NewConnectionManager(connCfg),
	}
}

// Handler returns the full HTTP handler, CORS-wrapped.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// RegisterRoutes registers REST and WebSocket routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/join", s.handleJoinRoom)
	mux.HandleFunc("GET /api/rooms/{id}/players", s.handleListPlayers)
	mux.HandleFunc("GET /api/texts/random", s.handleRandomText)
	mux.HandleFunc("GET /ws/race", s.handleRaceConnection)
	mux.HandleFunc("GET /ws/solo", s.handleSoloConnection)
	mux.HandleFunc("GET /ws/stats", s.handleStats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	log.Info().Msg("gateway routes registered")
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type joinRoomRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type membershipResponse struct {
	Room   *models.Room   `json:"room"`
	Player *models.Player `json:"player"`
}

func (s *Service) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := s.coord.CreateRoom(r.Context(), req.Name)
	if err != nil {
		respondCoordError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, membershipResponse{Room: m.Room, Player: m.Player})
}

func (s *Service) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := s.coord.JoinRoom(r.Context(), req.Code, req.Name)
	if err != nil {
		respondCoordError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, membershipResponse{Room: m.Room, Player: m.Player})
}

func (s *Service) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	players, err := s.store.ListPlayers(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Msg("list players failed")
		respondError(w, http.StatusInternalServerError, "store operation failed")
		return
	}
	respondJSON(w, http.StatusOK, PlayersPayload{Players: players})
}

func (s *Service) handleRandomText(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"text": race.RandomText()})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.cm.Stats())
}

// handleRaceConnection hosts one client session per WebSocket. The ids come
// from query parameters but are validated against the store before the
// session attaches; an unknown pair is rejected before upgrade.
func (s *Service) handleRaceConnection(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.URL.Query().Get("room_id"))
	if err != nil {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	playerID, err := uuid.Parse(r.URL.Query().Get("player_id"))
	if err != nil {
		http.Error(w, "player_id is required", http.StatusBadRequest)
		return
	}

	pc := &playerConn{service: s}
	sess := client.NewSession(s.store, s.clock, client.Callbacks{
		OnPlayers:     pc.sendPlayers,
		OnRaceStarted: pc.sendRaceStarted,
		OnResults:     pc.sendResults,
		OnRoomDeleted: pc.sendRoomDeleted,
	})

	membership := &rooms.Membership{
		Room:   &models.Room{ID: roomID},
		Player: &models.Player{ID: playerID},
	}
	if err := sess.Resume(r.Context(), membership); err != nil {
		log.Warn().Err(err).
			Str("room_id", roomID.String()).
			Str("player_id", playerID.String()).
			Msg("race connection rejected")
		http.Error(w, "unknown room or player", http.StatusNotFound)
		return
	}

	conn, err := s.cm.Upgrade(w, r, playerID, roomID, sess.Close)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		sess.Close()
		return
	}
	pc.mu.Lock()
	pc.conn = conn
	pc.session = sess
	pc.mu.Unlock()

	// Replay the session state reached before the connection attached:
	// callbacks fired during Resume found no connection and were dropped.
	// Without the race_started replay a client attaching to a started room
	// would sit in RACING with no reference text.
	pc.sendPlayers(sess.Players())
	if text, ok := sess.RaceText(); ok {
		pc.sendRaceStarted(text)
	}

	go conn.WritePump()
	go conn.ReadPump(pc.handleMessage)
}

func (s *Service) handleSoloConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.cm.Upgrade(w, r, uuid.New(), uuid.Nil, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade solo connection")
		return
	}

	solo := race.NewSoloSession(s.clock)
	sc := &soloConn{conn: conn, session: solo}
	sc.sendStats(solo.Stats())

	go conn.WritePump()
	go conn.ReadPump(sc.handleMessage)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondCoordError maps coordinator failures onto HTTP statuses. Store
// failures collapse into one generic message.
func respondCoordError(w http.ResponseWriter, err error) {
	var vErr *rooms.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, rooms.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, rooms.ErrRoomAlreadyStarted):
		respondError(w, http.StatusConflict, "room already started")
	default:
		log.Error().Err(err).Msg("room operation failed")
		respondError(w, http.StatusInternalServerError, "store operation failed")
	}
}
