package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/client"
	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/outcome"
)

// playerConn binds one WebSocket connection to one client session. Session
// callbacks may fire before the upgrade completes; anything sent before the
// connection is attached is dropped, and the handler replays the current
// lobby right after attaching.
type playerConn struct {
	service *Service

	mu              sync.Mutex
	conn            *Connection
	session         *client.Session
	raceStartedSent bool
}

func (pc *playerConn) write(msgType string, payload interface{}) {
	pc.mu.Lock()
	conn := pc.conn
	pc.mu.Unlock()
	if conn == nil {
		return
	}
	msg, err := newServerMessage(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal server message")
		return
	}
	conn.Write(msg)
}

func (pc *playerConn) sendPlayers(players []models.Player) {
	pc.write(MsgPlayers, PlayersPayload{Players: players})
}

// sendRaceStarted delivers the race transition at most once per connection.
// It can be reached twice when the transition lands during the attach window:
// once from the session callback and once from the post-attach replay.
func (pc *playerConn) sendRaceStarted(text string) {
	pc.mu.Lock()
	if pc.conn == nil || pc.raceStartedSent {
		pc.mu.Unlock()
		return
	}
	pc.raceStartedSent = true
	pc.mu.Unlock()
	pc.write(MsgRaceStarted, RaceStartedPayload{Text: text})
}

func (pc *playerConn) sendResults(winner string, rankings []models.Player) {
	ranked := make([]RankedPlayer, len(rankings))
	for i, p := range rankings {
		rank := i + 1
		ranked[i] = RankedPlayer{
			Rank:     rank,
			Suffix:   outcome.RankSuffix(rank),
			Name:     p.Name,
			Score:    p.Score,
			WPM:      p.WPM,
			Accuracy: p.Accuracy,
		}
	}
	pc.write(MsgResults, ResultsPayload{Winner: winner, Rankings: ranked})
}

func (pc *playerConn) sendRoomDeleted() {
	pc.write(MsgRoomDeleted, struct{}{})
}

func (pc *playerConn) handleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		pc.write(MsgError, ErrorPayload{Message: "invalid message"})
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case MsgInput:
		snap, err := pc.session.Type(ctx, msg.Input)
		if err != nil {
			pc.write(MsgError, ErrorPayload{Message: err.Error()})
			return
		}
		pc.write(MsgSnapshot, SnapshotPayload{Snapshot: snap})
	case MsgStart:
		if err := pc.session.Start(ctx); err != nil {
			pc.write(MsgError, ErrorPayload{Message: err.Error()})
		}
	case MsgLeave:
		if err := pc.session.Leave(ctx); err != nil {
			log.Error().Err(err).Msg("leave failed")
		}
		pc.mu.Lock()
		conn := pc.conn
		pc.mu.Unlock()
		if conn != nil {
			conn.close()
		}
	default:
		pc.write(MsgError, ErrorPayload{Message: "unknown message type"})
	}
}
