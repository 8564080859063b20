package gateway

import (
	"encoding/json"
	"time"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/race"
)

// ClientMessage is any inbound WebSocket message from a player.
type ClientMessage struct {
	Type  string `json:"type"`
	Input string `json:"input,omitempty"`
}

// Inbound message types.
const (
	MsgInput = "input"
	MsgStart = "start"
	MsgLeave = "leave"
	MsgReset = "reset" // solo only
)

// ServerMessage is any outbound WebSocket message to a player.
type ServerMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Outbound message types.
const (
	MsgPlayers     = "players"
	MsgRaceStarted = "race_started"
	MsgSnapshot    = "snapshot"
	MsgResults     = "results"
	MsgRoomDeleted = "room_deleted"
	MsgSoloStats   = "solo_stats"
	MsgError       = "error"
)

// PlayersPayload carries the registry view after a refresh.
type PlayersPayload struct {
	Players []models.Player `json:"players"`
}

// RaceStartedPayload announces the lobby-to-race transition.
type RaceStartedPayload struct {
	Text string `json:"text"`
}

// RankedPlayer is one leaderboard row.
type RankedPlayer struct {
	Rank     int    `json:"rank"`
	Suffix   string `json:"suffix"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	WPM      int    `json:"wpm"`
	Accuracy int    `json:"accuracy"`
}

// ResultsPayload carries the final standings.
type ResultsPayload struct {
	Winner   string         `json:"winner"`
	Rankings []RankedPlayer `json:"rankings"`
}

// SnapshotPayload echoes the publishing player's own metrics.
type SnapshotPayload struct {
	Snapshot race.Snapshot `json:"snapshot"`
}

// ErrorPayload carries a short transient failure message.
type ErrorPayload struct {
	Message string `json:"message"`
}

func newServerMessage(msgType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ServerMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
