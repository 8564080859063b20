package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/race"
)

// soloConn serves a single-player practice run over one WebSocket. Nothing
// touches the store; the session is purely local.
type soloConn struct {
	conn    *Connection
	session *race.SoloSession
}

func (sc *soloConn) sendStats(stats race.SoloStats) {
	msg, err := newServerMessage(MsgSoloStats, stats)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal solo stats")
		return
	}
	sc.conn.Write(msg)
}

func (sc *soloConn) handleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case MsgInput:
		sc.sendStats(sc.session.SetInput(msg.Input))
	case MsgReset:
		sc.session.Reset()
		sc.sendStats(sc.session.Stats())
	}
}
