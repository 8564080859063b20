package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds WebSocket tuning for player connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// ConnectionManager tracks live player connections per room, for teardown
// and the stats endpoint.
type ConnectionManager struct {
	mu        sync.RWMutex
	roomConns map[uuid.UUID]map[*Connection]bool
	upgrader  websocket.Upgrader
	config    ConnectionConfig
}

// Connection is one player's WebSocket. Outbound messages go through Send;
// the write pump owns the socket for writes.
type Connection struct {
	ID       string
	PlayerID uuid.UUID
	RoomID   uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time

	closeOnce sync.Once
	onClose   func()
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConns: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Upgrade turns an HTTP request into a registered player connection. onClose
// runs exactly once when either pump tears the connection down.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, playerID, roomID uuid.UUID, onClose func()) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		RoomID:      roomID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		onClose:     onClose,
	}
	cm.register(c)

	log.Info().
		Str("connection_id", c.ID).
		Str("player_id", playerID.String()).
		Str("room_id", roomID.String()).
		Msg("WebSocket connection established")

	return c, nil
}

func (cm *ConnectionManager) register(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.roomConns[c.RoomID] == nil {
		cm.roomConns[c.RoomID] = make(map[*Connection]bool)
	}
	cm.roomConns[c.RoomID][c] = true
}

func (cm *ConnectionManager) unregister(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if conns, ok := cm.roomConns[c.RoomID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			if len(conns) == 0 {
				delete(cm.roomConns, c.RoomID)
			}
			log.Info().
				Str("connection_id", c.ID).
				Str("room_id", c.RoomID.String()).
				Msg("connection unregistered")
		}
	}
}

// Stats returns counts of active connections grouped by room.
func (cm *ConnectionManager) Stats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	roomCounts := make(map[string]int)
	for roomID, conns := range cm.roomConns {
		total += len(conns)
		roomCounts[roomID.String()] = len(conns)
	}
	return map[string]interface{}{
		"total_connections": total,
		"active_rooms":      len(cm.roomConns),
		"room_connections":  roomCounts,
	}
}

// Write queues an outbound message, dropping it if the connection is slow.
func (c *Connection) Write(msg []byte) {
	select {
	case c.Send <- msg:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Msg("connection send buffer full, closing connection")
		c.close()
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.Manager.unregister(c)
		c.Conn.Close()
		close(c.Send)
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// WritePump sends queued messages and pings until the connection dies.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads inbound messages, handing each to handle, until the
// connection dies.
func (c *Connection) ReadPump(handle func(msg []byte)) {
	defer c.close()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}
		handle(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
