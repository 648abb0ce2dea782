package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"points-auction/pkg/logger"
)

// Conn is one user's live connection to one auction.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	userID    string
	auctionID string
}

func newConn(ws *websocket.Conn, userID, auctionID string) *Conn {
	return &Conn{ws: ws, userID: userID, auctionID: auctionID}
}

func (c *Conn) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(message)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// ConnectionManager tracks live connections by auction and by user so the
// engine's notifications can reach whoever is watching.
type ConnectionManager struct {
	mu        sync.RWMutex
	byAuction map[string]map[string]*Conn
	byUser    map[string][]*Conn
	log       logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		byAuction: make(map[string]map[string]*Conn),
		byUser:    make(map[string][]*Conn),
		log:       log,
	}
}

func (cm *ConnectionManager) Register(conn *Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.byAuction[conn.auctionID] == nil {
		cm.byAuction[conn.auctionID] = make(map[string]*Conn)
	}
	cm.byAuction[conn.auctionID][conn.userID] = conn
	cm.byUser[conn.userID] = append(cm.byUser[conn.userID], conn)

	cm.log.Debug("Connection registered", "user_id", conn.userID, "auction_id", conn.auctionID)
}

func (cm *ConnectionManager) Unregister(conn *Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if auctionConns, ok := cm.byAuction[conn.auctionID]; ok {
		delete(auctionConns, conn.userID)
		if len(auctionConns) == 0 {
			delete(cm.byAuction, conn.auctionID)
		}
	}

	remaining := cm.byUser[conn.userID][:0]
	for _, c := range cm.byUser[conn.userID] {
		if c != conn {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		delete(cm.byUser, conn.userID)
	} else {
		cm.byUser[conn.userID] = remaining
	}

	cm.log.Debug("Connection unregistered", "user_id", conn.userID, "auction_id", conn.auctionID)
}

func (cm *ConnectionManager) connectionsForUser(userID string) []*Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conns := make([]*Conn, len(cm.byUser[userID]))
	copy(conns, cm.byUser[userID])
	return conns
}

// NotifyUser sends a message to every connection the user holds. Individual
// send failures are logged and skipped.
func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	for _, conn := range cm.connectionsForUser(userID) {
		if err := conn.Send(message); err != nil {
			cm.log.Warn("Failed to send websocket message",
				"user_id", userID, "auction_id", conn.auctionID, "error", err)
		}
	}
	return nil
}
