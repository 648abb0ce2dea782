package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"points-auction/internal/domain"
	"points-auction/internal/services"
	"points-auction/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin checks belong to the platform's edge proxy
	},
}

// Handler upgrades bidder connections and serves the live auction feed.
// Clients may also place bids over the socket; the engine applies the same
// rules as the HTTP path.
type Handler struct {
	engine      *services.Engine
	connManager *ConnectionManager
	log         logger.Logger
}

func NewHandler(engine *services.Engine, connManager *ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		engine:      engine,
		connManager: connManager,
		log:         log,
	}
}

func (h *Handler) HandleConnection(c echo.Context) error {
	auctionID := c.Param("id")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id required"})
	}

	auction, err := h.engine.GetAuctionDetails(c.Request().Context(), auctionID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load auction"})
	}
	if auction.Auction.Status == domain.AuctionEnded || auction.Auction.Status == domain.AuctionCancelled {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "auction already closed"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return nil
	}

	conn := newConn(ws, userID, auctionID)
	h.connManager.Register(conn)

	go h.readLoop(conn)
	return nil
}

type clientMessage struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount,omitempty"`
}

func (h *Handler) readLoop(conn *Conn) {
	defer func() {
		h.connManager.Unregister(conn)
		conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("Websocket read ended", "user_id", conn.userID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBid(conn, msg.Amount)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *Handler) handleBid(conn *Conn, amount int64) {
	auction, err := h.engine.PlaceBid(context.Background(), conn.auctionID, conn.userID, amount)
	if err != nil {
		conn.Send(map[string]interface{}{
			"type":    "bid_rejected",
			"message": err.Error(),
		})
		return
	}

	conn.Send(map[string]interface{}{
		"type":         "bid_accepted",
		"amount":       auction.CurrentHighestBid,
		"end_time":     auction.EndTime,
		"min_next_bid": auction.MinNextBid(),
	})
}
