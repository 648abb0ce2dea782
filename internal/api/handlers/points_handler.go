package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"points-auction/pkg/logger"
)

// PointsAccount is the slice of the ledger the admin surface needs: granting
// points and reading balances. Debiting stays with the engine.
type PointsAccount interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) error
}

type PointsHandler struct {
	ledger PointsAccount
	log    logger.Logger
}

func NewPointsHandler(ledger PointsAccount, log logger.Logger) *PointsHandler {
	return &PointsHandler{
		ledger: ledger,
		log:    log,
	}
}

func (h *PointsHandler) Register(g *echo.Group) {
	g.GET("/users/:id/points", h.GetBalance)
	g.POST("/users/:id/points", h.GrantPoints)
}

func (h *PointsHandler) GetBalance(c echo.Context) error {
	balance, err := h.ledger.GetBalance(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.log.Error("Failed to read balance", "user_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id": c.Param("id"),
		"balance": balance,
	})
}

type GrantPointsRequest struct {
	Amount int64 `json:"amount"`
}

func (h *PointsHandler) GrantPoints(c echo.Context) error {
	var req GrantPointsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
	}

	if err := h.ledger.Credit(c.Request().Context(), c.Param("id"), req.Amount); err != nil {
		h.log.Error("Failed to credit points", "user_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "credited"})
}
