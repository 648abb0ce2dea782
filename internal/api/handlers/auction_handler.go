package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"points-auction/internal/domain"
	"points-auction/internal/services"
	"points-auction/pkg/logger"
)

// AuctionHandler exposes the engine over HTTP for admin tooling and the
// platform's presentation layer.
type AuctionHandler struct {
	engine *services.Engine
	log    logger.Logger
}

func NewAuctionHandler(engine *services.Engine, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		engine: engine,
		log:    log,
	}
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions/active", h.GetActiveAuctions)
	g.GET("/auctions/pending", h.GetPendingAuctions)
	g.GET("/auctions/unsettled", h.GetUnsettledAuctions)
	g.GET("/auctions/:id", h.GetAuctionDetails)
	g.POST("/auctions/:id/start", h.StartAuction)
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.POST("/auctions/:id/end", h.EndAuction)
	g.POST("/auctions/:id/cancel", h.CancelAuction)
}

type CreateAuctionRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Prize            string `json:"prize"`
	InitialPrice     int64  `json:"initial_price"`
	DurationHours    int    `json:"duration_hours"`
	CreatorID        string `json:"creator_id"`
	MinIncrement     int64  `json:"min_increment,omitempty"`
	MaxParticipants  int    `json:"max_participants,omitempty"`
	AutoExtendMins   int    `json:"auto_extend_minutes,omitempty"`
}

type AuctionResponse struct {
	AuctionID         string     `json:"auction_id"`
	Name              string     `json:"name"`
	Prize             string     `json:"prize"`
	Status            string     `json:"status"`
	Settlement        string     `json:"settlement"`
	InitialPrice      int64      `json:"initial_price"`
	CurrentHighestBid int64      `json:"current_highest_bid"`
	WinnerID          string     `json:"winner_id,omitempty"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:         a.ID,
		Name:              a.Name,
		Prize:             a.Prize,
		Status:            a.Status.String(),
		Settlement:        a.Settlement.String(),
		InitialPrice:      a.InitialPrice,
		CurrentHighestBid: a.CurrentHighestBid,
		WinnerID:          a.WinnerID,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		EndedAt:           a.EndedAt,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	auction, err := h.engine.CreateAuction(c.Request().Context(), services.CreateAuctionInput{
		Name:             req.Name,
		Description:      req.Description,
		Prize:            req.Prize,
		InitialPrice:     req.InitialPrice,
		DurationHours:    req.DurationHours,
		CreatorID:        req.CreatorID,
		MinIncrement:     req.MinIncrement,
		MaxParticipants:  req.MaxParticipants,
		AutoExtendWindow: time.Duration(req.AutoExtendMins) * time.Minute,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *AuctionHandler) StartAuction(c echo.Context) error {
	if err := h.engine.StartAuction(c.Request().Context(), c.Param("id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "active"})
}

type PlaceBidRequest struct {
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

type PlaceBidResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Auction *AuctionResponse `json:"auction,omitempty"`
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, PlaceBidResponse{Success: false, Message: "invalid request body"})
	}
	if req.BidderID == "" {
		return c.JSON(http.StatusBadRequest, PlaceBidResponse{Success: false, Message: "bidder_id required"})
	}

	auction, err := h.engine.PlaceBid(c.Request().Context(), c.Param("id"), req.BidderID, req.Amount)
	if err != nil {
		return c.JSON(statusForError(err), PlaceBidResponse{Success: false, Message: err.Error()})
	}

	resp := toAuctionResponse(auction)
	return c.JSON(http.StatusOK, PlaceBidResponse{Success: true, Auction: &resp})
}

func (h *AuctionHandler) EndAuction(c echo.Context) error {
	auction, err := h.engine.EndAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	if err := h.engine.CancelAuction(c.Request().Context(), c.Param("id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *AuctionHandler) GetActiveAuctions(c echo.Context) error {
	return h.listAuctions(c, h.engine.GetActiveAuctions)
}

func (h *AuctionHandler) GetPendingAuctions(c echo.Context) error {
	return h.listAuctions(c, h.engine.GetPendingAuctions)
}

func (h *AuctionHandler) GetUnsettledAuctions(c echo.Context) error {
	return h.listAuctions(c, h.engine.UnsettledAuctions)
}

func (h *AuctionHandler) listAuctions(c echo.Context, list func(context.Context) ([]*domain.Auction, error)) error {
	auctions, err := list(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}

	responses := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		responses = append(responses, toAuctionResponse(a))
	}
	return c.JSON(http.StatusOK, responses)
}

type AuctionDetailsResponse struct {
	AuctionResponse
	Description          string `json:"description"`
	MinNextBid           int64  `json:"min_next_bid"`
	TimeRemainingSeconds int64  `json:"time_remaining_seconds"`
	ParticipantCount     int    `json:"participant_count"`
	HighestBidder        string `json:"highest_bidder,omitempty"`
	YourHighestBid       int64  `json:"your_highest_bid"`
	YouAreLeading        bool   `json:"you_are_leading"`
}

func (h *AuctionHandler) GetAuctionDetails(c echo.Context) error {
	details, err := h.engine.GetAuctionDetails(c.Request().Context(), c.Param("id"), c.QueryParam("viewer_id"))
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, AuctionDetailsResponse{
		AuctionResponse:      toAuctionResponse(details.Auction),
		Description:          details.Auction.Description,
		MinNextBid:           details.MinNextBid,
		TimeRemainingSeconds: int64(details.TimeRemaining.Seconds()),
		ParticipantCount:     details.ParticipantCount,
		HighestBidder:        details.HighestBidder,
		YourHighestBid:       details.ViewerHighestBid,
		YouAreLeading:        details.ViewerIsLeading,
	})
}

func (h *AuctionHandler) errorResponse(c echo.Context, err error) error {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.Path(), "error", err)
		return c.JSON(status, map[string]string{"error": "internal error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrBidTooLow):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyHighestBidder),
		errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
