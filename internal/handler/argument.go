package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"seeds/internal/auction"
	"seeds/internal/models"
	"seeds/internal/repository"
)

type ArgumentHandler struct {
	Repo    repository.Repository
	Auction *auction.Auction
}

func (h *ArgumentHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/decisions/:id/arguments", h.listArguments)
	r.POST("/api/v1/decisions/:id/arguments/bid", h.placeBid)
}

// argumentView pairs each slot (or empty position) with the bid a challenger
// would have to place; clients must not derive that floor themselves.
type argumentView struct {
	Position       string              `json:"position"`
	Slot           *models.TopArgument `json:"slot,omitempty"`
	MinimumNextBid decimal.Decimal     `json:"minimum_next_bid"`
}

func (h *ArgumentHandler) listArguments(c *gin.Context) {
	decisionID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	slots, err := h.Repo.ListTopArgumentsByDecisionID(c.Request.Context(), decisionID)
	if err != nil {
		Fail(c, err)
		return
	}
	byPosition := map[string]*models.TopArgument{}
	for i := range slots {
		byPosition[slots[i].Position] = &slots[i]
	}
	views := make([]argumentView, 0, 2)
	for _, position := range []string{models.PositionFor, models.PositionAgainst} {
		slot := byPosition[position]
		views = append(views, argumentView{
			Position:       position,
			Slot:           slot,
			MinimumNextBid: h.Auction.MinimumNextBid(slot),
		})
	}
	Ok(c, views, nil)
}

type placeBidRequest struct {
	UserID   uint64          `json:"user_id" binding:"required"`
	Position string          `json:"position" binding:"required"`
	Content  string          `json:"content" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

func (h *ArgumentHandler) placeBid(c *gin.Context) {
	decisionID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	slot, err := h.Auction.Bid(c.Request.Context(), decisionID, req.Position, req.UserID, req.Content, req.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, slot, map[string]any{
		"minimum_next_bid": h.Auction.MinimumNextBid(slot),
	})
}
