package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"seeds/internal/anticipation"
	"seeds/internal/repository"
)

type AnticipationHandler struct {
	Repo    repository.Repository
	Service *anticipation.Service
}

func (h *AnticipationHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/decisions/:id/anticipations", h.placeAnticipation)
	r.GET("/api/v1/decisions/:id/anticipations", h.listByDecision)
	r.GET("/api/v1/users/:id/anticipations", h.listByUser)
}

type placeAnticipationRequest struct {
	UserID       uint64          `json:"user_id" binding:"required"`
	Issue        string          `json:"issue" binding:"required"`
	SeedsEngaged decimal.Decimal `json:"seeds_engaged" binding:"required"`
}

func (h *AnticipationHandler) placeAnticipation(c *gin.Context) {
	decisionID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	var req placeAnticipationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item, err := h.Service.Place(c.Request.Context(), decisionID, req.UserID, req.Issue, req.SeedsEngaged)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *AnticipationHandler) listByDecision(c *gin.Context) {
	decisionID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	h.list(c, repository.ListAnticipationsParams{DecisionID: &decisionID})
}

func (h *AnticipationHandler) listByUser(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	h.list(c, repository.ListAnticipationsParams{UserID: &userID})
}

func (h *AnticipationHandler) list(c *gin.Context, params repository.ListAnticipationsParams) {
	params.Limit = intQuery(c, "limit", 50)
	params.Offset = intQuery(c, "offset", 0)
	params.OrderBy = "created_at"
	params.Asc = boolPtr(false)
	if resolved := c.Query("resolved"); resolved == "true" || resolved == "false" {
		params.Resolved = boolPtr(resolved == "true")
	}

	ctx := c.Request.Context()
	items, err := h.Repo.ListAnticipations(ctx, params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountAnticipations(ctx, params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}
