package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"seeds/internal/auction"
	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/resolution"
)

type DecisionHandler struct {
	Repo     repository.Repository
	Resolver *resolution.Resolver
	Auction  *auction.Auction
	Logger   *zap.Logger
}

func (h *DecisionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/decisions")
	group.POST("", h.createDecision)
	group.GET("", h.listDecisions)
	group.GET("/:id", h.getDecision)
	group.POST("/:id/activate", h.activateDecision)
	group.POST("/:id/resolve", h.resolveDecision)
	group.POST("/:id/archive", h.archiveDecision)
}

type createDecisionRequest struct {
	Title   string         `json:"title" binding:"required"`
	Slug    *string        `json:"slug"`
	Summary *string        `json:"summary"`
	DueAt   *time.Time     `json:"due_at"`
	Detail  map[string]any `json:"detail"`
}

func (h *DecisionHandler) createDecision(c *gin.Context) {
	var req createDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		Error(c, http.StatusBadRequest, "title required", nil)
		return
	}
	item := &models.Decision{
		Title:   strings.TrimSpace(req.Title),
		Slug:    req.Slug,
		Summary: req.Summary,
		Status:  models.DecisionAnnounced,
	}
	if req.DueAt != nil {
		due := req.DueAt.UTC()
		item.DueAt = &due
	}
	if req.Detail != nil {
		raw, err := json.Marshal(req.Detail)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		item.Detail = datatypes.JSON(raw)
	}
	if err := h.Repo.CreateDecision(c.Request.Context(), item); err != nil {
		Fail(c, err)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("decision created",
			zap.Uint64("decision_id", item.ID),
			zap.String("title", item.Title),
		)
	}
	Ok(c, item, nil)
}

func (h *DecisionHandler) listDecisions(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var statusPtr, outcomePtr, titlePtr *string
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		statusPtr = &status
	}
	if outcome := strings.TrimSpace(c.Query("outcome")); outcome != "" {
		outcomePtr = &outcome
	}
	if title := strings.TrimSpace(c.Query("title")); title != "" {
		titlePtr = &title
	}

	params := repository.ListDecisionsParams{
		Limit:   limit,
		Offset:  offset,
		Status:  statusPtr,
		Outcome: outcomePtr,
		Title:   titlePtr,
		OrderBy: "created_at",
		Asc:     boolPtr(false),
	}
	ctx := c.Request.Context()
	items, err := h.Repo.ListDecisions(ctx, params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountDecisions(ctx, params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// decisionDetail adds settlement progress to the stored row so operators can
// tell a fully settled decision from one with failed items still open.
type decisionDetail struct {
	*models.Decision
	AnticipationsTotal int64 `json:"anticipations_total"`
	AnticipationsOpen  int64 `json:"anticipations_open"`
}

func (h *DecisionHandler) getDecision(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	ctx := c.Request.Context()
	item, err := h.Repo.GetDecisionByID(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "decision not found", nil)
		return
	}
	total, err := h.Repo.CountAnticipations(ctx, repository.ListAnticipationsParams{DecisionID: &id})
	if err != nil {
		Fail(c, err)
		return
	}
	open, err := h.Repo.CountOpenAnticipationsByDecisionID(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, decisionDetail{
		Decision:           item,
		AnticipationsTotal: total,
		AnticipationsOpen:  open,
	}, nil)
}

func (h *DecisionHandler) activateDecision(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	ctx := c.Request.Context()
	moved, err := h.Repo.UpdateDecisionStatus(ctx, id, []string{models.DecisionAnnounced}, models.DecisionActive)
	if err != nil {
		Fail(c, err)
		return
	}
	if !moved {
		Error(c, http.StatusConflict, "decision not in announced state", nil)
		return
	}
	item, err := h.Repo.GetDecisionByID(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *DecisionHandler) resolveDecision(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	result, err := h.Resolver.Resolve(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, result, nil)
}

func (h *DecisionHandler) archiveDecision(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	ctx := c.Request.Context()
	moved, err := h.Repo.UpdateDecisionStatus(ctx, id,
		[]string{models.DecisionAnnounced, models.DecisionActive, models.DecisionResolved},
		models.DecisionArchived)
	if err != nil {
		Fail(c, err)
		return
	}
	if !moved {
		Error(c, http.StatusConflict, "decision cannot be archived", nil)
		return
	}
	// Archiving freezes the featured-argument slots with their final holders.
	closed, err := h.Auction.Close(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	item, err := h.Repo.GetDecisionByID(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, map[string]any{"slots_closed": closed})
}
