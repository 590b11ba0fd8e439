package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"seeds/internal/indicator"
	"seeds/internal/models"
	"seeds/internal/repository"
)

type IndicatorHandler struct {
	Repo       repository.Repository
	Aggregator *indicator.Aggregator
	Logger     *zap.Logger
}

func (h *IndicatorHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/decisions/:id/indicators", h.createIndicator)
	r.GET("/api/v1/decisions/:id/indicators", h.listIndicators)
	r.GET("/api/v1/decisions/:id/score", h.previewScore)
	r.POST("/api/v1/indicators/:id/snapshots", h.ingestSnapshot)
	r.GET("/api/v1/indicators/:id/snapshots", h.listSnapshots)
}

type createIndicatorRequest struct {
	Name   string  `json:"name" binding:"required"`
	Unit   *string `json:"unit"`
	Source *string `json:"source"`
}

func (h *IndicatorHandler) createIndicator(c *gin.Context) {
	decisionID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	var req createIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		Error(c, http.StatusBadRequest, "name required", nil)
		return
	}
	ctx := c.Request.Context()
	decision, err := h.Repo.GetDecisionByID(ctx, decisionID)
	if err != nil {
		Fail(c, err)
		return
	}
	if decision == nil {
		Error(c, http.StatusNotFound, "decision not found", nil)
		return
	}
	item := &models.Indicator{
		DecisionID: decisionID,
		Name:       strings.TrimSpace(req.Name),
		Unit:       req.Unit,
		Source:     req.Source,
	}
	if err := h.Repo.CreateIndicator(ctx, item); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *IndicatorHandler) listIndicators(c *gin.Context) {
	decisionID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	items, err := h.Repo.ListIndicatorsByDecisionID(c.Request.Context(), decisionID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}

// previewScore runs the aggregation read-only, without touching decision status.
// Useful for checking what a resolution would produce before the due date.
func (h *IndicatorHandler) previewScore(c *gin.Context) {
	decisionID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid decision id", nil)
		return
	}
	score, err := h.Aggregator.Score(c.Request.Context(), decisionID, time.Now().UTC())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"decision_id": decisionID, "score": decimal.NewFromFloat(score).Round(4)}, nil)
}

type ingestSnapshotRequest struct {
	Value      decimal.Decimal `json:"value" binding:"required"`
	RecordedAt time.Time       `json:"recorded_at" binding:"required"`
}

// ingestSnapshot upserts on (indicator, recorded_at): re-delivered samples
// overwrite instead of duplicating, so feed retries are harmless.
func (h *IndicatorHandler) ingestSnapshot(c *gin.Context) {
	indicatorID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid indicator id", nil)
		return
	}
	var req ingestSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	ctx := c.Request.Context()
	ind, err := h.Repo.GetIndicatorByID(ctx, indicatorID)
	if err != nil {
		Fail(c, err)
		return
	}
	if ind == nil {
		Error(c, http.StatusNotFound, "indicator not found", nil)
		return
	}
	item := &models.IndicatorSnapshot{
		IndicatorID: indicatorID,
		Value:       req.Value,
		RecordedAt:  req.RecordedAt.UTC(),
	}
	if err := h.Repo.UpsertIndicatorSnapshot(ctx, item); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *IndicatorHandler) listSnapshots(c *gin.Context) {
	indicatorID, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid indicator id", nil)
		return
	}
	items, err := h.Repo.ListIndicatorSnapshots(c.Request.Context(), indicatorID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}
