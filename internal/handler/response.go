package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"seeds/internal/anticipation"
	"seeds/internal/auction"
	"seeds/internal/indicator"
	"seeds/internal/ledger"
	"seeds/internal/resolution"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps domain errors onto HTTP statuses so every handler reports the same
// taxonomy.
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, anticipation.ErrDecisionNotFound),
		errors.Is(err, auction.ErrDecisionNotFound),
		errors.Is(err, resolution.ErrDecisionNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, anticipation.ErrInvalidStake),
		errors.Is(err, anticipation.ErrInvalidIssue),
		errors.Is(err, auction.ErrInvalidBid),
		errors.Is(err, auction.ErrInvalidPosition):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, anticipation.ErrDecisionClosed),
		errors.Is(err, auction.ErrSlotClosed),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, resolution.ErrDecisionArchived),
		errors.Is(err, indicator.ErrInsufficientData):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, auction.ErrConcurrencyConflict),
		errors.Is(err, resolution.ErrResolutionInProgress):
		Error(c, http.StatusTooManyRequests, err.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func uintParam(c *gin.Context, key string) (uint64, bool) {
	v := strings.TrimSpace(c.Param(key))
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}

func boolPtr(v bool) *bool { return &v }
