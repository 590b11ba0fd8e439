package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"seeds/internal/ledger"
	"seeds/internal/models"
	"seeds/internal/repository"
	"seeds/internal/rules"
)

type UserHandler struct {
	Repo   repository.Repository
	Ledger *ledger.Ledger
	Rules  rules.RuleSet
	Logger *zap.Logger
}

func (h *UserHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/users")
	group.POST("", h.createUser)
	group.GET("/:id", h.getUser)
	group.GET("/:id/transactions", h.listTransactions)
	r.GET("/api/v1/leaderboard", h.leaderboard)
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
}

func (h *UserHandler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		Error(c, http.StatusBadRequest, "username required", nil)
		return
	}
	ctx := c.Request.Context()
	if existing, err := h.Repo.GetUserByUsername(ctx, username); err != nil {
		Fail(c, err)
		return
	} else if existing != nil {
		Error(c, http.StatusConflict, "username taken", nil)
		return
	}

	user := &models.User{
		Username:     username,
		SeedsBalance: decimal.Zero,
		Level:        1,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Repo.CreateUser(ctx, user); err != nil {
		Fail(c, err)
		return
	}
	// The grant goes through the ledger like any other credit so the
	// transaction log explains the full balance from day one.
	if h.Rules.SignupGrantSeeds > 0 {
		grant := decimal.NewFromInt(h.Rules.SignupGrantSeeds)
		if _, err := h.Ledger.Apply(ctx, user.ID, grant, models.ReasonSignupGrant); err != nil {
			Fail(c, err)
			return
		}
	}
	fresh, err := h.Repo.GetUserByID(ctx, user.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("user created",
			zap.Uint64("user_id", user.ID),
			zap.String("username", username),
		)
	}
	Ok(c, fresh, nil)
}

func (h *UserHandler) getUser(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	user, err := h.Repo.GetUserByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if user == nil {
		Error(c, http.StatusNotFound, "user not found", nil)
		return
	}
	Ok(c, user, nil)
}

func (h *UserHandler) listTransactions(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var reasonPtr *string
	if reason := strings.TrimSpace(c.Query("reason")); reason != "" {
		reasonPtr = &reason
	}
	var sinceTime *time.Time
	if since := strings.TrimSpace(c.Query("since")); since != "" {
		if parsed, err := time.Parse(time.RFC3339, since); err == nil {
			parsed = parsed.UTC()
			sinceTime = &parsed
		}
	}

	params := repository.ListSeedsTransactionsParams{
		Limit:   limit,
		Offset:  offset,
		UserID:  &id,
		Reason:  reasonPtr,
		Since:   sinceTime,
		OrderBy: "created_at",
		Asc:     boolPtr(false),
	}
	ctx := c.Request.Context()
	items, err := h.Repo.ListSeedsTransactions(ctx, params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountSeedsTransactions(ctx, params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *UserHandler) leaderboard(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	items, err := h.Repo.ListTopUsers(c.Request.Context(), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, nil)
}
