package handler

import (
	"github.com/gin-gonic/gin"

	"seeds/internal/rules"
)

// RulesHandler serves the active rule set verbatim so clients can display the
// same thresholds, multipliers and bid floors the engine enforces.
type RulesHandler struct {
	Rules rules.RuleSet
}

func (h *RulesHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/rules", h.getRules)
}

func (h *RulesHandler) getRules(c *gin.Context) {
	Ok(c, h.Rules, nil)
}
