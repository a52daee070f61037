package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/requestdata"
	"github.com/coursebuilder/backend/internal/services"
)

type AbilityHandler struct {
	abilities services.AbilityService
}

func NewAbilityHandler(abilities services.AbilityService) *AbilityHandler {
	return &AbilityHandler{abilities: abilities}
}

// GET /api/ability
// Returns the caller's serialized rule list so clients can mirror
// permission checks locally.
func (h *AbilityHandler) GetRules(c *gin.Context) {
	userID := uuid.Nil
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		userID = rd.UserID
	}
	ab, err := h.abilities.ForUser(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"rules": ab.Rules()})
}
