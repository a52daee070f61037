package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/requestdata"
	"github.com/coursebuilder/backend/internal/services"
)

type ProgressHandler struct {
	progress services.ProgressService
}

func NewProgressHandler(progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

func requestUserID(c *gin.Context) uuid.UUID {
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}

type progressRequest struct {
	Complete bool `json:"complete"`
}

// POST /api/resources/:id/progress
func (h *ProgressHandler) Set(c *gin.Context) {
	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID := requestUserID(c)
	var out any
	if req.Complete {
		out, err = h.progress.MarkComplete(c.Request.Context(), userID, resourceID)
	} else {
		out, err = h.progress.MarkIncomplete(c.Request.Context(), userID, resourceID)
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": out})
}

// GET /api/progress
func (h *ProgressHandler) List(c *gin.Context) {
	rows, err := h.progress.ForUser(c.Request.Context(), requestUserID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": rows})
}
