package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/services"
)

type JobsHandler struct {
	jobs services.JobService
}

func NewJobsHandler(jobs services.JobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobsHandler) GetByID(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if job == nil {
		RespondError(c, http.StatusNotFound, "job_not_found", fmt.Errorf("job %s not found", jobID))
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobsHandler) Cancel(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if err := h.jobs.Cancel(c.Request.Context(), jobID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "canceled"})
}
