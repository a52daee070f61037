package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/coursebuilder/backend/internal/services"
)

type SearchHandler struct {
	search services.SearchService
}

func NewSearchHandler(search services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// GET /api/search?q=...&type=...&limit=...
func (h *SearchHandler) Search(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		if n, err := parsePositiveInt(l); err == nil {
			limit = n
		}
	}
	hits, err := h.search.Search(c.Request.Context(), c.Query("q"), c.Query("type"), limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"hits": hits})
}
