package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/ability"
	"github.com/coursebuilder/backend/internal/requestdata"
	"github.com/coursebuilder/backend/internal/services"
	"github.com/coursebuilder/backend/internal/types"
)

type ContentHandler struct {
	content   services.ContentService
	tree      services.TreeService
	videos    services.VideoService
	abilities services.AbilityService
}

func NewContentHandler(content services.ContentService, tree services.TreeService, videos services.VideoService, abilities services.AbilityService) *ContentHandler {
	return &ContentHandler{
		content:   content,
		tree:      tree,
		videos:    videos,
		abilities: abilities,
	}
}

// can resolves the caller's ability and evaluates one permission check.
// Anonymous callers get the anonymous rule set.
func (h *ContentHandler) can(c *gin.Context, action string, target ...ability.Target) bool {
	userID := uuid.Nil
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		userID = rd.UserID
	}
	ab, err := h.abilities.ForUser(c.Request.Context(), userID)
	if err != nil {
		return false
	}
	return ab.Can(action, ability.SubjectContent, target...)
}

func targetOf(res *types.ContentResource) ability.Target {
	return ability.Target{
		ID:          res.ID,
		CreatedByID: res.CreatedByID,
		State:       res.State(),
		Visibility:  res.Visibility(),
	}
}

// POST /api/resources
func (h *ContentHandler) Create(c *gin.Context) {
	if !h.can(c, ability.ActionCreate) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	var req services.CreateResourceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID := uuid.Nil
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		userID = rd.UserID
	}
	res, err := h.content.Create(c.Request.Context(), nil, userID, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"resource": res})
}

// GET /api/resources/:ref
func (h *ContentHandler) Get(c *gin.Context) {
	res, err := h.content.GetByIDOrSlug(c.Request.Context(), nil, c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionRead, targetOf(res)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	RespondOK(c, gin.H{"resource": res})
}

// GET /api/resources/:ref/tree
func (h *ContentHandler) GetTree(c *gin.Context) {
	res, err := h.content.GetByIDOrSlug(c.Request.Context(), nil, c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionRead, targetOf(res)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	depth := 0
	if d := c.Query("depth"); d != "" {
		if n, err := parsePositiveInt(d); err == nil {
			depth = n
		}
	}
	tree, err := h.tree.LoadTree(c.Request.Context(), nil, res.ID, depth)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"resource": tree})
}

// PUT /api/resources/:id
func (h *ContentHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	res, err := h.content.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionUpdate, targetOf(res)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	var req services.UpdateResourceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	updated, err := h.content.Update(c.Request.Context(), nil, id, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"resource": updated})
}

// DELETE /api/resources/:id
func (h *ContentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	res, err := h.content.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionDelete, targetOf(res)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	if err := h.content.Delete(c.Request.Context(), nil, id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

type setStateRequest struct {
	State string `json:"state" binding:"required"`
}

// POST /api/resources/:id/state
func (h *ContentHandler) SetState(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	res, err := h.content.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionPublish, targetOf(res)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	var req setStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	updated, err := h.content.SetState(c.Request.Context(), nil, id, req.State)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"resource": updated})
}

type attachRequest struct {
	ChildID      uuid.UUID  `json:"child_id" binding:"required"`
	AfterChildID *uuid.UUID `json:"after_child_id"`
}

// POST /api/resources/:id/children
func (h *ContentHandler) Attach(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	parent, err := h.content.GetByID(c.Request.Context(), nil, parentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionUpdate, targetOf(parent)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	edge, err := h.tree.Attach(c.Request.Context(), nil, parentID, req.ChildID, req.AfterChildID)
	if err != nil {
		if errors.Is(err, services.ErrEdgeCycle) {
			RespondError(c, http.StatusConflict, "edge_cycle", err)
			return
		}
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"edge": edge})
}

// DELETE /api/resources/:id/children/:childID
func (h *ContentHandler) Detach(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	childID, err := uuid.Parse(c.Param("childID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	parent, err := h.content.GetByID(c.Request.Context(), nil, parentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionUpdate, targetOf(parent)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	if err := h.tree.Detach(c.Request.Context(), nil, parentID, childID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "detached"})
}

type reorderRequest struct {
	ChildIDs []uuid.UUID `json:"child_ids" binding:"required"`
}

// POST /api/resources/:id/reorder
func (h *ContentHandler) Reorder(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	parent, err := h.content.GetByID(c.Request.Context(), nil, parentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionUpdate, targetOf(parent)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.tree.Reorder(c.Request.Context(), nil, parentID, req.ChildIDs); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "reordered"})
}

type attachVideoRequest struct {
	AssetID    string `json:"asset_id" binding:"required"`
	PlaybackID string `json:"playback_id"`
}

// POST /api/resources/:id/video
func (h *ContentHandler) AttachVideo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_resource_id", err)
		return
	}
	res, err := h.content.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if !h.can(c, ability.ActionUpdate, targetOf(res)) {
		RespondError(c, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	var req attachVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID := uuid.Nil
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		userID = rd.UserID
	}
	job, err := h.videos.AttachAsset(c.Request.Context(), id, req.AssetID, req.PlaybackID, userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}
