package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfolio/archivesync/internal/logger"
)

// archiveRequest selects which media items an operation covers. An empty
// list means every media item of the entry.
type archiveRequest struct {
	MediaIDs []string `json:"media_ids"`
}

func (r *Router) bindArchiveRequest(c *gin.Context) (*archiveRequest, bool) {
	var req archiveRequest
	if c.Request.ContentLength == 0 {
		return &req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return nil, false
	}
	return &req, true
}

// pushArchive handles POST /api/v1/entries/:id/archive
func (r *Router) pushArchive(c *gin.Context) {
	entryID, ok := parseUUID(c, "id", "entry")
	if !ok {
		return
	}
	req, ok := r.bindArchiveRequest(c)
	if !ok {
		return
	}

	result, err := r.controller.PushToArchive(c.Request.Context(), currentUserID(c), entryID, req.MediaIDs)
	if err != nil {
		r.logger.Warn("archive push failed",
			logger.String("entry_id", entryID),
			logger.Error(err))
		handleArchiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// updateArchive handles POST /api/v1/entries/:id/archive/update
func (r *Router) updateArchive(c *gin.Context) {
	entryID, ok := parseUUID(c, "id", "entry")
	if !ok {
		return
	}
	req, ok := r.bindArchiveRequest(c)
	if !ok {
		return
	}

	result, err := r.controller.UpdateArchive(c.Request.Context(), currentUserID(c), entryID, req.MediaIDs)
	if err != nil {
		r.logger.Warn("archive update failed",
			logger.String("entry_id", entryID),
			logger.Error(err))
		handleArchiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// validateArchive handles POST /api/v1/entries/:id/archive/validate
func (r *Router) validateArchive(c *gin.Context) {
	entryID, ok := parseUUID(c, "id", "entry")
	if !ok {
		return
	}
	req, ok := r.bindArchiveRequest(c)
	if !ok {
		return
	}

	err := r.controller.Validate(c.Request.Context(), currentUserID(c), entryID, req.MediaIDs)
	if err != nil {
		handleArchiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// archiveChanged handles GET /api/v1/entries/:id/archive/changed.
// The response "changed" field is true, false or null; null means the
// divergence cannot be determined while jobs are in flight.
func (r *Router) archiveChanged(c *gin.Context) {
	entryID, ok := parseUUID(c, "id", "entry")
	if !ok {
		return
	}

	entryThreshold, ok := parseThreshold(c, "entry_threshold")
	if !ok {
		return
	}
	assetThreshold, ok := parseThreshold(c, "asset_threshold")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	entry, err := r.entries.GetByID(ctx, entryID)
	if err != nil {
		handleArchiveError(c, err)
		return
	}
	if entry.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the owner of this entry"})
		return
	}

	changed, err := r.reconciler.HasChanged(ctx, entry, entryThreshold, assetThreshold)
	if err != nil {
		handleArchiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// parseThreshold reads an optional duration query parameter.
func parseThreshold(c *gin.Context, name string) (time.Duration, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name + ", expected a non-negative duration like 30s",
		})
		return 0, false
	}
	return d, true
}
