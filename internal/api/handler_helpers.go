package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openfolio/archivesync/internal/domain"
	"github.com/openfolio/archivesync/internal/phaidra"
)

// parseUUID parses a UUID from a gin.Context parameter
func parseUUID(c *gin.Context, paramName, entityType string) (string, bool) {
	idParam := c.Param(paramName)
	id, err := uuid.Parse(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + entityType + " ID format",
		})
		return "", false
	}
	return id.String(), true
}

// handleArchiveError maps archival errors onto HTTP responses. Validation
// failures carry their per-field messages; archive backend failures never
// leak credentials or raw responses.
func handleArchiveError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
	case errors.Is(err, domain.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the owner of this entry"})
	case errors.Is(err, domain.ErrContainerNotArchived):
		// Updating before the container exists is a sequencing bug in the
		// caller pipeline, not a user mistake.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Entry has no archived container"})
	case errors.Is(err, phaidra.ErrAuthFailed), errors.Is(err, phaidra.ErrUnavailable), errors.Is(err, phaidra.ErrEmptyPID):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Archive backend request failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Archival operation failed"})
	}
}
