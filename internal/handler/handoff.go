package handler

import (
	"errors"
	"net/http"

	"yobot/internal/model"
	"yobot/internal/service"

	"github.com/gin-gonic/gin"
)

// HandoffHandler exposes the agent lookup used by the handoff flow
type HandoffHandler struct {
	resolver *service.HandoffResolver
}

// NewHandoffHandler creates a new handoff handler
func NewHandoffHandler(resolver *service.HandoffResolver) *HandoffHandler {
	return &HandoffHandler{resolver: resolver}
}

// Lookup handles GET /api/v1/handoff/:id.
// It reports whether a listing has an agent without disclosing the number.
func (h *HandoffHandler) Lookup(c *gin.Context) {
	propertyID, err := service.ParsePropertyID(c.Param("id"))
	if errors.Is(err, service.ErrPropertyIDOutOfRange) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	location, neighborhood, ok := h.resolver.Resolve(propertyID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	response := model.HandoffLookupResponse{
		PropertyID:   propertyID,
		Location:     location,
		Neighborhood: neighborhood,
	}
	_, response.HasAgent = h.resolver.AgentFor(propertyID)

	c.JSON(http.StatusOK, response)
}
