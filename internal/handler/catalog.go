package handler

import (
	"context"
	"net/http"

	"yobot/internal/catalog"
	"yobot/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CatalogReloader rebuilds the catalog snapshot
type CatalogReloader interface {
	Reload(ctx context.Context) (*catalog.Catalog, error)
}

// AgentReloader rebuilds the agent directory
type AgentReloader interface {
	Reload(ctx context.Context) error
	Len() int
}

// CatalogHandler handles catalog administration
type CatalogHandler struct {
	catalog CatalogReloader
	agents  AgentReloader
	logger  *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(store CatalogReloader, agents AgentReloader, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: store,
		agents:  agents,
		logger:  logger.Named("catalog"),
	}
}

// Reload handles POST /api/v1/catalog/reload.
// On failure the previous catalog and directory stay in service.
func (h *CatalogHandler) Reload(c *gin.Context) {
	ctx := c.Request.Context()

	cat, err := h.catalog.Reload(ctx)
	if err != nil {
		h.logger.Error("catalog reload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Catalog reload failed: " + err.Error()})
		return
	}

	if err := h.agents.Reload(ctx); err != nil {
		h.logger.Error("agent directory reload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent directory reload failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.CatalogReloadResponse{
		Listings:  cat.Len(),
		Agents:    h.agents.Len(),
		Dimension: cat.Dimension(),
	})
}
