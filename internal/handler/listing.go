package handler

import (
	"context"
	"net/http"
	"strconv"

	"yobot/internal/model"
	"yobot/internal/service"

	"github.com/gin-gonic/gin"
)

// ListingStore looks up listings that are not in the loaded catalog
type ListingStore interface {
	GetListingByID(ctx context.Context, listingID int64) (*model.Listing, error)
}

// ListingHandler serves listing lookups
type ListingHandler struct {
	catalog service.CatalogReader
	store   ListingStore
}

// NewListingHandler creates a new listing handler. store may be nil.
func NewListingHandler(catalog service.CatalogReader, store ListingStore) *ListingHandler {
	return &ListingHandler{catalog: catalog, store: store}
}

// GetListing handles GET /api/v1/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	if listing, ok := h.catalog.Current().Lookup(listingID); ok {
		c.JSON(http.StatusOK, listing)
		return
	}

	if h.store != nil {
		listing, err := h.store.GetListingByID(c.Request.Context(), listingID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listing: " + err.Error()})
			return
		}
		if listing != nil {
			c.JSON(http.StatusOK, listing)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
}
