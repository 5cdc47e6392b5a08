package handler

import (
	"context"
	"fmt"
	"net/http"

	"yobot/internal/model"

	"github.com/gin-gonic/gin"
)

// EmbeddingStore persists listing embeddings
type EmbeddingStore interface {
	BatchUpsertEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string)
}

// EmbeddingHandler handles embedding-related HTTP requests
type EmbeddingHandler struct {
	store     EmbeddingStore
	dimension int
}

// NewEmbeddingHandler creates a new embedding handler.
// A positive dimension is enforced on every item.
func NewEmbeddingHandler(store EmbeddingStore, dimension int) *EmbeddingHandler {
	return &EmbeddingHandler{
		store:     store,
		dimension: dimension,
	}
}

// BatchUpdate handles POST /api/v1/embeddings/batch
func (h *EmbeddingHandler) BatchUpdate(c *gin.Context) {
	var req model.EmbeddingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.Embeddings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No embeddings provided"})
		return
	}

	// Every vector must share one dimension so the catalog stays comparable
	want := h.dimension
	if want <= 0 {
		want = len(req.Embeddings[0].Embedding)
	}
	for i, item := range req.Embeddings {
		if len(item.Embedding) != want || want == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid embedding dimension at index %d: got %d, expected %d", i, len(item.Embedding), want),
			})
			return
		}
	}

	success, errors := h.store.BatchUpsertEmbeddings(c.Request.Context(), req.Embeddings)

	response := model.EmbeddingBatchResponse{
		Success: success,
		Failed:  len(req.Embeddings) - success,
		Errors:  errors,
	}

	if len(errors) > 0 {
		c.JSON(http.StatusPartialContent, response)
	} else {
		c.JSON(http.StatusOK, response)
	}
}
