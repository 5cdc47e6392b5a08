package model

// MessageRequest simulates an inbound WhatsApp message
type MessageRequest struct {
	From string `json:"from" binding:"required"`
	Body string `json:"body"`
}

// MessageResponse is returned by the message simulator endpoint
type MessageResponse struct {
	Reply *Reply `json:"reply"`
	Took  int64  `json:"took_ms"` // Response time in milliseconds
}

// EmbeddingBatchRequest represents a batch embedding update request
type EmbeddingBatchRequest struct {
	Embeddings []EmbeddingItem `json:"embeddings" binding:"required"`
}

// EmbeddingItem represents a single embedding with listing info
type EmbeddingItem struct {
	ListingID int64     `json:"listing_id" binding:"required"`
	Embedding []float32 `json:"embedding" binding:"required"`
	Text      string    `json:"text,omitempty"` // The text used to generate embedding
}

// EmbeddingBatchResponse represents the response for batch embedding update
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// HandoffLookupResponse describes who handles a listing
type HandoffLookupResponse struct {
	PropertyID   int64  `json:"property_id"`
	Location     string `json:"location"`
	Neighborhood string `json:"neighborhood"`
	HasAgent     bool   `json:"has_agent"`
}

// CatalogReloadResponse reports the outcome of a catalog reload
type CatalogReloadResponse struct {
	Listings  int `json:"listings"`
	Agents    int `json:"agents"`
	Dimension int `json:"dimension"`
}
