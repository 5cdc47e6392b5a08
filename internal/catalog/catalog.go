package catalog

import (
	"errors"
	"fmt"
	"time"

	"yobot/internal/model"
)

var (
	// ErrDuplicateID is returned when two entries share a listing id
	ErrDuplicateID = errors.New("duplicate listing id")
	// ErrDimensionMismatch is returned when embeddings differ in length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyEmbedding is returned for an entry without a vector
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// Entry is one listing together with its rendering and precomputed embedding
type Entry struct {
	Listing   model.Listing
	Rendering string
	Embedding []float32
}

// Catalog is an immutable snapshot of listings and their embeddings.
// Entries keep their source order, which is also the retrieval tiebreak order.
// A Catalog is safe for concurrent readers.
type Catalog struct {
	entries  []Entry
	byID     map[int64]int
	dim      int
	loadedAt time.Time
}

// New validates entries and builds a snapshot.
// Ids must be unique and every embedding must have the same, non-zero length.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries:  make([]Entry, len(entries)),
		byID:     make(map[int64]int, len(entries)),
		loadedAt: time.Now(),
	}

	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("listing %d: %w", e.Listing.ID, ErrEmptyEmbedding)
		}
		if i == 0 {
			c.dim = len(e.Embedding)
		} else if len(e.Embedding) != c.dim {
			return nil, fmt.Errorf("listing %d has %d dimensions, expected %d: %w",
				e.Listing.ID, len(e.Embedding), c.dim, ErrDimensionMismatch)
		}
		if prev, dup := c.byID[e.Listing.ID]; dup {
			return nil, fmt.Errorf("listing %d at rows %d and %d: %w", e.Listing.ID, prev, i, ErrDuplicateID)
		}
		if e.Rendering == "" {
			e.Rendering = Render(e.Listing)
		}
		c.byID[e.Listing.ID] = i
		c.entries[i] = e
	}

	return c, nil
}

// Empty returns a catalog with no entries
func Empty() *Catalog {
	c, _ := New(nil)
	return c
}

// Len returns the number of listings
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Dimension returns the embedding length, 0 for an empty catalog
func (c *Catalog) Dimension() int {
	return c.dim
}

// LoadedAt returns when the snapshot was built
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

// Entry returns the entry at position i
func (c *Catalog) Entry(i int) Entry {
	return c.entries[i]
}

// Embedding returns the embedding at position i. Callers must not modify it.
func (c *Catalog) Embedding(i int) []float32 {
	return c.entries[i].Embedding
}

// Lookup finds a listing by id
func (c *Catalog) Lookup(id int64) (model.Listing, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Listing{}, false
	}
	return c.entries[i].Listing, true
}

// Listings returns all listings in catalog order
func (c *Catalog) Listings() []model.Listing {
	out := make([]model.Listing, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Listing
	}
	return out
}
