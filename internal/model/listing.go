package model

// Listing represents a property listing in the catalog
type Listing struct {
	ID           int64  `json:"id" db:"id"`
	Location     string `json:"location" db:"location"`
	Neighborhood string `json:"neighborhood" db:"neighborhood"`
	Area         string `json:"area" db:"area"`
	Price        string `json:"price" db:"price"`
	Fee          string `json:"fee" db:"fee"` // alícuota
	Bedrooms     *int   `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms    *int   `json:"bathrooms,omitempty" db:"bathrooms"`
	ParkingSpots *int   `json:"parking_spots,omitempty" db:"parking_spots"`
	Description  string `json:"description" db:"description"`
	URL          string `json:"url" db:"url"`
}

// RetrievedListing is a catalog hit returned by semantic retrieval
type RetrievedListing struct {
	Listing   Listing `json:"listing"`
	Rendering string  `json:"-"`
	Score     float64 `json:"score"`
}

// AgentRecord is the human agent responsible for a listing
type AgentRecord struct {
	PropertyID int64  `json:"property_id"`
	Phone      string `json:"phone"`
}

// ListingIDs extracts the ids of retrieved listings in order
func ListingIDs(hits []RetrievedListing) []int64 {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.Listing.ID
	}
	return ids
}
