package domain

// Listing is a validated, already-clean listing as it arrives from the API.
type Listing struct {
	ID            int64
	Neighbourhood string
	RoomType      string
	Accommodates  int
	Bathrooms     float64
	Bedrooms      int
	Beds          int
	TV            int
	Elevator      int
	Internet      int
	Latitude      float64
	Longitude     float64
}

// CleanListing is one row of the offline clean table, keyed by the raw file
// base name and the 0-based row index inside it. Category is nil when the
// price fell outside every bin; Columns holds the remaining columns as JSON.
type CleanListing struct {
	Source   string
	Row      int
	Price    float64
	Category *int
	Columns  []byte
}

// FeatureMatrix is the ordered numeric input of a Predictor.
type FeatureMatrix struct {
	Columns []string
	Rows    [][]float64
}

type Prediction struct {
	ID            int64  `json:"id"`
	PriceCategory string `json:"price_category"`
}
