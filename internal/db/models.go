package db

// timestamps are stored as unix seconds

type TrackedSource struct {
	ID             int64
	Name           string
	Url            string
	ExtractionGoal string
	Active         bool
	CreatedAt      int64
	UpdatedAt      int64
}

type PriceObservation struct {
	ID         int64
	SourceID   int64
	Url        string
	Price      string
	Currency   string
	RawResult  string
	ObservedAt int64
}

type PriceChange struct {
	ID               int64
	SourceID         int64
	Url              string
	OldPrice         string
	NewPrice         string
	ChangePercentage float64
	DetectedAt       int64
}
