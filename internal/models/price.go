package models

import "time"

// PriceSnapshot is one reading of the asset's market data.
type PriceSnapshot struct {
	Price             float64   `json:"price"`
	Volume24h         float64   `json:"volume24h"`
	PriceChangePct24h float64   `json:"priceChangePct24h"`
	VolumeChangePct   string    `json:"volumeChangePct"` // formatted delta, "N/A" when unknown
	FetchedAt         time.Time `json:"fetchedAt"`
}
