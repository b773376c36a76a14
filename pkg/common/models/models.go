package models

import "time"

// Event is the envelope published to the pipeline topic after each batch
// stage. Consumers (ops dashboards, audit sinks) are outside this module.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // ingest, resolve, merge, gpid, review, promote
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// GeoPoint is a WGS84 coordinate pair shared across components.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point carries plausible coordinates. The zero
// value is treated as absent; no curated place sits at null island.
func (p GeoPoint) Valid() bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
