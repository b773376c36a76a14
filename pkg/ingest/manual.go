package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/rawstore"
)

// manualEntry is one hand-curated observation. The JSON file is an array of
// these; the payload is stored exactly as supplied.
type manualEntry struct {
	ExternalID    string   `json:"external_id"`
	Name          string   `json:"name"`
	AddressStreet string   `json:"address_street"`
	Neighborhood  string   `json:"neighborhood"`
	Category      string   `json:"category"`
	Cuisines      []string `json:"cuisines"`
	Phone         string   `json:"phone"`
	Website       string   `json:"website"`
	Instagram     string   `json:"instagram_handle"`
	Description   string   `json:"description"`
	Hours         string   `json:"hours"`
	GPID          string   `json:"google_place_id"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
}

// IngestManual loads a JSON array of curated entries as manual-seed
// observations, the highest-trust source in the hierarchy.
func IngestManual(ctx context.Context, raws RawWriter, r io.Reader, batchID string) (*Summary, error) {
	var entries []manualEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode manual entries: %w", err)
	}

	summary := &Summary{Read: len(entries)}
	for i := range entries {
		e := &entries[i]
		if e.ExternalID == "" || e.Name == "" {
			summary.Skipped++
			continue
		}
		if err := upsertRaw(ctx, raws, rawstore.SourceManualSeed, e.ExternalID, batchID, e.Name, e.Lat, e.Lng, e); err != nil {
			logger.Log.WithError(err).WithField("external_id", e.ExternalID).Error("upsert failed")
			summary.Errors++
			continue
		}
		summary.Ingested++
	}
	return summary, nil
}
