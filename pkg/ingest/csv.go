// Package ingest loads source observations into the raw store. Every path
// writes through the same upsert keyed on (source, external id), so any
// intake can be rerun without duplicating rows.
package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/mmcloughlin/geohash"

	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/normalize"
	"github.com/atlas-maps/platform/pkg/rawstore"
)

// geohashPrecision gives ~150m cells, matching the nearby-match radius.
const geohashPrecision = 7

// RawWriter is the raw-store surface intake needs.
type RawWriter interface {
	Upsert(ctx context.Context, rec *rawstore.RawRecord) error
}

// Summary reports one intake run.
type Summary struct {
	Read     int
	Ingested int
	Skipped  int
	Errors   int
}

// csvRow is the editorial sheet shape. external_id is required; everything
// else is optional and lands in the payload as given.
type csvRow struct {
	ExternalID    string   `csv:"external_id"`
	Name          string   `csv:"name"`
	AddressStreet string   `csv:"address_street"`
	Neighborhood  string   `csv:"neighborhood"`
	Category      string   `csv:"category"`
	Cuisines      string   `csv:"cuisines"` // pipe-separated
	Phone         string   `csv:"phone"`
	Website       string   `csv:"website"`
	Instagram     string   `csv:"instagram_handle"`
	Description   string   `csv:"description"`
	Hours         string   `csv:"hours"`
	GPID          string   `csv:"google_place_id"`
	Lat           *float64 `csv:"lat"`
	Lng           *float64 `csv:"lng"`
	SourceURL     string   `csv:"source_url"`
}

// IngestCSV reads an editorial sheet and upserts one raw record per row.
// Bad rows are logged and counted; the run continues.
func IngestCSV(ctx context.Context, raws RawWriter, r io.Reader, sourceName, batchID string) (*Summary, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	summary := &Summary{}
	for {
		var row csvRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			logger.Log.WithError(err).Warn("undecodable csv row")
			summary.Errors++
			continue
		}
		summary.Read++

		if row.ExternalID == "" || row.Name == "" {
			summary.Skipped++
			continue
		}

		payload := map[string]interface{}{
			"name":             row.Name,
			"address_street":   row.AddressStreet,
			"neighborhood":     row.Neighborhood,
			"category":         row.Category,
			"cuisines":         splitCuisines(row.Cuisines),
			"phone":            row.Phone,
			"website":          row.Website,
			"instagram_handle": row.Instagram,
			"description":      row.Description,
			"hours":            row.Hours,
			"google_place_id":  row.GPID,
			"lat":              row.Lat,
			"lng":              row.Lng,
			"source_url":       row.SourceURL,
		}
		if err := upsertRaw(ctx, raws, sourceName, row.ExternalID, batchID, row.Name, row.Lat, row.Lng, payload); err != nil {
			logger.Log.WithError(err).WithField("external_id", row.ExternalID).Error("upsert failed")
			summary.Errors++
			continue
		}
		summary.Ingested++
	}

	logger.Log.WithFields(map[string]interface{}{
		"source": sourceName, "batch_id": batchID,
		"read": summary.Read, "ingested": summary.Ingested,
		"skipped": summary.Skipped, "errors": summary.Errors,
	}).Info("csv intake finished")
	return summary, nil
}

func splitCuisines(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func upsertRaw(ctx context.Context, raws RawWriter, sourceName, externalID, batchID, name string, lat, lng *float64, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	rec := &rawstore.RawRecord{
		SourceName:     sourceName,
		ExternalID:     externalID,
		NameNormalized: normalize.Name(name),
		Lat:            lat,
		Lng:            lng,
		RawJSON:        b,
		IntakeBatchID:  batchID,
	}
	if lat != nil && lng != nil && !(*lat == 0 && *lng == 0) {
		rec.Geohash = geohash.EncodeWithPrecision(*lat, *lng, geohashPrecision)
	}
	return raws.Upsert(ctx, rec)
}
