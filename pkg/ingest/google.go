package ingest

import (
	"context"

	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/atlas-maps/platform/pkg/golden"
	"github.com/atlas-maps/platform/pkg/places"
	"github.com/atlas-maps/platform/pkg/rawstore"
)

// GoldenLister supplies the records eligible for provider backfill.
type GoldenLister interface {
	ListActive(ctx context.Context, limit int) ([]golden.Record, error)
}

// BackfillDetails fetches provider details for every active golden record
// that already carries an external place id and stores the response as a
// google_places observation, keyed on the place id. The next merge pass then
// folds the provider's fields in at its trust tier. Reruns refresh in place.
func BackfillDetails(ctx context.Context, goldens GoldenLister, client places.SearchClient, raws RawWriter, batchID string, limit int) (*Summary, error) {
	records, err := goldens.ListActive(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for i := range records {
		rec := &records[i]
		if rec.GooglePlaceID == "" {
			continue
		}
		summary.Read++
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		details, err := client.GetPlaceDetails(ctx, rec.GooglePlaceID)
		if err != nil {
			logger.Log.WithError(err).WithField("place_id", rec.GooglePlaceID).Warn("details lookup failed")
			summary.Errors++
			continue
		}

		payload := map[string]interface{}{
			"name":                   details.Name,
			"formatted_address":      details.FormattedAddress,
			"place_id":               details.PlaceID,
			"formatted_phone_number": details.Phone,
			"website":                details.Website,
			"types":                  details.Types,
		}
		var lat, lng *float64
		if details.Location.Valid() {
			lat, lng = &details.Location.Lat, &details.Location.Lng
			payload["location"] = map[string]float64{"lat": details.Location.Lat, "lng": details.Location.Lng}
		}
		if err := upsertRaw(ctx, raws, rawstore.SourceGooglePlaces, details.PlaceID, batchID, details.Name, lat, lng, payload); err != nil {
			logger.Log.WithError(err).WithField("place_id", details.PlaceID).Error("upsert failed")
			summary.Errors++
			continue
		}
		summary.Ingested++
	}
	return summary, nil
}
