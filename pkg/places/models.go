package places

import "github.com/atlas-maps/platform/pkg/common/models"

// PlaceResult is one candidate returned by nearby or text search.
type PlaceResult struct {
	PlaceID  string          `json:"place_id"`
	Name     string          `json:"name"`
	Location models.GeoPoint `json:"location"`
}

// PlaceDetails is the detail lookup for a known place id.
type PlaceDetails struct {
	PlaceID          string          `json:"place_id"`
	Name             string          `json:"name"`
	FormattedAddress string          `json:"formatted_address"`
	Phone            string          `json:"formatted_phone_number"`
	Website          string          `json:"website"`
	Types            []string        `json:"types"`
	Location         models.GeoPoint `json:"location"`
	PhotoRefs        []string        `json:"photo_refs"`
}
