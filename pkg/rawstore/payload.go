package rawstore

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Fields is the typed projection of a source payload the pipeline operates
// on. Sources store whatever shape they like in raw_json; only the extractor
// for that source knows how to read it.
type Fields struct {
	Name          string
	AddressStreet string
	Neighborhood  string
	Category      string
	Cuisines      []string
	Phone         string
	Website       string
	Instagram     string
	Description   string
	Hours         string
	GPID          string
	Lat           *float64
	Lng           *float64
	SourceURL     string
}

// Value returns the named critical field as a string for survivorship
// comparison. Empty string means the source did not supply the field.
func (f *Fields) Value(field string) string {
	switch field {
	case "name":
		return f.Name
	case "address_street":
		return f.AddressStreet
	case "neighborhood":
		return f.Neighborhood
	case "category":
		return f.Category
	case "phone":
		return f.Phone
	case "website":
		return f.Website
	case "instagram_handle":
		return f.Instagram
	case "description":
		return f.Description
	case "hours":
		return f.Hours
	case "cuisines":
		if len(f.Cuisines) == 0 {
			return ""
		}
		b, _ := json.Marshal(f.Cuisines)
		return string(b)
	case "lat":
		if f.Lat == nil {
			return ""
		}
		return fmt.Sprintf("%.6f", *f.Lat)
	case "lng":
		if f.Lng == nil {
			return ""
		}
		return fmt.Sprintf("%.6f", *f.Lng)
	default:
		return ""
	}
}

// editorialPayload is the shape written by CSV intake (editorial sheets and
// manual curation share it).
type editorialPayload struct {
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
	SourceURL     string   `json:"source_url"`
}

// googlePayload is the shape written by place-details backfill.
type googlePayload struct {
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	PlaceID          string   `json:"place_id"`
	Phone            string   `json:"formatted_phone_number"`
	Website          string   `json:"website"`
	Types            []string `json:"types"`
	WeekdayText      []string `json:"weekday_text"`
	Location         struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
}

// crawlPayload is the shape written by the website crawler.
type crawlPayload struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
	Instagram   string `json:"instagram_handle"`
	URL         string `json:"url"`
}

// Extract decodes raw_json into typed Fields using the extractor registered
// for the record's source. Unknown sources decode through the editorial
// shape, which doubles as the generic one.
func Extract(sourceName string, raw datatypes.JSON) (*Fields, error) {
	switch sourceName {
	case SourceGooglePlaces:
		var p googlePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", sourceName, err)
		}
		category := ""
		if len(p.Types) > 0 {
			category = p.Types[0]
		}
		hours := ""
		if len(p.WeekdayText) > 0 {
			b, _ := json.Marshal(p.WeekdayText)
			hours = string(b)
		}
		return &Fields{
			Name:          p.Name,
			AddressStreet: p.FormattedAddress,
			Category:      category,
			Phone:         p.Phone,
			Website:       p.Website,
			Hours:         hours,
			GPID:          p.PlaceID,
			Lat:           p.Location.Lat,
			Lng:           p.Location.Lng,
		}, nil
	case SourceWebsiteCrawl:
		var p crawlPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", sourceName, err)
		}
		return &Fields{
			Name:          p.Name,
			AddressStreet: p.Address,
			Phone:         p.Phone,
			Description:   p.Description,
			Instagram:     p.Instagram,
			Website:       p.URL,
			SourceURL:     p.URL,
		}, nil
	default:
		var p editorialPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", sourceName, err)
		}
		return &Fields{
			Name:          p.Name,
			AddressStreet: p.AddressStreet,
			Neighborhood:  p.Neighborhood,
			Category:      p.Category,
			Cuisines:      p.Cuisines,
			Phone:         p.Phone,
			Website:       p.Website,
			Instagram:     p.Instagram,
			Description:   p.Description,
			Hours:         p.Hours,
			GPID:          p.GPID,
			Lat:           p.Lat,
			Lng:           p.Lng,
			SourceURL:     p.SourceURL,
		}, nil
	}
}
