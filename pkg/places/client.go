// Package places wraps the third-party place search provider behind a small
// interface. The engine depends only on these shapes, never on a provider SDK.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/atlas-maps/platform/pkg/common/config"
	"github.com/atlas-maps/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// SearchClient is the external collaborator contract.
type SearchClient interface {
	NearbySearch(ctx context.Context, lat, lng, radiusMeters float64) ([]PlaceResult, error)
	SearchPlace(ctx context.Context, query string, maxResults int) ([]PlaceResult, error)
	GetPlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// HTTPClient talks to a Places-compatible REST API. Every call blocks the
// current unit of work and a fixed delay is inserted between consecutive
// calls to respect upstream rate limits; there is no concurrent fan-out.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	cache     *redis.Client
	cacheTTL  time.Duration
	callDelay time.Duration
	lastCall  time.Time
}

func NewHTTPClient(cfg *config.Config, cache *redis.Client) *HTTPClient {
	return &HTTPClient{
		baseURL:   cfg.PlacesBaseURL,
		apiKey:    cfg.PlacesAPIKey,
		http:      &http.Client{Timeout: cfg.PlacesRequestTimeout},
		cache:     cache,
		cacheTTL:  cfg.PlacesCacheTTL,
		callDelay: cfg.PlacesCallDelay,
	}
}

type searchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string `json:"place_id"`
		Name     string `json:"name"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		PlaceID          string `json:"place_id"`
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Phone            string `json:"formatted_phone_number"`
		Website          string `json:"website"`
		Types            []string `json:"types"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"result"`
	ErrorMessage string `json:"error_message"`
}

func (c *HTTPClient) NearbySearch(ctx context.Context, lat, lng, radiusMeters float64) ([]PlaceResult, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%.6f,%.6f", lat, lng))
	params.Set("radius", strconv.Itoa(int(radiusMeters)))

	var resp searchResponse
	if err := c.get(ctx, "/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}
	return c.toResults(resp)
}

func (c *HTTPClient) SearchPlace(ctx context.Context, query string, maxResults int) ([]PlaceResult, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp searchResponse
	if err := c.get(ctx, "/textsearch/json", params, &resp); err != nil {
		return nil, err
	}
	results, err := c.toResults(resp)
	if err != nil {
		return nil, err
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (c *HTTPClient) GetPlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)

	var resp detailsResponse
	if err := c.get(ctx, "/details/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("places details status %s: %s", resp.Status, resp.ErrorMessage)
	}

	d := &PlaceDetails{
		PlaceID:          resp.Result.PlaceID,
		Name:             resp.Result.Name,
		FormattedAddress: resp.Result.FormattedAddress,
		Phone:            resp.Result.Phone,
		Website:          resp.Result.Website,
		Types:            resp.Result.Types,
	}
	d.Location.Lat = resp.Result.Geometry.Location.Lat
	d.Location.Lng = resp.Result.Geometry.Location.Lng
	for _, p := range resp.Result.Photos {
		d.PhotoRefs = append(d.PhotoRefs, p.PhotoReference)
	}
	return d, nil
}

func (c *HTTPClient) toResults(resp searchResponse) ([]PlaceResult, error) {
	switch resp.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, fmt.Errorf("places search status %s: %s", resp.Status, resp.ErrorMessage)
	}
	results := make([]PlaceResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		pr := PlaceResult{PlaceID: r.PlaceID, Name: r.Name}
		pr.Location.Lat = r.Geometry.Location.Lat
		pr.Location.Lng = r.Geometry.Location.Lng
		results = append(results, pr)
	}
	return results, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	cacheKey := "places:" + path + "?" + params.Encode()
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey).Result(); err == nil {
			return json.Unmarshal([]byte(cached), out)
		}
	}

	c.throttle()

	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places request: status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("places response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("places response: %w", err)
	}

	if c.cache != nil {
		// Cache keyed on the unsigned query; a failed write only costs quota.
		if err := c.cache.Set(ctx, cacheKey, body, c.cacheTTL).Err(); err != nil {
			logger.Log.WithError(err).Debug("places cache write failed")
		}
	}
	return nil
}

// throttle enforces the fixed inter-call delay. The pipeline is a single
// sequential worker, so plain state is enough.
func (c *HTTPClient) throttle() {
	if c.callDelay <= 0 {
		return
	}
	if elapsed := time.Since(c.lastCall); elapsed < c.callDelay {
		time.Sleep(c.callDelay - elapsed)
	}
	c.lastCall = time.Now()
}
