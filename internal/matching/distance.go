// internal/matching/distance.go
package matching

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"caregiver-matching/internal/common/database"
	apperrors "caregiver-matching/internal/common/errors"
	httpclient "caregiver-matching/internal/common/http"
	"caregiver-matching/internal/common/logger"
	"caregiver-matching/internal/models"
)

var ErrNoRoute = errors.New("no route between locations")

type distanceMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"` // meters
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// MapsDistance queries a Distance Matrix compatible API and caches results in Redis.
type MapsDistance struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	cache   *database.RedisClient
	ttl     time.Duration
	logger  logger.Logger
}

// NewMapsDistance accepts a nil cache.
func NewMapsDistance(baseURL, apiKey string, timeout time.Duration, cache *database.RedisClient, ttl time.Duration, log logger.Logger) *MapsDistance {
	return &MapsDistance{
		client:  httpclient.NewClient(timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
		cache:   cache,
		ttl:     ttl,
		logger:  log.WithFields(map[string]interface{}{"component": "maps-distance"}),
	}
}

func distanceCacheKey(from, to models.Location) string {
	return fmt.Sprintf("distance:%.5f,%.5f:%.5f,%.5f", from.Lat, from.Lng, to.Lat, to.Lng)
}

func (m *MapsDistance) DistanceKm(ctx context.Context, from, to models.Location) (float64, error) {
	key := distanceCacheKey(from, to)
	if m.cache != nil {
		var km float64
		err := m.cache.GetJSON(ctx, key, &km)
		if err == nil {
			return km, nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			m.logger.Warn("distance cache read failed", map[string]interface{}{"error": err.Error()})
		}
	}

	km, err := m.fetch(ctx, from, to)
	if err != nil {
		return 0, apperrors.NewExternalServiceError("maps", err)
	}

	if m.cache != nil {
		if err := m.cache.SetJSON(ctx, key, km, m.ttl); err != nil {
			m.logger.Warn("distance cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return km, nil
}

func (m *MapsDistance) fetch(ctx context.Context, from, to models.Location) (float64, error) {
	q := url.Values{}
	q.Set("origins", fmt.Sprintf("%f,%f", from.Lat, from.Lng))
	q.Set("destinations", fmt.Sprintf("%f,%f", to.Lat, to.Lng))
	q.Set("mode", "driving")
	q.Set("units", "metric")
	q.Set("key", m.apiKey)

	var resp distanceMatrixResponse
	if err := m.client.DoJSON(ctx, "GET", m.baseURL+"?"+q.Encode(), nil, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Status != "OK" {
		return 0, fmt.Errorf("distance matrix status %s: %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, ErrNoRoute
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("%w: element status %s", ErrNoRoute, el.Status)
	}
	return el.Distance.Value / 1000, nil
}
