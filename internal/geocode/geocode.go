// Package geocode resolves coordinates to human-readable road names via
// Nominatim reverse geocoding, with an in-process memo and an optional
// Redis layer in front of the HTTP call. Lookups never fail: when the
// upstream is unreachable the caller gets a synthetic name instead.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roadrisk/internal/metrics"
)

const (
	nominatimURL   = "https://nominatim.openstreetmap.org/reverse"
	requestTimeout = 3 * time.Second
	redisTTL       = 7 * 24 * time.Hour
	userAgent      = "roadrisk/1.0"
)

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Highway       string `json:"highway"`
		Street        string `json:"street"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		CityDistrict  string `json:"city_district"`
		County        string `json:"county"`
	} `json:"address"`
}

// Client reverse-geocodes coordinates. Safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	redis   *redis.Client // optional second-level cache, may be nil
	log     zerolog.Logger

	mu   sync.Mutex
	memo map[string]string
}

// NewClient builds a geocoding client. rdb may be nil to run with the
// in-process memo only.
func NewClient(rdb *redis.Client, log zerolog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: nominatimURL,
		redis:   rdb,
		log:     log.With().Str("component", "geocode").Logger(),
		memo:    map[string]string{},
	}
}

// WithBaseURL points the client at a different reverse-geocoding
// endpoint. Intended for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// DisplayName resolves a coordinate to a short road-level name. The
// result is memoized per coordinate (4 decimal places, about 11m), so a
// ranking run geocodes each distinct spot once. Never returns an error:
// failures produce a synthetic name which is cached like any other.
func (c *Client) DisplayName(ctx context.Context, lat, lon float64, accidentCount int) string {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	c.mu.Lock()
	if name, ok := c.memo[key]; ok {
		c.mu.Unlock()
		metrics.GeocodeCacheHitsTotal.Inc()
		return name
	}
	c.mu.Unlock()

	if c.redis != nil {
		if name, err := c.redis.Get(ctx, "geo:"+key).Result(); err == nil && name != "" {
			metrics.GeocodeCacheHitsTotal.Inc()
			c.store(ctx, key, name, false)
			return name
		}
	}

	metrics.GeocodeRequestsTotal.Inc()
	name, err := c.lookup(ctx, lat, lon)
	if err != nil {
		metrics.GeocodeFailuresTotal.Inc()
		c.log.Debug().Err(err).Str("coord", key).Msg("reverse geocode failed, using synthetic name")
		name = SyntheticName(accidentCount)
	}
	c.store(ctx, key, name, err == nil)
	return name
}

func (c *Client) store(ctx context.Context, key, name string, writeRedis bool) {
	c.mu.Lock()
	c.memo[key] = name
	c.mu.Unlock()
	if writeRedis && c.redis != nil {
		c.redis.Set(ctx, "geo:"+key, name, redisTTL)
	}
}

func (c *Client) lookup(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("format", "json")
	q.Set("zoom", "18")
	q.Set("accept-language", "th")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim returned %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	name := roadName(body)
	if name == "" {
		return "", fmt.Errorf("no usable address in response")
	}
	return name, nil
}

// roadName assembles a short road-focused name from the address parts,
// preferring the most specific field in each group.
func roadName(r nominatimResponse) string {
	var parts []string
	if road := first(r.Address.Road, r.Address.Highway, r.Address.Street); road != "" {
		parts = append(parts, road)
	}
	if area := first(r.Address.Suburb, r.Address.Neighbourhood); area != "" {
		parts = append(parts, area)
	}
	if district := first(r.Address.CityDistrict, r.Address.County); district != "" {
		parts = append(parts, district)
	}
	if len(parts) == 0 {
		if r.DisplayName == "" {
			return ""
		}
		// Trim the display name to its leading segments.
		segs := strings.SplitN(r.DisplayName, ",", 3)
		if len(segs) > 2 {
			segs = segs[:2]
		}
		return strings.TrimSpace(strings.Join(segs, ","))
	}
	return strings.Join(parts, ", ")
}

func first(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// SyntheticName is the fallback label for a cluster that was not
// geocoded.
func SyntheticName(accidentCount int) string {
	return fmt.Sprintf("Risk zone (%d accidents)", accidentCount)
}
