package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"fiveradio/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// maxBodyBytes bounds how much of the feed response is read.
const maxBodyBytes = 4 << 20

const defaultTimeout = 10 * time.Second

var errNoStations = errors.New("no stations found in response")

// Catalog loads the station list once per process and caches it. A failed
// load caches the built-in fallback list instead and is not retried.
type Catalog struct {
	endpoint string
	client   *http.Client

	mu       sync.RWMutex
	stations []model.Station
	group    singleflight.Group
}

// New creates a catalog reading from endpoint. A nil client gets a default
// client with a 10s timeout.
func New(endpoint string, client *http.Client) *Catalog {
	if endpoint == "" {
		endpoint = model.DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Catalog{
		endpoint: endpoint,
		client:   client,
	}
}

// Stations returns the cached station list, fetching it on first use. It
// always returns at least the fallback list. The returned slice is shared
// between callers and must not be modified.
func (c *Catalog) Stations(ctx context.Context) []model.Station {
	if cached := c.cached(); len(cached) > 0 {
		return cached
	}

	v, _, _ := c.group.Do("stations", func() (interface{}, error) {
		if cached := c.cached(); len(cached) > 0 {
			return cached, nil
		}

		// The result is cached for every caller, so one caller giving up
		// must not turn it into the fallback list.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout())
		defer cancel()

		stations, err := c.fetch(fetchCtx)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", c.endpoint).Msg("station feed unavailable, using fallback stations")
			stations = model.Fallback()
		} else {
			log.Info().Int("count", len(stations)).Str("endpoint", c.endpoint).Msg("stations loaded")
		}

		c.mu.Lock()
		c.stations = stations
		c.mu.Unlock()
		return stations, nil
	})

	return v.([]model.Station)
}

// Lookup finds a station by ID, loading the catalog if needed.
func (c *Catalog) Lookup(ctx context.Context, id string) (model.Station, bool) {
	return model.FindStationByID(c.Stations(ctx), id)
}

func (c *Catalog) fetchTimeout() time.Duration {
	if c.client.Timeout > 0 {
		return c.client.Timeout
	}
	return defaultTimeout
}

func (c *Catalog) cached() []model.Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stations
}

func (c *Catalog) fetch(ctx context.Context) ([]model.Station, error) {
	log.Debug().Str("endpoint", c.endpoint).Msg("fetching stations")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return Parse(body)
}

// Parse decodes a feed document and normalizes its entries. It accepts a
// bare array or an object holding a "stations" or "data" array.
func Parse(body []byte) ([]model.Station, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	stations := Normalize(entries(doc))
	if len(stations) == 0 {
		return nil, errNoStations
	}
	return stations, nil
}

func entries(doc interface{}) []interface{} {
	switch v := doc.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		if list, ok := v["stations"].([]interface{}); ok {
			return list
		}
		if list, ok := v["data"].([]interface{}); ok {
			return list
		}
	}
	return nil
}
