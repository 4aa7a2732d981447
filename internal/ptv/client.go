package ptv

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the production PTV Timetable API host.
const DefaultBaseURL = "https://timetableapi.ptv.vic.gov.au"

// Client talks to the PTV Timetable API. Route lists are cached per route
// type for the life of the client; the cache is never invalidated, trading
// route-list freshness for request volume.
type Client struct {
	baseURL    string
	devID      string
	apiKey     string
	maxWorkers int
	httpClient *http.Client

	mu         sync.RWMutex
	routeCache map[int][]int

	metrics Metrics
}

// Metrics receives client-level observability callbacks. Optional.
type Metrics interface {
	RouteFetchErrInc()
}

// NewClient returns a Client for the given credentials. maxWorkers bounds
// the per-cycle fan-out; timeout applies to each individual request.
func NewClient(devID, apiKey string, maxWorkers int, timeout time.Duration) *Client {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Client{
		baseURL:    DefaultBaseURL,
		devID:      devID,
		apiKey:     apiKey,
		maxWorkers: maxWorkers,
		httpClient: &http.Client{Timeout: timeout},
		routeCache: make(map[int][]int),
	}
}

// SetMetrics attaches an observability hook.
func (c *Client) SetMetrics(m Metrics) { c.metrics = m }

// SetBaseURL overrides the API host, mainly for tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimSuffix(u, "/")
}

// SignPath appends the devid parameter, canonicalizes the query string and
// signs path?query with uppercase hex HMAC-SHA1 keyed by the API key.
// The signature is appended as the final query parameter.
func (c *Client) SignPath(endpoint string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("devid", c.devID)

	uri := endpoint + "?" + q.Encode()
	mac := hmac.New(sha1.New, []byte(c.apiKey))
	mac.Write([]byte(uri))
	sig := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	return uri + "&signature=" + sig
}

// request GETs a signed endpoint and decodes the JSON body into out.
// Transport errors, non-200 statuses and malformed bodies all come back as
// errors; nothing at this layer retries.
func (c *Client) request(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + c.SignPath(endpoint, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: HTTP %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// Routes returns the route IDs for a route type. With useCache, a previously
// resolved list is returned without touching the network. An empty upstream
// list is a valid result and is cached too, so transient upstream emptiness
// sticks until process restart; accepted tradeoff.
func (c *Client) Routes(ctx context.Context, routeType int, useCache bool) ([]int, error) {
	if useCache {
		c.mu.RLock()
		cached, ok := c.routeCache[routeType]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("route_types", strconv.Itoa(routeType))
	var resp routesResponse
	if err := c.request(ctx, "/v3/routes", params, &resp); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		if r.RouteID == nil {
			continue
		}
		ids = append(ids, *r.RouteID)
	}

	c.mu.Lock()
	c.routeCache[routeType] = ids
	c.mu.Unlock()
	return ids, nil
}

// RunsForRoute returns the runs on a route that carry a vehicle position.
func (c *Client) RunsForRoute(ctx context.Context, routeID, routeType int) ([]Run, error) {
	endpoint := fmt.Sprintf("/v3/runs/route/%d/route_type/%d", routeID, routeType)
	params := url.Values{}
	params.Set("expand", "All")
	var resp runsResponse
	if err := c.request(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(resp.Runs))
	for _, run := range resp.Runs {
		if run.VehiclePosition != nil {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// FetchVehicles fetches live positions for every route of a route type,
// fanning out one fetch per route across a bounded worker pool. A failed
// route is logged and contributes zero records; it never aborts siblings.
// Results arrive in no particular order.
func (c *Client) FetchVehicles(ctx context.Context, routeType int, useCache bool) ([]VehiclePosition, error) {
	routeIDs, err := c.Routes(ctx, routeType, useCache)
	if err != nil {
		return nil, fmt.Errorf("routes for %s: %w", RouteTypeName(routeType), err)
	}
	if len(routeIDs) == 0 {
		log.Printf("no %s routes found", RouteTypeName(routeType))
		return nil, nil
	}

	jobs := make(chan int)
	results := make(chan []VehiclePosition, len(routeIDs))

	var wg sync.WaitGroup
	workers := c.maxWorkers
	if workers > len(routeIDs) {
		workers = len(routeIDs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for routeID := range jobs {
				runs, err := c.RunsForRoute(ctx, routeID, routeType)
				if err != nil {
					log.Printf("fetch route %d failed: %v", routeID, err)
					if c.metrics != nil {
						c.metrics.RouteFetchErrInc()
					}
					results <- nil
					continue
				}
				var extracted []VehiclePosition
				for _, run := range runs {
					if v, ok := extractVehicle(run, routeType); ok {
						extracted = append(extracted, v)
					}
				}
				results <- extracted
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range routeIDs {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var vehicles []VehiclePosition
	for batch := range results {
		vehicles = append(vehicles, batch...)
	}
	return vehicles, nil
}
