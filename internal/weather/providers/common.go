package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-feed/internal/weather"
)

var errNoHTTPClient = errors.New("http client not configured")

// newCircuit returns a breaker that trips after five consecutive failures
// and half-opens after two minutes.
func newCircuit(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// circuits keeps one breaker per location, so failures for one city never
// short-circuit fetches for another.
type circuits struct {
	provider string

	mu      sync.Mutex
	byPoint map[string]*gobreaker.CircuitBreaker
}

func newCircuits(provider string) *circuits {
	return &circuits{
		provider: provider,
		byPoint:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

// forPoint returns the breaker for (lat, lon), creating it on first use.
func (c *circuits) forPoint(lat, lon float64) *gobreaker.CircuitBreaker {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.byPoint[key]
	if !ok {
		cb = newCircuit(c.provider + "@" + key)
		c.byPoint[key] = cb
	}
	return cb
}

// fetchJSON performs a single GET through the circuit breaker and decodes
// the body into out. Any transport failure, non-2xx status or open circuit
// is reported as weather.ErrSourceUnavailable. There are no retries.
func fetchJSON(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, url string, out any) error {
	if client == nil {
		return fmt.Errorf("%w: %v", weather.ErrSourceUnavailable, errNoHTTPClient)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit %s open", weather.ErrSourceUnavailable, cb.Name())
		}
		return fmt.Errorf("%w: %v", weather.ErrSourceUnavailable, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return fmt.Errorf("unexpected result type from circuit breaker")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", weather.ErrSourceUnavailable, err)
	}
	return nil
}
