package observability

import (
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/arkilian/lakeingest/internal/catalog"
)

// RequestStats tracks how often each catalog endpoint is hit and with which
// status codes, so the slowest or most rejected routes stand out after a run.
type RequestStats struct {
	mu        sync.RWMutex
	endpoints map[string]*EndpointStats
}

// EndpointStats holds statistics for one method and path.
type EndpointStats struct {
	Endpoint      string
	Frequency     int64
	Failures      int64
	TotalDuration time.Duration
	LastSeen      time.Time
	Statuses      map[string]int // status code → count (e.g., "200" → 5, "409" → 1)
}

// MeanDuration returns the average request latency.
func (e EndpointStats) MeanDuration() time.Duration {
	if e.Frequency == 0 {
		return 0
	}
	return e.TotalDuration / time.Duration(e.Frequency)
}

// NewRequestStats creates a new request statistics tracker.
func NewRequestStats() *RequestStats {
	return &RequestStats{endpoints: make(map[string]*EndpointStats)}
}

// Record adds one catalog request. It is safe for concurrent use and can be
// passed directly as a catalog.RequestObserver.
func (r *RequestStats) Record(e catalog.RequestEvent) {
	key := endpointKey(e.Method, e.URL)
	status := "error"
	if e.StatusCode != 0 {
		status = strconv.Itoa(e.StatusCode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stats, exists := r.endpoints[key]
	if !exists {
		stats = &EndpointStats{
			Endpoint: key,
			Statuses: make(map[string]int),
		}
		r.endpoints[key] = stats
	}

	stats.Frequency++
	stats.TotalDuration += e.Duration
	stats.LastSeen = time.Now()
	stats.Statuses[status]++
	if e.Err != nil || e.StatusCode >= 400 {
		stats.Failures++
	}
}

// Top returns the n most frequently hit endpoints, as copies.
func (r *RequestStats) Top(n int) []EndpointStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || len(r.endpoints) == 0 {
		return []EndpointStats{}
	}

	stats := make([]EndpointStats, 0, len(r.endpoints))
	for _, s := range r.endpoints {
		statsCopy := *s
		statsCopy.Statuses = make(map[string]int, len(s.Statuses))
		for code, count := range s.Statuses {
			statsCopy.Statuses[code] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Endpoint < stats[j].Endpoint
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Failures returns the total number of failed requests across all endpoints.
func (r *RequestStats) Failures() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, s := range r.endpoints {
		total += s.Failures
	}
	return total
}

// endpointKey drops the query string and host so that one route maps to one key.
func endpointKey(method, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return method + " " + rawURL
	}
	return method + " " + u.Path
}
