package cache

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-gateway/internal/weather"
)

// DefaultTTL is how long a report stays fresh after it is written.
const DefaultTTL = 10 * time.Minute

// Entry is a stored report together with its write and expiry times.
type Entry struct {
	Data      weather.Report
	Timestamp time.Time
	ExpiresAt time.Time
}

// MemoryCache is a concurrency-safe in-memory report cache with lazy expiry.
// There is no sweeper and no size bound; expired entries are dropped when read.
type MemoryCache struct {
	mu sync.RWMutex

	// key: rounded coordinate key, see Key
	entries map[string]Entry

	ttl   time.Duration
	clock clockwork.Clock
}

// NewMemoryCache creates an empty cache. A nil clock means the real clock.
func NewMemoryCache(clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		clock:   clock,
	}
}

// Key rounds both coordinates to 2 decimals (~1.1 km), so nearby requests
// share an entry: (40.714, -74.0059) and (40.71, -74.01) both map to "40.71,-74.01".
func Key(lat, lon float64) string {
	return fixed2(lat) + "," + fixed2(lon)
}

var (
	hundred = big.NewFloat(100)
	half    = big.NewFloat(0.5)
)

// fixed2 formats v with two decimals, rounding exact ties away from zero.
// %.2f rounds ties to even, so 1.125 would become "1.12" instead of "1.13".
// Negative zero formats as "0.00"; other negatives keep their sign even when
// they round to zero.
func fixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	// 128 bits hold v*100+0.5 exactly for any coordinate-sized v.
	x := new(big.Float).SetPrec(128).SetFloat64(v)
	x.Mul(x, hundred).Add(x, half)
	n, _ := x.Int(nil)

	q, r := new(big.Int).QuoRem(n, big.NewInt(100), new(big.Int))
	return fmt.Sprintf("%s%s.%02d", sign, q.String(), r.Int64())
}

// Get returns a copy of the report stored under key with CachedAt set to the
// write time. Expired entries are evicted and reported as absent.
func (c *MemoryCache) Get(key string) (weather.Report, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return weather.Report{}, false
	}

	if now.After(e.ExpiresAt) {
		c.mu.Lock()
		// A concurrent Set may have refreshed the entry since the read above.
		if cur, ok := c.entries[key]; ok && now.After(cur.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return weather.Report{}, false
	}

	report := e.Data.Clone()
	cachedAt := e.Timestamp.Unix()
	report.CachedAt = &cachedAt
	return report, true
}

// Set replaces whatever is stored under key.
func (c *MemoryCache) Set(key string, report weather.Report) {
	now := c.clock.Now()

	data := report.Clone()
	data.CachedAt = nil

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Data:      data,
		Timestamp: now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// GetCachedWeather looks up the report for the rounded (lat, lon).
func (c *MemoryCache) GetCachedWeather(lat, lon float64) (weather.Report, bool) {
	return c.Get(Key(lat, lon))
}

// SetCachedWeather stores the report under the rounded (lat, lon).
func (c *MemoryCache) SetCachedWeather(lat, lon float64, report weather.Report) {
	c.Set(Key(lat, lon), report)
}

// Clear drops all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
