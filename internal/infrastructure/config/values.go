package config

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Values is a read-mostly key tree addressed with dotted keys such as
// "mount.num_park_attempts". Lookups never fail: a missing key or a value of
// the wrong shape yields the caller's default.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Values struct {
	mu   sync.RWMutex
	root map[string]any
}

// NewValues wraps a decoded YAML document. A nil map is treated as empty.
func NewValues(root map[string]any) *Values {
	if root == nil {
		root = map[string]any{}
	}
	return &Values{root: root}
}

// Get returns the value stored at key, or def when the key is absent.
func (v *Values) Get(key string, def any) any {
	if v == nil {
		return def
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	var node any = v.root
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return def
		}
		node, ok = m[part]
		if !ok {
			return def
		}
	}
	if node == nil {
		return def
	}
	return node
}

// Set stores value at key, creating intermediate maps as needed.
// Used for runtime overrides (e.g. forcing a reschedule).
func (v *Values) Set(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	parts := strings.Split(key, ".")
	node := v.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
}

// Bool returns the boolean at key.
func (v *Values) Bool(key string, def bool) bool {
	switch val := v.Get(key, def).(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

// Int returns the integer at key. Floats are truncated.
func (v *Values) Int(key string, def int) int {
	switch val := v.Get(key, def).(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

// Float returns the number at key.
func (v *Values) Float(key string, def float64) float64 {
	switch val := v.Get(key, def).(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return def
}

// String returns the string at key.
func (v *Values) String(key string, def string) string {
	if s, ok := v.Get(key, def).(string); ok {
		return s
	}
	return def
}

// Duration returns the duration at key. Bare numbers are seconds;
// strings are parsed with time.ParseDuration ("90s", "2m").
func (v *Values) Duration(key string, def time.Duration) time.Duration {
	switch val := v.Get(key, def).(type) {
	case time.Duration:
		return val
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}
