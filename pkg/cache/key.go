package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Chart kinds.
const (
	KindConstellation = "constellation"
	KindArea          = "area"
	KindMoonPhase     = "moon-phase"
)

// ChartKey identifies a rendered chart.
type ChartKey struct {
	// Kind is the chart kind (constellation, area, moon-phase)
	Kind string

	// Date is the observation date (YYYY-MM-DD)
	Date string

	// Latitude and Longitude of the observer
	Latitude  float64
	Longitude float64

	// Params are extra view parameters (e.g., {"constellation": "ori"})
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: starwatch:chart:kind:date:lat,lon:param1=val1
//
// Example:
//
//	starwatch:chart:constellation:2024-03-01:51.5072,-0.1276:constellation=ori
func (k ChartKey) String() string {
	parts := []string{"starwatch", "chart"}

	if kind := strings.ToLower(strings.TrimSpace(k.Kind)); kind != "" {
		parts = append(parts, kind)
	}
	if k.Date != "" {
		parts = append(parts, k.Date)
	}

	// 4 decimals is ~11m, well below chart resolution
	parts = append(parts, formatCoord(k.Latitude)+","+formatCoord(k.Longitude))

	// Add params (sorted for determinism)
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.ToLower(k.Params[key])))
		}
	}

	return strings.Join(parts, ":")
}

func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if s == "-0.0000" {
		return "0.0000"
	}
	return s
}
