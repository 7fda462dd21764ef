package querylog

import (
	"sort"
	"time"
)

// Performance summarizes execution-time statistics in milliseconds.
type Performance struct {
	TotalMS  float64 `json:"total_time"`
	AvgMS    float64 `json:"avg_time"`
	MedianMS float64 `json:"median_time"`
	P95MS    float64 `json:"p95_time"`
	MinMS    float64 `json:"min_time"`
	MaxMS    float64 `json:"max_time"`
}

// Stats is the full statistics snapshot for a logger.
type Stats struct {
	Count          int            `json:"count"`
	TableAccess    map[string]int `json:"table_access"`
	SlowQueryCount int            `json:"slow_query_count"`
	Performance    Performance    `json:"performance"`
}

// Stats computes count, total/average/median/95th-percentile/min/max
// durations, per-table access counts and the slow-entry count across all
// logged entries.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	tableAccess := make(map[string]int, len(l.tableAccess))
	for k, v := range l.tableAccess {
		tableAccess[k] = v
	}
	l.mu.Unlock()

	stats := Stats{
		Count:       len(entries),
		TableAccess: tableAccess,
	}
	if len(entries) == 0 {
		return stats
	}

	durations := make([]time.Duration, len(entries))
	var total time.Duration
	for i, e := range entries {
		durations[i] = e.Duration
		total += e.Duration
		if e.Duration > l.slowThreshold {
			stats.SlowQueryCount++
		}
	}

	// Stable sort keeps equal durations in original log order.
	sort.SliceStable(durations, func(i, j int) bool { return durations[i] < durations[j] })

	n := len(durations)
	p95Index := int(float64(n) * 0.95)
	if p95Index >= n {
		p95Index = n - 1
	}

	var median time.Duration
	if n%2 == 1 {
		median = durations[n/2]
	} else {
		median = (durations[n/2-1] + durations[n/2]) / 2
	}

	stats.Performance = Performance{
		TotalMS:  durationMS(total),
		AvgMS:    durationMS(total) / float64(n),
		MedianMS: durationMS(median),
		P95MS:    durationMS(durations[p95Index]),
		MinMS:    durationMS(durations[0]),
		MaxMS:    durationMS(durations[n-1]),
	}
	return stats
}
