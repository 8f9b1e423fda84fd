package stock

import (
	"sort"
)

// LowStockThreshold is the exclusive upper bound of "low" stock.
const LowStockThreshold = 10

// DashboardSize is the number of rows in each dashboard list.
const DashboardSize = 5

// StockLevel is the recomputed position of one key.
type StockLevel struct {
	Key           StockKey `json:"key"`
	TotalReceived int64    `json:"total_received"`
	TotalIssued   int64    `json:"total_issued"`
	CurrentStock  int64    `json:"current_stock"`
}

// IsLow reports 0 < CurrentStock < LowStockThreshold. Zero and negative
// stock are not low, they are out.
func (l StockLevel) IsLow() bool {
	return l.CurrentStock > 0 && l.CurrentStock < LowStockThreshold
}

// CurrentStock recomputes every key's totals from scratch. The result does
// not depend on the order of entries.
func CurrentStock(entries []Entry) map[StockKey]StockLevel {
	levels := make(map[StockKey]StockLevel)
	for _, e := range entries {
		l := levels[e.Key]
		l.Key = e.Key
		l.TotalReceived += e.Received
		l.TotalIssued += e.Issued
		l.CurrentStock = l.TotalReceived - l.TotalIssued
		levels[e.Key] = l
	}
	return levels
}

// SortedLevels returns levels in key order.
func SortedLevels(levels map[StockKey]StockLevel) []StockLevel {
	out := make([]StockLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// LowStock returns the low keys in key order.
func LowStock(levels map[StockKey]StockLevel) []StockLevel {
	var out []StockLevel
	for _, l := range SortedLevels(levels) {
		if l.IsLow() {
			out = append(out, l)
		}
	}
	return out
}

// TopReceived returns at most n keys by TotalReceived descending.
func TopReceived(levels map[StockKey]StockLevel, n int) []StockLevel {
	return top(levels, n, func(l StockLevel) int64 { return l.TotalReceived })
}

// TopIssued returns at most n keys by TotalIssued descending.
func TopIssued(levels map[StockKey]StockLevel, n int) []StockLevel {
	return top(levels, n, func(l StockLevel) int64 { return l.TotalIssued })
}

func top(levels map[StockKey]StockLevel, n int, metric func(StockLevel) int64) []StockLevel {
	if n <= 0 {
		return nil
	}

	candidates := make([]StockLevel, 0, len(levels))
	for _, l := range levels {
		candidates = append(candidates, l)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := metric(candidates[i]), metric(candidates[j])
		if a != b {
			return a > b
		}
		return candidates[i].Key.Less(candidates[j].Key)
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// RecentActivity returns the n most recently created entries, newest first,
// regardless of their transaction date.
func RecentActivity(entries []Entry, n int) []Entry {
	if n <= 0 {
		return nil
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Dashboard is the landing-page summary.
type Dashboard struct {
	TotalKeys   int
	TotalStock  int64
	TopReceived []StockLevel
	TopIssued   []StockLevel
	LowStock    []StockLevel
	Recent      []Entry
}

// BuildDashboard summarizes entries with n rows per list.
func BuildDashboard(entries []Entry, n int) Dashboard {
	levels := CurrentStock(entries)

	var total int64
	for _, l := range levels {
		total += l.CurrentStock
	}

	return Dashboard{
		TotalKeys:   len(levels),
		TotalStock:  total,
		TopReceived: TopReceived(levels, n),
		TopIssued:   TopIssued(levels, n),
		LowStock:    LowStock(levels),
		Recent:      RecentActivity(entries, n),
	}
}
