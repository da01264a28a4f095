package entity

import "time"

// Count is one bucket of a histogram
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ByteStats summarizes how much of the expected payload was downloaded
type ByteStats struct {
	Total      int64   `json:"total"`
	Downloaded int64   `json:"downloaded"`
	Percent    float64 `json:"percent"`
}

// StatsSnapshot is a point-in-time copy of the aggregated counters.
// Fields are not updated atomically together; only at quiescence does
// Success+Error equal Processed.
type StatsSnapshot struct {
	TakenAt      time.Time     `json:"taken_at"`
	Elapsed      time.Duration `json:"elapsed"`
	Processed    int64         `json:"processed"`
	Success      int64         `json:"success"`
	Error        int64         `json:"error"`
	Codes        []Count       `json:"code"`
	ErrorReasons []Count       `json:"error_reason"`
	Verdicts     []Count       `json:"wp"`
	Generators   []Count       `json:"generator"`
	Bytes        ByteStats     `json:"bytes"`
}

// Sum adds up the bucket counts of a histogram
func Sum(counts []Count) int64 {
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	return total
}

// Lookup returns the count stored under key
func Lookup(counts []Count, key string) int64 {
	for _, c := range counts {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}

// ShutdownState is the state of the interrupt protocol
type ShutdownState int32

const (
	Running ShutdownState = iota
	Draining
	Killing
)

func (s ShutdownState) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Killing:
		return "killing"
	default:
		return "unknown"
	}
}
