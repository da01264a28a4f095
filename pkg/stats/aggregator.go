package stats

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
)

// Named counters
const (
	Processed = "processed"
	Success   = "success"
	Error     = "error"
)

// Keyed counters
const (
	Code        = "code"
	ErrorReason = "error-reason"
	WordPress   = "wp"
	Generator   = "generator"
)

// NoReason is the error-reason key of failures without a reason code
const NoReason = "none"

// Aggregator holds process-wide counters. All methods are safe for
// concurrent use. Increments commute, so the final state does not depend on
// the order in which fetches complete.
type Aggregator struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]map[string]int64
	total      int64
	downloaded int64

	startedAt time.Time
	now       func() time.Time
	metrics   *Metrics
}

// NewAggregator creates an aggregator. metrics may be nil.
func NewAggregator(metrics *Metrics) *Aggregator {
	return &Aggregator{
		counters:   make(map[string]int64),
		histograms: make(map[string]map[string]int64),
		startedAt:  time.Now(),
		now:        time.Now,
		metrics:    metrics,
	}
}

// Increment increments a named counter
func (a *Aggregator) Increment(name string) {
	a.mu.Lock()
	a.counters[name]++
	a.mu.Unlock()
	a.metrics.IncEvent(name)
}

// IncrementKey increments the sub-key of a keyed counter, creating it on
// first use
func (a *Aggregator) IncrementKey(name, key string) {
	a.mu.Lock()
	h, ok := a.histograms[name]
	if !ok {
		h = make(map[string]int64)
		a.histograms[name] = h
	}
	h[key]++
	a.mu.Unlock()
	a.metrics.IncKey(name, key)
}

// AddBytes accumulates the expected and downloaded byte counts of one
// response
func (a *Aggregator) AddBytes(total, downloaded int64) {
	a.mu.Lock()
	a.total += total
	a.downloaded += downloaded
	a.mu.Unlock()
	a.metrics.AddBytes(total, downloaded)
}

// RecordResult folds a successful classification into the counters
func (a *Aggregator) RecordResult(result *entity.ClassificationResult) {
	a.Increment(Processed)
	a.Increment(Success)
	a.IncrementKey(Code, strconv.Itoa(result.StatusCode))
	a.IncrementKey(WordPress, string(result.Verdict))
	a.IncrementKey(Generator, result.Generator)
	a.AddBytes(result.ExpectedBytes, result.Bytes)
}

// RecordFailure folds a classified failure into the counters
func (a *Aggregator) RecordFailure(record *entity.ErrorRecord) {
	a.Increment(Processed)
	a.Increment(Error)
	reason := record.Reason
	if !record.HasReason() {
		reason = NoReason
	}
	a.IncrementKey(ErrorReason, reason)
	if record.HasStatusCode() {
		a.IncrementKey(Code, strconv.Itoa(record.StatusCode))
	}
}

// Get returns the value of a named counter
func (a *Aggregator) Get(name string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[name]
}

// Snapshot copies the counters and sorts the histograms
func (a *Aggregator) Snapshot() entity.StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	snapshot := entity.StatsSnapshot{
		TakenAt:      now,
		Elapsed:      now.Sub(a.startedAt),
		Processed:    a.counters[Processed],
		Success:      a.counters[Success],
		Error:        a.counters[Error],
		Codes:        sortCodes(a.histograms[Code]),
		ErrorReasons: sortByCount(a.histograms[ErrorReason]),
		Verdicts:     sortByCount(a.histograms[WordPress]),
		Generators:   sortByCount(a.histograms[Generator]),
		Bytes:        byteStats(a.total, a.downloaded),
	}
	return snapshot
}

// sortCodes orders status codes ascending numerically
func sortCodes(h map[string]int64) []entity.Count {
	counts := toCounts(h)
	sort.Slice(counts, func(i, j int) bool {
		ci, erri := strconv.Atoi(counts[i].Key)
		cj, errj := strconv.Atoi(counts[j].Key)
		if erri != nil || errj != nil {
			return counts[i].Key < counts[j].Key
		}
		return ci < cj
	})
	return counts
}

// sortByCount orders buckets by descending count, ties by key
func sortByCount(h map[string]int64) []entity.Count {
	counts := toCounts(h)
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})
	return counts
}

func toCounts(h map[string]int64) []entity.Count {
	counts := make([]entity.Count, 0, len(h))
	for k, v := range h {
		counts = append(counts, entity.Count{Key: k, Count: v})
	}
	return counts
}

func byteStats(total, downloaded int64) entity.ByteStats {
	stats := entity.ByteStats{Total: total, Downloaded: downloaded}
	if total > 0 {
		stats.Percent = float64(downloaded) / float64(total) * 100
	}
	return stats
}
