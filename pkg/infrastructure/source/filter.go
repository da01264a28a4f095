package source

import "github.com/bits-and-blooms/bloom/v3"

// seenFilter remembers the hostnames already yielded
type seenFilter struct {
	filter *bloom.BloomFilter
}

func newSeenFilter(size uint, fpRate float64) *seenFilter {
	return &seenFilter{filter: bloom.NewWithEstimates(size, fpRate)}
}

// seen reports whether domain was yielded before and records it
func (f *seenFilter) seen(domain string) bool {
	return f.filter.TestAndAddString(domain)
}

func (f *seenFilter) reset() {
	f.filter.ClearAll()
}
