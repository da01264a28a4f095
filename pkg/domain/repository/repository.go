package repository

import "github.com/dd32/crawl-a-million-miles/pkg/domain/entity"

// DomainSource produces the hostnames to crawl
type DomainSource interface {
	// Next returns the next domain, or ok=false once the sequence is exhausted.
	// Calling Next after exhaustion keeps returning ok=false.
	Next() (domain string, ok bool, err error)
	// Close releases the backing resources
	Close() error
}

// ReportSink receives stats snapshots
type ReportSink interface {
	// Write stores one snapshot; label names the occasion (periodic, final, ...)
	Write(snapshot entity.StatsSnapshot, label string) error
}

// ResultWriter writes per-domain outcomes
type ResultWriter interface {
	// Write writes a single outcome
	Write(outcome *entity.Outcome) error
	// Flush ensures all buffered data is written
	Flush() error
	// Close closes the writer
	Close() error
}
