package storage

import (
	"errors"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/repository"
)

// MultiWriter fans every outcome out to several result writers
type MultiWriter []repository.ResultWriter

// NewMultiWriter returns nil without writers, the single writer when there is
// one, and a MultiWriter otherwise
func NewMultiWriter(writers ...repository.ResultWriter) repository.ResultWriter {
	switch len(writers) {
	case 0:
		return nil
	case 1:
		return writers[0]
	}
	return MultiWriter(writers)
}

// Write writes the outcome to every writer
func (m MultiWriter) Write(outcome *entity.Outcome) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Write(outcome))
	}
	return errors.Join(errs...)
}

// Flush flushes every writer
func (m MultiWriter) Flush() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Flush())
	}
	return errors.Join(errs...)
}

// Close closes every writer
func (m MultiWriter) Close() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}
