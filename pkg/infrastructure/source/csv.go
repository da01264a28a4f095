package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dd32/crawl-a-million-miles/pkg/domain"
)

// headerColumn is the column title of the ranked list's header row
const headerColumn = "Domain"

// Options holds CSV source configuration
type Options struct {
	// MaxDomains stops the sequence after that many domains; 0 means all
	MaxDomains int
	// Dedup drops hostnames that were already yielded
	Dedup             bool
	BloomFilterSize   uint
	FalsePositiveRate float64
}

// CSVSource yields the hostname column of a ranked "rank,domain" list.
// It implements repository.DomainSource and must be read by a single
// goroutine.
type CSVSource struct {
	file       *os.File
	reader     *csv.Reader
	opts       Options
	seen       *seenFilter
	validator  *domain.Validator
	normalizer *domain.Normalizer

	yielded   int
	exhausted bool
}

// Open opens the domain list at path
func Open(path string, opts Options) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open domain list: %w", err)
	}

	s := &CSVSource{
		file:       file,
		opts:       opts,
		validator:  domain.NewValidator(),
		normalizer: domain.NewNormalizer(),
	}
	if opts.Dedup {
		s.seen = newSeenFilter(opts.BloomFilterSize, opts.FalsePositiveRate)
	}
	s.reader = newReader(file)
	return s, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	reader.ReuseRecord = true
	return reader
}

// Next implements repository.DomainSource
func (s *CSVSource) Next() (string, bool, error) {
	if s.exhausted {
		return "", false, nil
	}
	if s.opts.MaxDomains > 0 && s.yielded >= s.opts.MaxDomains {
		s.exhausted = true
		return "", false, nil
	}

	for {
		record, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.exhausted = true
			return "", false, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			s.exhausted = true
			return "", false, fmt.Errorf("read domain list: %w", err)
		}

		host := hostColumn(record)
		if strings.EqualFold(host, headerColumn) || !s.validator.IsValid(host) {
			continue
		}
		host = s.normalizer.Normalize(host)
		if s.seen != nil && s.seen.seen(host) {
			continue
		}

		s.yielded++
		return host, true, nil
	}
}

// hostColumn picks the second column of a rank,domain row, or the only
// column of a plain list
func hostColumn(record []string) string {
	switch len(record) {
	case 0:
		return ""
	case 1:
		return strings.TrimSpace(record[0])
	default:
		return strings.TrimSpace(record[1])
	}
}

// Rewind restarts the sequence from the first row
func (s *CSVSource) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind domain list: %w", err)
	}
	s.reader = newReader(s.file)
	s.yielded = 0
	s.exhausted = false
	if s.seen != nil {
		s.seen.reset()
	}
	return nil
}

// Yielded returns how many domains were produced since the last rewind
func (s *CSVSource) Yielded() int {
	return s.yielded
}

// Close implements repository.DomainSource
func (s *CSVSource) Close() error {
	s.exhausted = true
	return s.file.Close()
}
