package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/repository"
)

// ResultWriter implements repository.ResultWriter as a JSON Lines file
type ResultWriter struct {
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewResultWriter creates a new result writer
func NewResultWriter(filename string) (repository.ResultWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create result log: %w", err)
	}

	buf := bufio.NewWriter(file)
	return &ResultWriter{
		file:    file,
		buf:     buf,
		encoder: json.NewEncoder(buf),
	}, nil
}

// Write writes a single outcome
func (w *ResultWriter) Write(outcome *entity.Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(outcome)
}

// Flush ensures all buffered data is written
func (w *ResultWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close closes the writer
func (w *ResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
