package classifier

import (
	"net/http"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
)

// StreamState accumulates the body of one streaming response and finalizes
// its classification at the earliest decision point. It implements
// service.StreamHandler and is not safe for concurrent use.
type StreamState struct {
	classifier    *Classifier
	statusCode    int
	contentLength int64

	buf       []byte
	scan      *bodyScan
	finalized bool
	result    *entity.ClassificationResult
	err       error
}

// NewStream creates the per-response state for a streaming classification
func (c *Classifier) NewStream(statusCode int, header http.Header, contentLength int64) *StreamState {
	return &StreamState{
		classifier:    c,
		statusCode:    statusCode,
		contentLength: contentLength,
		scan:          newBodyScan(header, c.closeOnHead),
	}
}

// OnData appends a chunk and asks the transport to stop once the outcome is
// known
func (s *StreamState) OnData(chunk []byte) bool {
	if s.finalized {
		return true
	}
	s.buf = append(s.buf, chunk...)

	verdict, generator, decided := s.classifier.evaluate(s.scan, s.buf, false)
	if !decided {
		return false
	}
	truncated := s.contentLength < 0 || int64(len(s.buf)) < s.contentLength
	s.finalize(verdict, generator, truncated)
	return true
}

// OnClose finalizes with whatever has been received
func (s *StreamState) OnClose() {
	if s.finalized {
		return
	}
	verdict, generator, _ := s.classifier.evaluate(s.scan, s.buf, true)
	s.finalize(verdict, generator, false)
}

// OnError records a body read failure. A classification that was already
// finalized is kept.
func (s *StreamState) OnError(err error) {
	if s.finalized {
		return
	}
	s.finalized = true
	s.err = err
}

// Result returns the classification, or nil if the stream failed
func (s *StreamState) Result() *entity.ClassificationResult {
	return s.result
}

// Err returns the body error, if any
func (s *StreamState) Err() error {
	return s.err
}

// Bytes returns the number of body bytes received
func (s *StreamState) Bytes() int64 {
	return int64(len(s.buf))
}

func (s *StreamState) finalize(verdict entity.Verdict, generator string, truncated bool) {
	observed := int64(len(s.buf))
	s.finalized = true
	s.result = &entity.ClassificationResult{
		StatusCode:    s.statusCode,
		Verdict:       verdict,
		Generator:     generator,
		Bytes:         observed,
		ExpectedBytes: expectedBytes(observed, s.contentLength),
		Truncated:     truncated,
	}
}
