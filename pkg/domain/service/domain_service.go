package service

import (
	"context"
	"net/http"
)

// Transport performs HTTP GET requests
type Transport interface {
	// Get fetches a URL and returns the complete (possibly size-limited) body
	Get(ctx context.Context, url string, header http.Header) (*Response, error)
	// Stream fetches a URL and returns once the response head is available;
	// the body is delivered through StreamingResponse.Pipe
	Stream(ctx context.Context, url string, header http.Header) (*StreamingResponse, error)
}

// Response represents a buffered HTTP response
type Response struct {
	URL           string
	StatusCode    int
	Header        http.Header
	Body          []byte
	ContentLength int64
	Truncated     bool
}

// StreamHandler receives the body events of one streaming response.
// OnData may be called many times; exactly one of OnClose or OnError
// follows.
type StreamHandler interface {
	// OnData receives the next chunk. Returning true asks the transport to
	// stop reading and release the connection.
	OnData(chunk []byte) (stop bool)
	// OnClose is called when the body ended or the stream was closed early
	OnClose()
	// OnError is called when reading the body failed
	OnError(err error)
}

// StreamingResponse represents a response whose body has not been read yet
type StreamingResponse struct {
	URL           string
	StatusCode    int
	Header        http.Header
	ContentLength int64

	// Pipe reads the body and delivers it to the handler. It returns after
	// the terminal event was delivered.
	Pipe func(handler StreamHandler)
}
