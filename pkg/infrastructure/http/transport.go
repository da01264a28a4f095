package http

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/service"
)

const (
	maxRedirects     = 10
	defaultChunkSize = 16 * 1024
)

var errTooManyRedirects = errors.New("stopped after 10 redirects")

// Config holds HTTP transport configuration
type Config struct {
	Timeout           time.Duration
	UserAgent         string
	MaxBytes          int64
	VerifyTLS         bool
	RejectErrorStatus bool
	ChunkSize         int

	// RoundTripper replaces the network transport, mostly for tests
	RoundTripper http.RoundTripper
}

// Transport implements service.Transport on top of net/http
type Transport struct {
	client *http.Client
	config Config
}

// NewTransport creates a new HTTP transport
func NewTransport(config Config) *Transport {
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}
	rt := config.RoundTripper
	if rt == nil {
		rt = newRoundTripper(config)
	}
	return &Transport{
		client: &http.Client{
			Transport: rt,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		config: config,
	}
}

func newRoundTripper(config Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.Timeout,
			KeepAlive: -1,
		}).DialContext,
		TLSHandshakeTimeout:   config.Timeout,
		ResponseHeaderTimeout: config.Timeout,
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !config.VerifyTLS,
		},
	}
}

// Get implements service.Transport. The body is read up to MaxBytes.
func (t *Transport) Get(ctx context.Context, url string, header http.Header) (*service.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	resp, err := t.do(ctx, url, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.config.MaxBytes+1))
	if err != nil {
		return nil, t.describe(err)
	}
	truncated := int64(len(body)) > t.config.MaxBytes
	if truncated {
		body = body[:t.config.MaxBytes]
	}

	return &service.Response{
		URL:           url,
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		Body:          body,
		ContentLength: resp.ContentLength,
		Truncated:     truncated,
	}, nil
}

// Stream implements service.Transport. The timeout covers the whole
// exchange including the body delivered through Pipe.
func (t *Transport) Stream(ctx context.Context, url string, header http.Header) (*service.StreamingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)

	resp, err := t.do(ctx, url, header)
	if err != nil {
		cancel()
		return nil, err
	}

	return &service.StreamingResponse{
		URL:           url,
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Pipe: func(handler service.StreamHandler) {
			defer cancel()
			defer resp.Body.Close()
			t.pipe(resp.Body, handler)
		},
	}, nil
}

// pipe delivers the body in chunks. The chunk passed to OnData is only
// valid during the call.
func (t *Transport) pipe(body io.Reader, handler service.StreamHandler) {
	buf := make([]byte, t.config.ChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 && handler.OnData(buf[:n]) {
			handler.OnClose()
			return
		}
		if errors.Is(err, io.EOF) {
			handler.OnClose()
			return
		}
		if err != nil {
			handler.OnError(t.describe(err))
			return
		}
	}
}

func (t *Transport) do(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Message: err.Error(), Err: err}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.describe(err)
	}

	if t.config.RejectErrorStatus && resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, statusError(resp.StatusCode)
	}
	return resp, nil
}
