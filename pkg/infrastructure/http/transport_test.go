package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const testURL = "https://example.test/"

func newTestTransport(mock *httpmock.MockTransport, mutate func(*Config)) *Transport {
	config := Config{
		Timeout:   time.Second,
		UserAgent: "crawl-test/1.0",
		MaxBytes:  1024,
		ChunkSize: 4,

		RoundTripper: mock,
	}
	if mutate != nil {
		mutate(&config)
	}
	return NewTransport(config)
}

func htmlResponder(status int, body string, header http.Header) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		for k, v := range header {
			resp.Header[k] = v
		}
		return resp, nil
	}
}

func TestGet(t *testing.T) {
	mock := httpmock.NewMockTransport()
	var gotUA string
	mock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		resp := httpmock.NewStringResponse(200, "<html>hello</html>")
		resp.Header.Set("Link", `<https://example.test/wp-json/>; rel="https://api.w.org/"`)
		return resp, nil
	})

	resp, err := newTestTransport(mock, nil).Get(context.Background(), testURL, nil)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "<html>hello</html>" {
		t.Errorf("Body = %q, want %q", resp.Body, "<html>hello</html>")
	}
	if resp.Truncated {
		t.Errorf("Truncated = true, want false")
	}
	if resp.Header.Get("Link") == "" {
		t.Errorf("Link header missing")
	}
	if gotUA != "crawl-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "crawl-test/1.0")
	}
}

func TestGetTruncates(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", testURL, htmlResponder(200, strings.Repeat("a", 100), nil))

	tr := newTestTransport(mock, func(c *Config) { c.MaxBytes = 10 })
	resp, err := tr.Get(context.Background(), testURL, nil)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if len(resp.Body) != 10 {
		t.Errorf("len(Body) = %d, want 10", len(resp.Body))
	}
	if !resp.Truncated {
		t.Errorf("Truncated = false, want true")
	}
}

func TestGetErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		reject  bool
		wantErr string
	}{
		{"accepted", false, ""},
		{"rejected", true, "HTTP status code 404 (Not Found)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httpmock.NewMockTransport()
			mock.RegisterResponder("GET", testURL, htmlResponder(404, "missing", nil))

			tr := newTestTransport(mock, func(c *Config) { c.RejectErrorStatus = tt.reject })
			resp, err := tr.Get(context.Background(), testURL, nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Get() error = %v, want nil", err)
				}
				if resp.StatusCode != 404 {
					t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("Get() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetTimeout(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	tr := newTestTransport(mock, func(c *Config) { c.Timeout = 50 * time.Millisecond })
	_, err := tr.Get(context.Background(), testURL, nil)
	if err == nil {
		t.Fatalf("Get() error = nil, want timeout")
	}
	if err.Error() != "timed out after 50ms" {
		t.Errorf("Get() error = %q, want %q", err.Error(), "timed out after 50ms")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("errors.Is(err, DeadlineExceeded) = false, want true")
	}
}

func TestFailureClasses(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			wantCode: "(ECONNREFUSED)",
		},
		{
			name:     "reset",
			err:      &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)},
			wantCode: "(ECONNRESET)",
		},
		{
			name:     "no such host",
			err:      &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true},
			wantCode: "(ENOTFOUND)",
		},
		{
			name:     "dns temporary",
			err:      &net.DNSError{Err: "server misbehaving", Name: "flaky.test", IsTemporary: true},
			wantCode: "(EAI_AGAIN)",
		},
		{
			name:     "unexpected eof",
			err:      io.ErrUnexpectedEOF,
			wantCode: "(EOF)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httpmock.NewMockTransport()
			mock.RegisterResponder("GET", testURL, httpmock.NewErrorResponder(tt.err))

			_, err := newTestTransport(mock, nil).Get(context.Background(), testURL, nil)
			if err == nil {
				t.Fatalf("Get() error = nil, want %s", tt.wantCode)
			}
			if !strings.HasSuffix(err.Error(), tt.wantCode) {
				t.Errorf("Get() error = %q, want suffix %q", err.Error(), tt.wantCode)
			}
			if strings.Contains(err.Error(), testURL) {
				t.Errorf("Get() error = %q, should not repeat the URL", err.Error())
			}
		})
	}
}

func TestTooManyRedirects(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusFound, "")
		resp.Header.Set("Location", testURL)
		return resp, nil
	})

	_, err := newTestTransport(mock, nil).Get(context.Background(), testURL, nil)
	if err == nil || !strings.HasSuffix(err.Error(), "(TOO_MANY_REDIRECTS)") {
		t.Errorf("Get() error = %v, want TOO_MANY_REDIRECTS", err)
	}
}

type recorder struct {
	chunks  []string
	stopAt  int
	closed  int
	errored []error
}

func (r *recorder) OnData(chunk []byte) bool {
	r.chunks = append(r.chunks, string(chunk))
	return r.stopAt > 0 && len(r.chunks) >= r.stopAt
}

func (r *recorder) OnClose() { r.closed++ }

func (r *recorder) OnError(err error) { r.errored = append(r.errored, err) }

func TestStream(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", testURL, htmlResponder(200, "0123456789", http.Header{"X-Test": {"1"}}))

	resp, err := newTestTransport(mock, nil).Stream(context.Background(), testURL, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v, want nil", err)
	}
	if resp.StatusCode != 200 || resp.Header.Get("X-Test") != "1" {
		t.Errorf("head = %d %v, want 200 with X-Test", resp.StatusCode, resp.Header)
	}

	r := &recorder{}
	resp.Pipe(r)
	if got := strings.Join(r.chunks, ""); got != "0123456789" {
		t.Errorf("body = %q, want %q", got, "0123456789")
	}
	if r.closed != 1 || len(r.errored) != 0 {
		t.Errorf("terminal events = close %d, error %d, want exactly one close", r.closed, len(r.errored))
	}
}

func TestStreamStopsEarly(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", testURL, htmlResponder(200, strings.Repeat("x", 64), nil))

	resp, err := newTestTransport(mock, nil).Stream(context.Background(), testURL, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v, want nil", err)
	}

	r := &recorder{stopAt: 2}
	resp.Pipe(r)
	if len(r.chunks) != 2 {
		t.Errorf("chunks = %d, want 2", len(r.chunks))
	}
	if r.closed != 1 || len(r.errored) != 0 {
		t.Errorf("terminal events = close %d, error %d, want exactly one close", r.closed, len(r.errored))
	}
}

func TestStreamBodyError(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(200, "")
		resp.Body = &failingBody{data: "abcd", err: os.NewSyscallError("read", syscall.ECONNRESET)}
		return resp, nil
	})

	resp, err := newTestTransport(mock, nil).Stream(context.Background(), testURL, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v, want nil", err)
	}

	r := &recorder{}
	resp.Pipe(r)
	if r.closed != 0 || len(r.errored) != 1 {
		t.Fatalf("terminal events = close %d, error %d, want exactly one error", r.closed, len(r.errored))
	}
	if !strings.HasSuffix(r.errored[0].Error(), "(ECONNRESET)") {
		t.Errorf("OnError(%q), want ECONNRESET", r.errored[0])
	}
}

type failingBody struct {
	data string
	err  error
	sent bool
}

func (b *failingBody) Read(p []byte) (int, error) {
	if b.sent {
		return 0, b.err
	}
	b.sent = true
	return copy(p, b.data), nil
}

func (b *failingBody) Close() error { return nil }
