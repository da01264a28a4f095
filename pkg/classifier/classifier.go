package classifier

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// Markers that make a page a WordPress "yes"
	yesMarkers = [][]byte{
		[]byte("api.w.org"),
		[]byte("/wp-json"),
		[]byte("?rest_route="),
		[]byte("/wp-"),
		[]byte("WordPress/"),
		[]byte("xmlrpc.php"),
	}

	// Weaker evidence: a REST route parameter outside the discovery form, or
	// assets served from the wp.com CDN
	maybeMarkers = [][]byte{
		[]byte("rest_route="),
		[]byte(".wp.com/"),
	}

	// REST API discovery tokens looked for in Link headers
	linkMarkers = []string{"api.w.org", "/wp-json", "?rest_route="}

	versionSuffix = regexp.MustCompile(`\s+v?\d[\w.\-]*$`)
)

// generatorCacheSize bounds the raw generator strings whose normalized form
// is remembered. A top-sites crawl sees a few thousand distinct values.
const generatorCacheSize = 4096

// Config holds classifier configuration
type Config struct {
	// MaxBytes is the buffer size at which classification is forced
	MaxBytes int
	// CloseOnHead finalizes as soon as </head> was seen
	CloseOnHead bool
}

// Classifier decides whether a response comes from a WordPress site
type Classifier struct {
	maxBytes    int
	closeOnHead bool
	generators  *lru.Cache[string, string]
}

// New creates classifier
func New(config Config) *Classifier {
	if config.MaxBytes <= 0 {
		config.MaxBytes = 512 * 1024
	}
	// only fails for a non-positive size
	generators, _ := lru.New[string, string](generatorCacheSize)
	return &Classifier{
		maxBytes:    config.MaxBytes,
		closeOnHead: config.CloseOnHead,
		generators:  generators,
	}
}

// MaxBytes returns the size cap
func (c *Classifier) MaxBytes() int {
	return c.maxBytes
}

// Classify classifies a complete body (buffered mode). The heuristic runs
// over the whole body up to the size cap. It always returns a result.
func (c *Classifier) Classify(statusCode int, header http.Header, body []byte, contentLength int64, truncated bool) entity.ClassificationResult {
	window := body
	if len(window) > c.maxBytes {
		window = window[:c.maxBytes]
	}
	scan := newBodyScan(header, false)
	scan.update(window)
	verdict, generator := c.outcome(scan, len(window))

	observed := int64(len(body))
	return entity.ClassificationResult{
		StatusCode:    statusCode,
		Verdict:       verdict,
		Generator:     generator,
		Bytes:         observed,
		ExpectedBytes: expectedBytes(observed, contentLength),
		Truncated:     truncated || len(body) >= c.maxBytes && contentLength != observed,
	}
}

// Evaluate runs the streaming heuristic over the bytes received so far.
// Unless force is set, it reports decided=false when more data could still
// change the outcome. Streams use the incremental form kept by StreamState.
func (c *Classifier) Evaluate(header http.Header, buf []byte, force bool) (verdict entity.Verdict, generator string, decided bool) {
	return c.evaluate(newBodyScan(header, c.closeOnHead), buf, force)
}

// evaluate advances scan over buf and decides on the prefix of buf that ends
// at the decision point. The decision point of a prefix is the decision
// point of the whole body, so any chunking yields the same outcome.
func (c *Classifier) evaluate(scan *bodyScan, buf []byte, force bool) (verdict entity.Verdict, generator string, decided bool) {
	window := buf
	capped := false
	if len(window) >= c.maxBytes {
		window = window[:c.maxBytes]
		capped = true
	}
	scan.update(window)

	decision := scan.decisionPoint()
	if decision < 0 {
		if !capped && !force {
			return "", "", false
		}
		decision = len(window)
	}

	verdict, generator = c.outcome(scan, decision)
	return verdict, generator, true
}

// outcome applies the heuristic to the signals found in the first limit
// bytes of the body
func (c *Classifier) outcome(scan *bodyScan, limit int) (entity.Verdict, string) {
	verdict := entity.VerdictNo
	switch {
	case within(scan.yesAt(), limit):
		verdict = entity.VerdictYes
	case within(scan.maybeEnd, limit):
		verdict = entity.VerdictMaybe
	}

	if !within(scan.generatorEnd, limit) {
		return verdict, synthesizedGenerator(verdict)
	}
	generator := c.normalizeGenerator(scan.generator)
	if verdict == entity.VerdictNo && strings.Contains(generator, "wordpress") {
		verdict = entity.VerdictYesGenerator
	}
	return verdict, generator
}

func within(offset, limit int) bool {
	return offset >= 0 && offset <= limit
}

// NormalizeGenerator strips a trailing version number and lowercases
func NormalizeGenerator(content string) string {
	name := strings.TrimSpace(content)
	for {
		stripped := versionSuffix.ReplaceAllString(name, "")
		if stripped == name {
			break
		}
		name = strings.TrimSpace(stripped)
	}
	return strings.ToLower(name)
}

func (c *Classifier) normalizeGenerator(content string) string {
	if name, ok := c.generators.Get(content); ok {
		return name
	}
	name := NormalizeGenerator(content)
	c.generators.Add(content, name)
	return name
}

func synthesizedGenerator(verdict entity.Verdict) string {
	if verdict.IsWordPress() {
		return fmt.Sprintf("%s (but WordPress: %s)", entity.NoGenerator, verdict)
	}
	return entity.NoGenerator
}

func expectedBytes(observed, contentLength int64) int64 {
	if contentLength > observed {
		return contentLength
	}
	return observed
}
