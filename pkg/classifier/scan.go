package classifier

import (
	"bytes"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// bodyScan is the incremental scan of one response body. It records the
// first occurrence of every signal, so the state reached after feeding a
// body does not depend on how the body was chunked. Each update only looks
// at the bytes added since the previous one.
type bodyScan struct {
	link     bool
	wantHead bool

	// marker search
	scanned  int
	yesEnd   int
	maybeEnd int

	// markup tokenizing resumes at this token boundary
	resume       int
	generator    string
	generatorEnd int
	headEnd      int
}

func newBodyScan(header http.Header, wantHead bool) *bodyScan {
	return &bodyScan{
		link:         linkAnnouncesAPI(header),
		wantHead:     wantHead,
		yesEnd:       -1,
		maybeEnd:     -1,
		generatorEnd: -1,
		headEnd:      -1,
	}
}

// update scans buf, which must extend the buffer of the previous call
func (s *bodyScan) update(buf []byte) {
	if s.yesEnd < 0 {
		s.yesEnd = firstMarkerEnd(buf, s.scanned, yesMarkers)
	}
	if s.maybeEnd < 0 {
		s.maybeEnd = firstMarkerEnd(buf, s.scanned, maybeMarkers)
	}
	s.scanned = len(buf)

	s.scanMarkup(buf)
}

// yesAt returns the offset at which WordPress was first confirmed, or -1.
// A Link header confirms it before the first body byte.
func (s *bodyScan) yesAt() int {
	if s.link {
		return 0
	}
	return s.yesEnd
}

// decisionPoint returns the body offset after which nothing can change the
// outcome, or -1 while more data may still matter.
//
// Once both a WordPress marker and a generator tag were seen, the outcome
// is final. With head close enabled, </head> ends the scan as well. A
// marker alone keeps reading so a generator tag later in the head is still
// reported.
func (s *bodyScan) decisionPoint() int {
	d := -1
	earliest := func(off int) {
		if off >= 0 && (d < 0 || off < d) {
			d = off
		}
	}
	if yes := s.yesAt(); yes >= 0 && s.generatorEnd >= 0 {
		earliest(max(yes, s.generatorEnd))
	}
	if s.wantHead {
		earliest(s.headEnd)
	}
	return d
}

// firstMarkerEnd returns the end offset of the first complete marker in buf,
// or -1. Bytes before from were searched already; only a marker straddling
// that boundary or lying after it can be new.
func firstMarkerEnd(buf []byte, from int, markers [][]byte) int {
	end := -1
	for _, marker := range markers {
		start := max(from-len(marker)+1, 0)
		if start >= len(buf) {
			continue
		}
		idx := bytes.Index(buf[start:], marker)
		if idx < 0 {
			continue
		}
		if e := start + idx + len(marker); end < 0 || e < end {
			end = e
		}
	}
	return end
}

// markupDone reports whether tokenizing can stop
func (s *bodyScan) markupDone() bool {
	if s.wantHead {
		return s.headEnd >= 0
	}
	return s.generatorEnd >= 0
}

// scanMarkup tokenizes buf from the last safe token boundary. The final
// token of a partial buffer may be cut short, so the next call starts over
// at it. Inside raw text elements such as <script> the boundary stays at the
// element start, since the tokenizer needs the start tag to read them.
func (s *bodyScan) scanMarkup(buf []byte) {
	if s.markupDone() {
		return
	}

	z := html.NewTokenizer(bytes.NewReader(buf[s.resume:]))
	offset := s.resume
	raw := false

	for {
		start := offset
		tt := z.Next()
		if tt == html.ErrorToken {
			return
		}
		offset += len(z.Raw())
		if !raw {
			s.resume = start
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if rawTextElements[string(name)] {
				raw = true
				continue
			}
			if string(name) != "meta" || !hasAttr || s.generatorEnd >= 0 {
				continue
			}
			if content, ok := generatorContent(z); ok {
				s.generator = content
				s.generatorEnd = offset
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if raw {
				raw = !rawTextElements[string(name)]
				continue
			}
			if string(name) == "head" && s.headEnd < 0 {
				s.headEnd = offset
			}
		}

		if s.markupDone() {
			return
		}
	}
}

// Elements whose content the tokenizer reads as raw text
var rawTextElements = map[string]bool{
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"noscript":  true,
	"plaintext": true,
	"script":    true,
	"style":     true,
	"textarea":  true,
	"title":     true,
	"xmp":       true,
}

func generatorContent(z *html.Tokenizer) (string, bool) {
	var isGenerator bool
	var content string
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "name":
			isGenerator = strings.EqualFold(strings.TrimSpace(string(val)), "generator")
		case "content":
			content = strings.TrimSpace(string(val))
		}
		if !more {
			break
		}
	}
	return content, isGenerator && content != ""
}

func linkAnnouncesAPI(header http.Header) bool {
	for _, value := range header.Values("Link") {
		for _, marker := range linkMarkers {
			if strings.Contains(value, marker) {
				return true
			}
		}
	}
	return false
}
