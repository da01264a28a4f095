package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
)

// TimeoutPrefix starts every timeout message produced by the transport
const TimeoutPrefix = "timed out"

var (
	trailingReason = regexp.MustCompile(`\(([^()]+)\)\s*$`)
	statusPhrase   = regexp.MustCompile(`HTTP status code (\d{3})`)
)

// ClassifyFailure turns a transport error message into an error record.
//
// A trailing parenthesized token ("... (ECONNREFUSED)") becomes the reason.
// Timeout messages use the whole message as the reason. Messages that carry
// an "HTTP status code NNN" phrase also record the status code.
func ClassifyFailure(domain, message string) entity.ErrorRecord {
	record := entity.ErrorRecord{Domain: domain, Message: message}

	if m := trailingReason.FindStringSubmatch(message); m != nil {
		record.Reason = strings.TrimSpace(m[1])
	} else if strings.HasPrefix(strings.ToLower(strings.TrimSpace(message)), TimeoutPrefix) {
		record.Reason = strings.TrimSpace(message)
	}

	if m := statusPhrase.FindStringSubmatch(message); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			record.StatusCode = code
		}
	}

	return record
}
