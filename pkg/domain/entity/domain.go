package entity

import "time"

// Verdict is the WordPress-likelihood outcome for one domain
type Verdict string

const (
	VerdictYes          Verdict = "yes"
	VerdictYesGenerator Verdict = "yes-via-generator"
	VerdictMaybe        Verdict = "maybe"
	VerdictNo           Verdict = "no"
)

// IsWordPress reports whether the verdict counts as a WordPress site
func (v Verdict) IsWordPress() bool {
	return v == VerdictYes || v == VerdictYesGenerator || v == VerdictMaybe
}

// NoGenerator is reported when no generator meta tag was found
const NoGenerator = "none"

// FetchTask represents one admitted domain
type FetchTask struct {
	Domain       string
	DispatchedAt time.Time
}

// ClassificationResult represents the outcome of inspecting one response
type ClassificationResult struct {
	StatusCode    int     `json:"status_code"`
	Verdict       Verdict `json:"verdict"`
	Generator     string  `json:"generator"`
	Bytes         int64   `json:"bytes"`
	ExpectedBytes int64   `json:"expected_bytes"`
	Truncated     bool    `json:"truncated"`
}

// ErrorRecord represents a failed fetch
type ErrorRecord struct {
	Domain     string `json:"domain"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// HasReason reports whether a reason code could be extracted
func (r ErrorRecord) HasReason() bool {
	return r.Reason != ""
}

// HasStatusCode reports whether the message carried an HTTP status code
func (r ErrorRecord) HasStatusCode() bool {
	return r.StatusCode != 0
}

// Outcome is one line of the per-domain result log
type Outcome struct {
	Domain    string                `json:"domain"`
	Result    *ClassificationResult `json:"result,omitempty"`
	Failure   *ErrorRecord          `json:"error,omitempty"`
	Duration  int64                 `json:"duration_ms"`
	Timestamp time.Time             `json:"timestamp"`
}
