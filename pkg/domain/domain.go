package domain

import "strings"

// Validator validates hostnames read from a domain list
type Validator struct{}

// NewValidator creates validator
func NewValidator() *Validator {
	return &Validator{}
}

// IsValid checks hostname validity. Anything that would not form a URL of
// the shape scheme://host/ is rejected.
func (v *Validator) IsValid(domain string) bool {
	domain = strings.TrimSpace(domain)
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}
	return !strings.ContainsAny(domain, " \t/?#@")
}

// Normalizer normalizes hostnames
type Normalizer struct{}

// NewNormalizer creates normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize lowercases and drops the trailing root dot
func (n *Normalizer) Normalize(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
