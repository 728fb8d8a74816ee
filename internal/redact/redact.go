// Package redact masks personal data in user questions before they reach logs.
package redact

import "regexp"

// Kind is a category of personal data
type Kind string

const (
	KindEmail     Kind = "email"
	KindPhone     Kind = "phone"
	KindIPAddress Kind = "ip_address"
)

type rule struct {
	kind    Kind
	pattern *regexp.Regexp
}

// Rules run in order; earlier replacements are not re-matched by later ones.
var rules = []rule{
	{KindEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{KindIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
	{KindPhone, regexp.MustCompile(`(?:\+?\d{1,3}[ .\-]?)?\(?\b\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`)},
}

// Placeholder returns the token that replaces a match of kind.
func Placeholder(kind Kind) string {
	switch kind {
	case KindEmail:
		return "[EMAIL_REDACTED]"
	case KindPhone:
		return "[PHONE_REDACTED]"
	case KindIPAddress:
		return "[IP_REDACTED]"
	default:
		return "[REDACTED]"
	}
}

// Text replaces every email address, IPv4 address and phone number in s.
func Text(s string) string {
	for _, r := range rules {
		s = r.pattern.ReplaceAllLiteralString(s, Placeholder(r.kind))
	}
	return s
}

// Detect lists the kinds of personal data present in s.
func Detect(s string) []Kind {
	var kinds []Kind
	for _, r := range rules {
		if r.pattern.MatchString(s) {
			kinds = append(kinds, r.kind)
			s = r.pattern.ReplaceAllLiteralString(s, Placeholder(r.kind))
		}
	}
	return kinds
}
