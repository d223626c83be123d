package features

import (
	"strings"

	"go-loginguard/pkg/models"
)

// ParseDeviceOS returns the first parenthesised segment of a user agent,
// e.g. "Windows NT 10.0" from "Mozilla/5.0 (Windows NT 10.0)". An unclosed
// segment runs to the end of the string.
func ParseDeviceOS(ua string) (string, bool) {
	_, rest, found := strings.Cut(ua, "(")
	if !found {
		return "", false
	}
	os, _, _ := strings.Cut(rest, ")")
	if os == "" {
		return "", false
	}
	return os, true
}

// ParseBrowser returns the first space-delimited token of a user agent.
func ParseBrowser(ua string) (string, bool) {
	token, _, _ := strings.Cut(ua, " ")
	if token == "" {
		return "", false
	}
	return token, true
}

// ParseUserAgent derives the device OS and browser tokens of a login. A
// user agent without a parenthesised segment is unparseable, so both tokens
// are UNKNOWN even when a browser token is present.
func ParseUserAgent(ua string) (deviceOS, browser string) {
	if !strings.Contains(ua, "(") {
		return models.Unknown, models.Unknown
	}
	return orUnknown(ParseDeviceOS(ua)), orUnknown(ParseBrowser(ua))
}

func orUnknown(value string, ok bool) string {
	if !ok {
		return models.Unknown
	}
	return value
}
