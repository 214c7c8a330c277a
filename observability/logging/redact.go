package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces credentials in log output.
const RedactedValue = "[REDACTED]"

// Keys that never carry secrets and are emitted as-is.
var plainKeys = map[string]struct{}{
	"service":  {},
	"env":      {},
	"error":    {},
	"reason":   {},
	"vault":    {},
	"source":   {},
	"vendor":   {},
	"endpoint": {},
}

func isPlain(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute whose value is redacted unless the key is a
// known plain key or the value is empty.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || isPlain(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
