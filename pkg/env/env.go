// Package env reads the few settings needed before config.Load runs.
package env

import (
	"os"
	"strconv"
	"strings"
)

// String returns the trimmed value of key, or fallback when it is blank.
func String(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if v = strings.TrimSpace(v); !ok || v == "" {
		return fallback
	}
	return v
}

// Int parses key as a decimal integer; unset or malformed values give fallback.
func Int(key string, fallback int) int {
	n, err := strconv.Atoi(String(key, ""))
	if err != nil {
		return fallback
	}
	return n
}
