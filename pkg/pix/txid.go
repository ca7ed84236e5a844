package pix

import (
	"strings"

	"github.com/google/uuid"
)

// NewTxID returns a fresh 32 character alphanumeric charge identifier.
func NewTxID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
