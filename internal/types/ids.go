// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

// UserKey identifies one chat user across transports, e.g. "line:U123".
type UserKey string
type RunID string
type UsageID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewUsageID() UsageID {
	return UsageID(uuid.New().String())
}

// NewUserKey joins a transport name and its native user identifier.
func NewUserKey(parts ...string) UserKey {
	return UserKey(strings.Join(parts, ":"))
}

// Transport returns the prefix before the first colon.
func (k UserKey) Transport() string {
	if i := strings.IndexByte(string(k), ':'); i >= 0 {
		return string(k)[:i]
	}
	return ""
}

// NativeID returns everything after the transport prefix.
func (k UserKey) NativeID() string {
	if i := strings.IndexByte(string(k), ':'); i >= 0 {
		return string(k)[i+1:]
	}
	return string(k)
}
