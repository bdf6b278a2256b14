package oxidb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBrokenConn is returned by every call on a client whose stream was
// interrupted mid-frame. The pool replaces such clients.
var ErrBrokenConn = errors.New("oxidb: connection broken")

// Error is returned when the OxiDB server returns an error response.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("oxidb: %s", e.Msg)
}

// IsNotFound reports whether err is a server "not found" response.
func IsNotFound(err error) bool {
	return hasServerMsg(err, "not found")
}

// IsDuplicate reports whether err is a unique-index violation.
func IsDuplicate(err error) bool {
	return hasServerMsg(err, "unique") || hasServerMsg(err, "duplicate")
}

// IsExists reports whether err says the bucket or index already exists.
func IsExists(err error) bool {
	return hasServerMsg(err, "already exists")
}

func hasServerMsg(err error, substr string) bool {
	var e *Error
	return errors.As(err, &e) && strings.Contains(strings.ToLower(e.Msg), substr)
}
