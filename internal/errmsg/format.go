// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Auth operations
	OpSignIn  Op = "sign in to Last.fm"
	OpSignOut Op = "sign out"

	// Delivery operations
	OpEnqueue Op = "queue scrobble"
	OpFlush   Op = "deliver pending scrobbles"

	// State operations
	OpStateOpen Op = "open state database"
	OpLogRead   Op = "read scrobble log"

	// Observer operations
	OpObserve Op = "observe player"

	// Initialization
	OpInitialize Op = "initialize wake"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
