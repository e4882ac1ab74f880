package registry

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrAccountNotFound means the named account is not in the directory.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientPermission means no usable account has the required role.
	ErrInsufficientPermission = errors.New("insufficient permission")
	// ErrCalendarNotFound means no account in the directory sees the calendar.
	ErrCalendarNotFound = errors.New("calendar not found in any account")
	// ErrInvalidIdentifier means a calendar ID failed format validation.
	ErrInvalidIdentifier = errors.New("invalid identifier format")
)

const maxCalendarIDLength = 1024

// ValidateCalendarID checks the shape of a calendar identifier. It does not
// check that the calendar exists.
func ValidateCalendarID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: calendar ID cannot be empty", ErrInvalidIdentifier)
	}
	if len(id) > maxCalendarIDLength {
		return fmt.Errorf("%w: calendar ID longer than %d characters", ErrInvalidIdentifier, maxCalendarIDLength)
	}
	if strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: calendar ID %q contains whitespace or control characters", ErrInvalidIdentifier, id)
	}
	return nil
}
