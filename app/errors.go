package app

import (
	"errors"

	"github.com/ledgerdesk/ledgerdesk/ports"
)

// ErrValidation wraps a domain validation failure. The message is safe to
// surface to API callers.
type ErrValidation struct {
	Reason string
}

func (e ErrValidation) Error() string {
	return e.Reason
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var v ErrValidation
	return errors.As(err, &v)
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, ports.ErrDuplicate)
}
