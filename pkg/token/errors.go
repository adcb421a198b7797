package token

import (
	"errors"

	"github.com/gregLibert/pki-token/pkg/iso7816"
)

// StatusError carries the ISO 7816 status word a handler decided on.
// Handlers fail by returning one; the dispatcher turns it into the
// trailing SW1-SW2 of the response.
type StatusError struct {
	SW iso7816.StatusWord
}

func (e *StatusError) Error() string {
	return e.SW.String()
}

func swErr(sw iso7816.StatusWord) error {
	return &StatusError{SW: sw}
}

// statusOf extracts the status word from a handler error, falling back
// to 6F00 for anything that is not a StatusError.
func statusOf(err error) iso7816.StatusWord {
	var se *StatusError
	if errors.As(err, &se) {
		return se.SW
	}
	return iso7816.SW_ERR_UNKNOWN
}
