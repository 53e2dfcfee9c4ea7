package protocol

import (
	"errors"
	"fmt"
)

// ErrDecode wraps every message decode failure; the underlying wire error is kept in the chain.
var ErrDecode = errors.New("protocol: decode failed")

func decodeError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecode, msg, err)
}
