package pipe

import "errors"

var (
	// ErrDisconnected is returned once the peer has gone away or an I/O error occurred.
	ErrDisconnected = errors.New("pipe: disconnected")
	// ErrClosed is returned after the local side called Close.
	ErrClosed = errors.New("pipe: closed")
)
