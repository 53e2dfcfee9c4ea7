package bridge

import "errors"

var (
	ErrSurfaceClosed = errors.New("bridge: surface closed")
	ErrEvalTimeout   = errors.New("bridge: eval timeout")
	ErrEvalIDInUse   = errors.New("bridge: eval id already registered")
	ErrUnknownEval   = errors.New("bridge: unknown eval id")
)
