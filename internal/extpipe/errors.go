package extpipe

import "errors"

var (
	ErrNotOpen     = errors.New("pipe not created or closed already")
	ErrAlreadyOpen = errors.New("pipe session already open")
)
