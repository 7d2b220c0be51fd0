package store

import "errors"

var (
	ErrSlotTaken      = errors.New("slot already taken")
	ErrNotFound       = errors.New("not found")
	ErrNotCancellable = errors.New("not cancellable")
	ErrNotPending     = errors.New("not pending")
)
