package replay

import "errors"

// ErrInvalidOrdering is returned when events are not properly ordered.
var ErrInvalidOrdering = errors.New("events are not in deterministic order")

// ErrInvalidRange is returned when a replay range has from > to.
var ErrInvalidRange = errors.New("invalid replay range")
