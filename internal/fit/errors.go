package fit

import "errors"

// ErrInvalidGeometry is returned when a canvas, polygon or alpha band cannot be used.
var ErrInvalidGeometry = errors.New("invalid geometry")
