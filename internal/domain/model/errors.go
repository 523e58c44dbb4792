package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrOutOfRange marks a present field whose value lies outside its accepted
// bounds.
var ErrOutOfRange = errors.New("value out of range")

// RangeError names the offending field and the bounds it violated.
type RangeError struct {
	Field string
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	if math.IsInf(e.Max, 1) {
		return fmt.Sprintf("%s must be at least %s", e.Field, fmtBound(e.Min))
	}
	return fmt.Sprintf("%s must be between %s and %s", e.Field, fmtBound(e.Min), fmtBound(e.Max))
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

func fmtBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
