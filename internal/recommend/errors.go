package recommend

import "errors"

// ErrInvalidInput is returned for feature vectors that are missing dimensions or
// hold non-finite values, and for negative result counts.
var ErrInvalidInput = errors.New("invalid input")
