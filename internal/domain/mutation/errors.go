package mutation

import "errors"

// ErrInvalidTransition is returned when a trigger is not allowed from the
// current state
var ErrInvalidTransition = errors.New("invalid state transition")
