package constraint

import "errors"

// ErrUnclassifiable is returned when an event does not supply a binding for
// a variable of its symbol. Callers treat it as a loss of precision rather
// than a programming error.
var ErrUnclassifiable = errors.New("unclassifiable binding")
