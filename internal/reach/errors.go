package reach

import "errors"

// ErrIllegalTransition is returned when the status machine is asked to leave
// a terminal status or to stay in Running.
var ErrIllegalTransition = errors.New("illegal status transition")
