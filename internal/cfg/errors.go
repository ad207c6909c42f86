package cfg

import "errors"

// ErrUnknownNode is returned when a NodeID does not belong to the graph.
var ErrUnknownNode = errors.New("unknown node")
