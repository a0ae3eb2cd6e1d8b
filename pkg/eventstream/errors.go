package eventstream

import "errors"

// ErrNilEvent indicates a nil control event was provided to a publisher.
var ErrNilEvent = errors.New("nil control event")
