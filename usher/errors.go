package usher

import "errors"

// ErrNotOurUsher is the shape-check rejection for a record carrying only an
// author signature whose usher_public_key does not name this node.
var ErrNotOurUsher = errors.New("usher: not addressed to this usher")
