package storage

import stderrors "errors"

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = stderrors.New("not found")
