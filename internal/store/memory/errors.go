package memory

import "errors"

var errNoRow = errors.New("no matching row")
