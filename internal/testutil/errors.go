package testutil

import "errors"

// ErrTimeout is the cause of fake registry failures
var ErrTimeout = errors.New("registry timed out")
