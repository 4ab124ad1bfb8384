package tcc

import "errors"

var (
	// ErrNoNodes is returned when a ConnectionPool is constructed without any nodes.
	// you can check for this error with errors.Is
	ErrNoNodes = errors.New("connectionpool requires at least one node")
)
