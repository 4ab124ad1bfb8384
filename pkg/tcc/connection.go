package tcc

import (
	"github.com/google/uuid"
)

// Connection is the pool's handle for one backend endpoint.
//
// The pool only ever uses a *Connection as identity - it never dials the URI
// or reads the Options. Those exist for the transport layer that performs the
// actual requests and for affinity-aware selectors.
type Connection struct {
	NodeID  uuid.UUID
	Name    string
	URI     string
	Options map[string]interface{}
}

// NewConnection creates a Connection handle for a single endpoint.
func NewConnection(name string, uri string, options map[string]interface{}) *Connection {

	return &Connection{
		NodeID:  uuid.New(),
		Name:    name,
		URI:     uri,
		Options: options,
	}
}
