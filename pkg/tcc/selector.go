package tcc

import (
	"math/rand"
)

// ConnectionSelector chooses which live connection serves the next request.
//
// Select is always called with at least one connection - the pool forcibly
// resurrects a dead connection first whenever the live list is empty, so an
// empty input signals a sequencing bug in the pool itself, not a runtime
// condition a strategy has to handle. Strategies may keep internal state
// (the round-robin cursor) but must not mutate the list they are given.
type ConnectionSelector interface {
	Select(connections []*Connection) *Connection
}

// SelectorFactory builds a ConnectionSelector from the full mapping of every
// connection the pool was constructed with and its options. The mapping covers
// all known nodes, not just the currently live subset, so strategies can make
// locality decisions (prefer same-zone nodes, fall back only when none are
// live).
type SelectorFactory func(connectionOpts map[*Connection]map[string]interface{}) ConnectionSelector

// RandomSelector picks a live connection uniformly at random.
type RandomSelector struct {
	connectionOpts map[*Connection]map[string]interface{}
}

// NewRandomSelector creates a RandomSelector.
func NewRandomSelector(connectionOpts map[*Connection]map[string]interface{}) *RandomSelector {

	return &RandomSelector{connectionOpts: connectionOpts}
}

// Select returns a uniformly random live connection.
func (s *RandomSelector) Select(connections []*Connection) *Connection {

	return connections[rand.Intn(len(connections))]
}

// RoundRobinSelector rotates through the live connections with an internal
// cursor.
//
// The cursor is advanced and then normalized against the list length on every
// call. Because the live list shrinks and grows as connections are marked
// dead and resurrected, the rotation is only approximately fair while the
// list is changing size - a connection can be skipped or revisited across
// calls. Callers depend on this distribution; it is intentional behavior.
type RoundRobinSelector struct {
	connectionOpts map[*Connection]map[string]interface{}
	cursor         int
}

// NewRoundRobinSelector creates a RoundRobinSelector with the cursor parked
// before the first element.
func NewRoundRobinSelector(connectionOpts map[*Connection]map[string]interface{}) *RoundRobinSelector {

	return &RoundRobinSelector{
		connectionOpts: connectionOpts,
		cursor:         -1,
	}
}

// Select advances the cursor one step and returns the connection under it.
func (s *RoundRobinSelector) Select(connections []*Connection) *Connection {

	s.cursor++
	s.cursor %= len(connections)
	return connections[s.cursor]
}

// selectorFromType builds the selector named by PoolConfig.SelectorType.
func selectorFromType(selectorType string, connectionOpts map[*Connection]map[string]interface{}) ConnectionSelector {

	switch selectorType {
	case RandomSelectorType:
		return NewRandomSelector(connectionOpts)
	case RoundRobinSelectorType:
		fallthrough
	default:
		return NewRoundRobinSelector(connectionOpts)
	}
}
