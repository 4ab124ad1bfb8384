package tcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinSelectorCyclesOverStableList(t *testing.T) {

	connections := []*Connection{
		NewConnection("node-0", "tcp://cluster-node-0:9200", nil),
		NewConnection("node-1", "tcp://cluster-node-1:9200", nil),
		NewConnection("node-2", "tcp://cluster-node-2:9200", nil),
	}

	selector := NewRoundRobinSelector(nil)

	// each element exactly once per full rotation, for several rotations
	for rotation := 0; rotation < 3; rotation++ {
		for i := range connections {
			assert.Same(t, connections[i], selector.Select(connections))
		}
	}
}

func TestRoundRobinSelectorNormalizesCursorAgainstCurrentLength(t *testing.T) {

	connections := []*Connection{
		NewConnection("node-0", "tcp://cluster-node-0:9200", nil),
		NewConnection("node-1", "tcp://cluster-node-1:9200", nil),
		NewConnection("node-2", "tcp://cluster-node-2:9200", nil),
	}

	selector := NewRoundRobinSelector(nil)
	assert.Same(t, connections[0], selector.Select(connections))
	assert.Same(t, connections[1], selector.Select(connections))

	// the list shrinks between calls; the cursor wraps against the new length
	shrunk := []*Connection{connections[0], connections[2]}
	assert.Same(t, shrunk[0], selector.Select(shrunk))
	assert.Same(t, shrunk[1], selector.Select(shrunk))
	assert.Same(t, shrunk[0], selector.Select(shrunk))
}

func TestRandomSelectorOnlyReturnsGivenConnections(t *testing.T) {

	connections := []*Connection{
		NewConnection("node-0", "tcp://cluster-node-0:9200", nil),
		NewConnection("node-1", "tcp://cluster-node-1:9200", nil),
		NewConnection("node-2", "tcp://cluster-node-2:9200", nil),
	}

	selector := NewRandomSelector(nil)
	for i := 0; i < 100; i++ {
		assert.Contains(t, connections, selector.Select(connections))
	}
}

func TestRandomSelectorPoolFromConfig(t *testing.T) {

	config := newTestPoolConfig(3)
	config.SelectorType = RandomSelectorType

	cp, err := NewConnectionPool(config)
	require.NoError(t, err)

	connections := cp.Connections()
	for i := 0; i < 100; i++ {
		assert.Contains(t, connections, cp.GetConnection())
	}

	cp.Shutdown()
}

// zoneAffinitySelector prefers nodes in its own zone and falls back to the
// whole live list only when none of them are live.
type zoneAffinitySelector struct {
	connectionOpts map[*Connection]map[string]interface{}
	zone           string
	rotation       *RoundRobinSelector
}

func (s *zoneAffinitySelector) Select(connections []*Connection) *Connection {

	local := make([]*Connection, 0, len(connections))
	for _, connection := range connections {
		if opts := s.connectionOpts[connection]; opts != nil && opts["zone"] == s.zone {
			local = append(local, connection)
		}
	}

	if len(local) == 0 {
		return s.rotation.Select(connections)
	}

	return s.rotation.Select(local)
}

func TestCustomAffinitySelector(t *testing.T) {

	config := &PoolConfig{
		ApplicationName: "TurboCookedCluster",
		DeadTimeout:     60,
		TimeoutCutoff:   5,
		Nodes: []*NodeConfig{
			{URI: "tcp://cluster-node-0:9200", Options: map[string]interface{}{"zone": "us-east-1a"}},
			{URI: "tcp://cluster-node-1:9200", Options: map[string]interface{}{"zone": "us-east-1b"}},
			{URI: "tcp://cluster-node-2:9200", Options: map[string]interface{}{"zone": "us-east-1a"}},
		},
	}

	cp, err := NewConnectionPoolWithSelector(config, func(connectionOpts map[*Connection]map[string]interface{}) ConnectionSelector {
		return &zoneAffinitySelector{
			connectionOpts: connectionOpts,
			zone:           "us-east-1b",
			rotation:       NewRoundRobinSelector(connectionOpts),
		}
	})
	require.NoError(t, err)

	connections := cp.Connections()
	sameZone := connections[1]

	for i := 0; i < 10; i++ {
		assert.Same(t, sameZone, cp.GetConnection())
	}

	// with the preferred zone dead the strategy falls back to the others
	cp.MarkDead(sameZone)
	for i := 0; i < 10; i++ {
		got := cp.GetConnection()
		assert.NotNil(t, got)
		assert.NotSame(t, sameZone, got)
	}

	cp.Shutdown()
}
