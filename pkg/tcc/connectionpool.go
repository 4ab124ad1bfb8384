package tcc

import (
	"math"
	"math/bits"
	"strconv"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

// ConnectionPool houses the pool of cluster node connections.
//
// The transport layer drives all the action within the pool: it asks for a
// connection via GetConnection before each request, reports connectivity
// failures via MarkDead and redeems recovered nodes via MarkLive. A connection
// marked dead is quarantined for DeadTimeout * 2^min(failures-1, TimeoutCutoff)
// seconds and migrates back to the live list through resurrection.
//
// One coarse mutex guards the live list, the dead queue and the failure
// counters. No pool operation performs I/O or blocks; races between callers
// (double MarkDead, MarkLive on an already-cleared counter) are absorbed as
// no-ops rather than locked away.
type ConnectionPool struct {
	Config PoolConfig

	deadTimeout   time.Duration
	timeoutCutoff int

	allConnections []*Connection
	connections    []*Connection
	connectionOpts map[*Connection]map[string]interface{}
	dead           *queue.PriorityQueue
	deadCount      map[*Connection]int
	selector       ConnectionSelector
	poolLock       *sync.Mutex
	shutdown       bool

	deadHandler func(*Connection)
	liveHandler func(*Connection)
}

// deadEntry is one quarantined connection keyed by the time it becomes
// eligible for resurrection.
type deadEntry struct {
	eligibleAt time.Time
	connection *Connection
}

// Compare implements queue.Item, ordering entries by eligibleAt.
func (d *deadEntry) Compare(other queue.Item) int {

	entry := other.(*deadEntry)
	switch {
	case d.eligibleAt.Before(entry.eligibleAt):
		return -1
	case d.eligibleAt.After(entry.eligibleAt):
		return 1
	default:
		return 0
	}
}

// PoolStatistics is a point-in-time snapshot of pool state.
type PoolStatistics struct {
	LiveConnectionCount int            `json:"LiveConnectionCount"`
	DeadConnectionCount int            `json:"DeadConnectionCount"`
	FailureCounts       map[string]int `json:"FailureCounts"` // keyed by Connection.Name
	UTCDateTime         string         `json:"UTCDateTime"`
}

// NewConnectionPool creates hosting structure for the ConnectionPool using the
// selection strategy named by the config (round-robin when unset).
func NewConnectionPool(config *PoolConfig) (*ConnectionPool, error) {
	return NewConnectionPoolWithHandlers(config, nil, nil, nil)
}

// NewConnectionPoolWithSelector creates hosting structure for the
// ConnectionPool with a caller supplied selection strategy. The factory
// receives the full connection/options mapping so affinity-aware strategies
// can see every node, not just the live ones.
func NewConnectionPoolWithSelector(config *PoolConfig, newSelector SelectorFactory) (*ConnectionPool, error) {
	return NewConnectionPoolWithHandlers(config, newSelector, nil, nil)
}

// NewConnectionPoolWithHandlers creates hosting structure for the
// ConnectionPool with optional handlers invoked after a connection is marked
// dead or redeemed via MarkLive. Handlers run outside the pool lock.
func NewConnectionPoolWithHandlers(
	config *PoolConfig,
	newSelector SelectorFactory,
	deadHandler func(*Connection),
	liveHandler func(*Connection)) (*ConnectionPool, error) {

	if len(config.Nodes) == 0 {
		return nil, ErrNoNodes
	}

	cp := &ConnectionPool{
		Config:         *config,
		deadTimeout:    time.Duration(config.DeadTimeout) * time.Second,
		timeoutCutoff:  int(config.TimeoutCutoff),
		allConnections: make([]*Connection, 0, len(config.Nodes)),
		connections:    make([]*Connection, 0, len(config.Nodes)),
		connectionOpts: make(map[*Connection]map[string]interface{}, len(config.Nodes)),
		dead:           queue.NewPriorityQueue(len(config.Nodes), true),
		deadCount:      make(map[*Connection]int),
		poolLock:       &sync.Mutex{},
		deadHandler:    deadHandler,
		liveHandler:    liveHandler,
	}

	if cp.deadTimeout == 0 {
		cp.deadTimeout = DefaultDeadTimeout * time.Second
	}
	if cp.timeoutCutoff == 0 {
		cp.timeoutCutoff = DefaultTimeoutCutoff
	}

	cp.initializeConnections()

	if config.RandomizeNodes {
		// avoid every client hammering the same first node after a synchronized fleet restart
		shuffleConnections(cp.connections)
	}

	if newSelector != nil {
		cp.selector = newSelector(cp.connectionOpts)
	} else {
		cp.selector = selectorFromType(config.SelectorType, cp.connectionOpts)
	}

	return cp, nil
}

func (cp *ConnectionPool) initializeConnections() {

	for i, node := range cp.Config.Nodes {

		connection := NewConnection(
			cp.Config.ApplicationName+"-"+strconv.Itoa(i),
			node.URI,
			node.Options)

		cp.allConnections = append(cp.allConnections, connection)
		cp.connections = append(cp.connections, connection)
		cp.connectionOpts[connection] = node.Options
	}
}

// GetConnection returns a connection chosen by the pool's ConnectionSelector.
//
// Eligible dead connections are resurrected first; if the live list is still
// empty afterwards one dead connection is forcibly resurrected regardless of
// its quarantine - handing out a possibly-still-bad connection beats failing
// the request with zero candidates. GetConnection therefore always returns a
// connection for a pool constructed with at least one node; nil is returned
// only after Shutdown.
func (cp *ConnectionPool) GetConnection() *Connection {

	cp.poolLock.Lock()
	defer cp.poolLock.Unlock()

	if cp.shutdown {
		return nil
	}

	cp.resurrect(false, time.Now())

	// no live nodes, resurrect one by force
	if len(cp.connections) == 0 {
		cp.resurrect(true, time.Now())
	}

	return cp.selector.Select(cp.connections)
}

// MarkDead removes the connection from the live list and quarantines it with
// an exponentially growing timeout. Call it when a request against the
// connection failed with a connectivity-class error.
//
// Marking a connection that is not currently live is a no-op - another caller
// already got there, which is expected under concurrency, not a fault.
func (cp *ConnectionPool) MarkDead(connection *Connection) {
	cp.MarkDeadWithTimestamp(connection, time.Now())
}

// MarkDeadWithTimestamp is MarkDead with an injectable clock, which keeps
// quarantine arithmetic testable without sleeping.
func (cp *ConnectionPool) MarkDeadWithTimestamp(connection *Connection, now time.Time) {

	cp.poolLock.Lock()

	if !cp.removeFromLive(connection) {
		// not live or another caller marked it already, ignore
		cp.poolLock.Unlock()
		return
	}

	deadCount := cp.deadCount[connection] + 1
	cp.deadCount[connection] = deadCount

	_ = cp.dead.Put(&deadEntry{
		eligibleAt: now.Add(cp.quarantineDuration(deadCount)),
		connection: connection,
	})

	cp.poolLock.Unlock()

	if cp.deadHandler != nil {
		cp.deadHandler(connection)
	}
}

// MarkLive redeems a connection after a request against it succeeded. Only the
// failure counter is cleared, so the connection's next failure starts backoff
// from the base DeadTimeout again - the live/dead migration itself always
// happens through resurrection.
//
// Calling it for a connection with no recorded failures is a no-op.
func (cp *ConnectionPool) MarkLive(connection *Connection) {

	cp.poolLock.Lock()

	if _, ok := cp.deadCount[connection]; !ok {
		// another caller already cleared it, ignore
		cp.poolLock.Unlock()
		return
	}

	delete(cp.deadCount, connection)
	cp.poolLock.Unlock()

	if cp.liveHandler != nil {
		cp.liveHandler(connection)
	}
}

// Resurrect attempts to return one dead connection to the live list. Only the
// entry with the earliest eligible-again timestamp is inspected per call; if
// it is still quarantined and force is false it is pushed back untouched.
// With force it is resurrected regardless, which the pool uses when no live
// connections remain. The failure counter stays in place either way - it is
// cleared only by MarkLive once a request actually succeeds.
//
// Returns the resurrected connection or nil when nothing was eligible.
func (cp *ConnectionPool) Resurrect(force bool) *Connection {

	cp.poolLock.Lock()
	defer cp.poolLock.Unlock()

	return cp.resurrect(force, time.Now())
}

func (cp *ConnectionPool) resurrect(force bool, now time.Time) *Connection {

	// no dead connections
	if cp.shutdown || cp.dead.Empty() {
		return nil
	}

	items, err := cp.dead.Get(1)
	if err != nil || len(items) == 0 {
		// queue was disposed by Shutdown, nothing to revive
		return nil
	}

	entry := items[0].(*deadEntry)
	if !force && entry.eligibleAt.After(now) {
		// not eligible yet, return it back unchanged
		_ = cp.dead.Put(entry)
		return nil
	}

	cp.connections = append(cp.connections, entry.connection)
	return entry.connection
}

func (cp *ConnectionPool) removeFromLive(connection *Connection) bool {

	for i, candidate := range cp.connections {
		if candidate == connection {
			cp.connections = append(cp.connections[:i], cp.connections[i+1:]...)
			return true
		}
	}

	return false
}

// Connections returns every handle the pool was constructed with, live or
// dead, in construction (post-shuffle) order. Transport layers use this to
// associate their clients with the pool's handles.
func (cp *ConnectionPool) Connections() []*Connection {

	connections := make([]*Connection, len(cp.allConnections))
	copy(connections, cp.allConnections)
	return connections
}

// LiveConnections returns a copy of the current live list.
func (cp *ConnectionPool) LiveConnections() []*Connection {

	cp.poolLock.Lock()
	defer cp.poolLock.Unlock()

	connections := make([]*Connection, len(cp.connections))
	copy(connections, cp.connections)
	return connections
}

// Statistics takes a snapshot of the pool useful for health monitoring.
func (cp *ConnectionPool) Statistics() PoolStatistics {

	cp.poolLock.Lock()
	defer cp.poolLock.Unlock()

	stats := PoolStatistics{
		LiveConnectionCount: len(cp.connections),
		FailureCounts:       make(map[string]int, len(cp.deadCount)),
		UTCDateTime:         time.Now().UTC().Format(time.RFC3339),
	}
	if !cp.shutdown {
		stats.DeadConnectionCount = cp.dead.Len()
	}

	for connection, count := range cp.deadCount {
		stats.FailureCounts[connection.Name] = count
	}

	return stats
}

// Shutdown disposes the dead queue and clears the pool state. Afterwards
// GetConnection returns nil and MarkDead/MarkLive are no-ops.
func (cp *ConnectionPool) Shutdown() {

	if cp == nil {
		return
	}

	cp.poolLock.Lock()
	defer cp.poolLock.Unlock()

	cp.shutdown = true
	cp.dead.Dispose()
	cp.connections = nil
	cp.deadCount = make(map[*Connection]int)
}

// quarantineDuration computes the backoff for the given consecutive failure
// count: DeadTimeout * 2^min(deadCount-1, TimeoutCutoff). The cutoff keeps the
// quarantine from growing without bound after many repeated failures.
func (cp *ConnectionPool) quarantineDuration(deadCount int) time.Duration {

	exponent := deadCount - 1
	if exponent > cp.timeoutCutoff {
		exponent = cp.timeoutCutoff
	}

	// an extreme cutoff would shift the base timeout past the Duration
	// range; saturate instead of wrapping into a zero/negative quarantine
	if exponent >= 63-bits.Len64(uint64(cp.deadTimeout)) {
		return time.Duration(math.MaxInt64)
	}

	return cp.deadTimeout * time.Duration(uint64(1)<<uint(exponent))
}
