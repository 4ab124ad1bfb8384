package tcc

// ClusterSeasoning represents the configuration values.
type ClusterSeasoning struct {
	PoolConfig *PoolConfig `json:"PoolConfig" yaml:"PoolConfig"`
}

// PoolConfig represents settings for creating/configuring the ConnectionPool.
type PoolConfig struct {
	ApplicationName string        `json:"ApplicationName" yaml:"ApplicationName"`
	Nodes           []*NodeConfig `json:"Nodes" yaml:"Nodes"`
	DeadTimeout     uint32        `json:"DeadTimeout" yaml:"DeadTimeout"`       // seconds a node is quarantined after a failure, doubles on consecutive failures
	TimeoutCutoff   uint32        `json:"TimeoutCutoff" yaml:"TimeoutCutoff"`   // consecutive failure count after which the quarantine stops growing; quarantines saturate at the Duration range
	RandomizeNodes  bool          `json:"RandomizeNodes" yaml:"RandomizeNodes"` // shuffle the node order on startup
	SelectorType    string        `json:"SelectorType" yaml:"SelectorType"`     // round-robin (default) or random
}

// NodeConfig represents one backend endpoint and its transport options.
type NodeConfig struct {
	URI     string                 `json:"URI" yaml:"URI"`
	Options map[string]interface{} `json:"Options" yaml:"Options"` // opaque bag handed to selectors and the transport layer
}

const (
	// DefaultDeadTimeout is the base quarantine in seconds used when PoolConfig.DeadTimeout is 0.
	DefaultDeadTimeout = 60

	// DefaultTimeoutCutoff bounds the quarantine growth when PoolConfig.TimeoutCutoff is 0.
	DefaultTimeoutCutoff = 5

	// RoundRobinSelectorType helps identify which selection strategy to build.
	RoundRobinSelectorType = "round-robin"

	// RandomSelectorType helps identify which selection strategy to build.
	RandomSelectorType = "random"
)
