package streaming

// Config holds server-wide tunables translated from CLI flags into the core
// package's vocabulary.
type Config struct {
	Port   int
	Policy Policy

	MaxClients  int // default 20
	VideoChunks int // default 100

	UDPPacketLossRate int // percent, default 5

	HookScripts     []string // "event_type=path" pairs
	HookWebhooks    []string // "event_type=url" pairs
	HookStdioFormat string   // "json", "env", or "" (disabled)
	HookTimeout     string
	HookConcurrency int
}

// Policy selects the scheduler's client-selection strategy.
type Policy string

const (
	PolicyFCFS Policy = "FCFS"
	PolicyRR   Policy = "RR"
)

// applyDefaults fills zero-valued fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.MaxClients == 0 {
		c.MaxClients = 20
	}
	if c.VideoChunks == 0 {
		c.VideoChunks = 100
	}
	if c.UDPPacketLossRate == 0 {
		c.UDPPacketLossRate = 5
	}
	if c.HookTimeout == "" {
		c.HookTimeout = "30s"
	}
	if c.HookConcurrency == 0 {
		c.HookConcurrency = 10
	}
}
