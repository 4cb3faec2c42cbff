package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alxayo/vidstream/internal/streaming"
)

// cliConfig holds user supplied flag and positional values prior to
// translation into streaming.Config.
type cliConfig struct {
	port   int
	policy streaming.Policy

	logLevel string

	maxClients        int
	videoChunks       int
	udpPacketLossRate int

	hookScripts     []string
	hookWebhooks    []string
	hookStdioFormat string
	hookTimeout     string
	hookConcurrency int
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("vidstream-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var hookScripts stringSliceFlag
	var hookWebhooks stringSliceFlag

	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.IntVar(&cfg.maxClients, "max-clients", 20, "Maximum concurrent client slots")
	fs.IntVar(&cfg.videoChunks, "video-chunks", 100, "Chunks delivered per session")
	fs.IntVar(&cfg.udpPacketLossRate, "udp-loss-rate", 5, "Simulated datagram packet loss percentage")
	fs.Var(&hookScripts, "hook-script", "Hook script in format event_type=script_path (repeatable)")
	fs.Var(&hookWebhooks, "hook-webhook", "Hook webhook in format event_type=webhook_url (repeatable)")
	fs.StringVar(&cfg.hookStdioFormat, "hook-stdio-format", "", "Enable structured stdio hook output: json|env (empty=disabled)")
	fs.StringVar(&cfg.hookTimeout, "hook-timeout", "30s", "Timeout for hook execution")
	fs.IntVar(&cfg.hookConcurrency, "hook-concurrency", 10, "Maximum concurrent hook executions")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.hookScripts = hookScripts
	cfg.hookWebhooks = hookWebhooks

	rest := fs.Args()
	if len(rest) != 2 {
		return nil, fmt.Errorf("usage: vidstream-server [flags] <port> <policy: FCFS|RR>")
	}

	port, err := strconv.Atoi(rest[0])
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port %q: must be an integer in 1..65535", rest[0])
	}
	cfg.port = port

	switch strings.ToUpper(rest[1]) {
	case "FCFS":
		cfg.policy = streaming.PolicyFCFS
	case "RR":
		cfg.policy = streaming.PolicyRR
	default:
		return nil, fmt.Errorf("invalid policy %q: must be FCFS or RR", rest[1])
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if cfg.maxClients < 1 {
		return nil, fmt.Errorf("max-clients must be positive, got %d", cfg.maxClients)
	}
	if cfg.videoChunks < 1 {
		return nil, fmt.Errorf("video-chunks must be positive, got %d", cfg.videoChunks)
	}
	if cfg.udpPacketLossRate < 0 || cfg.udpPacketLossRate > 100 {
		return nil, fmt.Errorf("udp-loss-rate must be in 0..100, got %d", cfg.udpPacketLossRate)
	}
	if cfg.hookStdioFormat != "" && cfg.hookStdioFormat != "json" && cfg.hookStdioFormat != "env" {
		return nil, fmt.Errorf("invalid hook-stdio-format %q, must be 'json' or 'env'", cfg.hookStdioFormat)
	}
	if cfg.hookConcurrency < 1 || cfg.hookConcurrency > 100 {
		return nil, fmt.Errorf("hook-concurrency must be between 1 and 100, got %d", cfg.hookConcurrency)
	}
	for _, assignment := range cfg.hookScripts {
		if err := validateHookAssignment("hook-script", assignment); err != nil {
			return nil, err
		}
	}
	for _, assignment := range cfg.hookWebhooks {
		if err := validateHookAssignment("hook-webhook", assignment); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// stringSliceFlag implements flag.Value for repeatable flags.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ", ") }

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func validateHookAssignment(flagName, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid %s format %q, expected event_type=value", flagName, assignment)
	}
	return nil
}

func (c *cliConfig) toStreamingConfig() streaming.Config {
	return streaming.Config{
		Port:              c.port,
		Policy:            c.policy,
		MaxClients:        c.maxClients,
		VideoChunks:       c.videoChunks,
		UDPPacketLossRate: c.udpPacketLossRate,
		HookScripts:       c.hookScripts,
		HookWebhooks:      c.hookWebhooks,
		HookStdioFormat:   c.hookStdioFormat,
		HookTimeout:       c.hookTimeout,
		HookConcurrency:   c.hookConcurrency,
	}
}
