package app

import "fmt"

// Commands the application can run.
const (
	CommandSynth   = "synth"
	CommandApply   = "apply"
	CommandDestroy = "destroy"
)

// EngineAWS selects the real provisioning engine for apply and destroy.
const EngineAWS = "aws"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command    string // synth, apply or destroy
	Identifier string // stack identifier, may also come from the manifest

	ManifestPath string // optional bakery.hcl overrides
	Engine       string // provisioning engine for apply/destroy

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandSynth, CommandApply, CommandDestroy:
	default:
		return nil, fmt.Errorf("unknown command %q: must be 'synth', 'apply' or 'destroy'", cfg.Command)
	}
	if cfg.Engine != EngineAWS {
		return nil, fmt.Errorf("unknown engine %q: must be 'aws'", cfg.Engine)
	}
	return &cfg, nil
}
