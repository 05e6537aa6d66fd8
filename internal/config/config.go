package config

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/arn"
	"github.com/caarlos0/env/v9"
)

// ErrMissingInput is wrapped by every missing-required-input failure, so
// callers can distinguish configuration errors from assembly bugs.
var ErrMissingInput = errors.New("missing required input")

// SecretField is the field of the runner token secret injected into the
// agent container.
const SecretField = "RUNNER_TOKEN"

// Environment holds the inputs a bakery stack reads from the process
// environment. The secret itself is never read here; only its ARN is carried
// into the topology as a reference.
type Environment struct {
	// RunnerTokenSecretARN points at the externally managed credential the
	// agent authenticates with. The secret must contain the RUNNER_TOKEN field.
	RunnerTokenSecretARN string `env:"RUNNER_TOKEN_SECRET_ARN"`

	// AgentLabels is the label set the agent advertises to the orchestration
	// backend, passed verbatim into the container environment.
	AgentLabels string `env:"PREFECT_AGENT_LABELS"`

	// Region is the deployment region, used to derive default availability
	// zones and by the AWS engine.
	Region string `env:"AWS_REGION" envDefault:"us-west-2"`
}

// Load parses and validates the environment. It returns a wrapped
// ErrMissingInput when a required variable is absent.
func Load() (*Environment, error) {
	cfg := &Environment{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required inputs are present and well-formed.
func (e *Environment) Validate() error {
	if e.RunnerTokenSecretARN == "" {
		return fmt.Errorf("%w: RUNNER_TOKEN_SECRET_ARN", ErrMissingInput)
	}
	if !arn.IsARN(e.RunnerTokenSecretARN) {
		return fmt.Errorf("RUNNER_TOKEN_SECRET_ARN is not a valid ARN: %q", e.RunnerTokenSecretARN)
	}
	parsed, err := arn.Parse(e.RunnerTokenSecretARN)
	if err != nil {
		return fmt.Errorf("parsing RUNNER_TOKEN_SECRET_ARN: %w", err)
	}
	if parsed.Service != "secretsmanager" {
		return fmt.Errorf("RUNNER_TOKEN_SECRET_ARN must reference a secretsmanager secret, got service %q", parsed.Service)
	}
	if e.AgentLabels == "" {
		return fmt.Errorf("%w: PREFECT_AGENT_LABELS", ErrMissingInput)
	}
	if e.Region == "" {
		return fmt.Errorf("%w: AWS_REGION", ErrMissingInput)
	}
	return nil
}

// DefaultAvailabilityZones derives the default AZ set from the region when
// no explicit zones are configured. The stack spans at most three zones.
func (e *Environment) DefaultAvailabilityZones() []string {
	return []string{e.Region + "a", e.Region + "b", e.Region + "c"}
}
