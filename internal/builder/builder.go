package builder

import (
	"context"
	"fmt"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/config"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/ctxlog"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// Fixed topology parameters. These are part of the stack's observable
// contract and are not configurable.
const (
	vpcCIDR = "10.0.0.0/16"

	ecsTasksPrincipal = "ecs-tasks.amazonaws.com"

	// The agent needs read access to worker logs under this fixed log-group
	// name pattern. Region and account are unknown at assembly time.
	workerLogGroupPattern = "arn:aws:logs:*:*:log-group:dask-ecs*"

	managedECSFullAccess     = "arn:aws:iam::aws:policy/AmazonECS_FullAccess"
	managedTaskExecutionRole = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"

	agentLabelsEnvVar = "PREFECT__CLOUD__AGENT__LABELS"
	agentTokenEnvVar  = "PREFECT__CLOUD__AGENT__AUTH_TOKEN"

	agentPort       = 8080
	healthCheckPath = "/api/health"
	logStreamPrefix = "ecs-agent"

	maxAvailabilityZones = 3
)

// Defaults for the tunable parameters, overridable through the manifest.
const (
	DefaultImage        = "pangeo-forge-aws-bakery-agent"
	DefaultCPU          = 512
	DefaultMemoryMiB    = 2048
	DefaultDesiredCount = 1
)

// Inputs carries everything the assembler needs. Identifier is
// caller-provided and must be unique per concurrently deployed stack;
// SecretARN and AgentLabels come from the environment.
type Inputs struct {
	Identifier        string
	SecretARN         string
	AgentLabels       string
	AvailabilityZones []string

	// Optional overrides; zero values select the defaults above.
	Image        string
	CPU          int
	MemoryMiB    int
	DesiredCount int
}

// validate fails fast on missing or malformed inputs so that no partial
// topology is ever produced.
func (in *Inputs) validate() error {
	if in.Identifier == "" {
		return fmt.Errorf("%w: identifier", config.ErrMissingInput)
	}
	if in.SecretARN == "" {
		return fmt.Errorf("%w: RUNNER_TOKEN_SECRET_ARN", config.ErrMissingInput)
	}
	if in.AgentLabels == "" {
		return fmt.Errorf("%w: PREFECT_AGENT_LABELS", config.ErrMissingInput)
	}
	if len(in.AvailabilityZones) == 0 {
		return fmt.Errorf("at least one availability zone is required")
	}
	if len(in.AvailabilityZones) > maxAvailabilityZones {
		return fmt.Errorf("at most %d availability zones are supported, got %d", maxAvailabilityZones, len(in.AvailabilityZones))
	}
	return nil
}

// withDefaults returns a copy of the inputs with the tunable zero values
// replaced by their defaults.
func (in Inputs) withDefaults() Inputs {
	if in.Image == "" {
		in.Image = DefaultImage
	}
	if in.CPU == 0 {
		in.CPU = DefaultCPU
	}
	if in.MemoryMiB == 0 {
		in.MemoryMiB = DefaultMemoryMiB
	}
	if in.DesiredCount == 0 {
		in.DesiredCount = DefaultDesiredCount
	}
	return in
}

// Assemble constructs the complete, validated topology for one bakery stack.
// It is pure graph construction: no cloud API is touched, and re-invocation
// with identical inputs yields a structurally identical topology.
func Assemble(ctx context.Context, in Inputs) (*topology.Topology, error) {
	logger := ctxlog.FromContext(ctx)

	if err := in.validate(); err != nil {
		return nil, err
	}
	in = in.withDefaults()
	logger.Debug("Assembling stack topology.", "identifier", in.Identifier, "zones", len(in.AvailabilityZones))

	topo := topology.New(in.Identifier)

	storage := declareStorage(topo, in)
	net := declareNetwork(topo, in)
	cluster := declareCluster(topo, in, net)
	identity := declareIdentity(topo, in, storage)
	declareCompute(topo, in, net, cluster, identity)
	declareExports(topo, in, storage, net, cluster, identity)

	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("assembled topology failed validation: %w", err)
	}
	logger.Debug("Topology assembled.", "resources", len(topo.Resources), "exports", len(topo.Exports))
	return topo, nil
}
