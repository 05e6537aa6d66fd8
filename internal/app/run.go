package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/builder"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/config"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/ctxlog"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine/awsengine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/executor"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/manifest"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// document is the synthesized form of a topology: resources in dependency
// order plus the export map.
type document struct {
	Identifier string               `json:"identifier"`
	Resources  []*topology.Resource `json:"resources"`
	Exports    []topology.Export    `json:"exports"`
}

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	env, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading environment configuration: %w", err)
	}

	inputs := builder.Inputs{
		Identifier:        a.config.Identifier,
		SecretARN:         env.RunnerTokenSecretARN,
		AgentLabels:       env.AgentLabels,
		AvailabilityZones: env.DefaultAvailabilityZones(),
	}
	if a.config.ManifestPath != "" {
		m, err := manifest.Load(ctx, a.config.ManifestPath)
		if err != nil {
			return err
		}
		m.Apply(&inputs)
		a.logger.Debug("Manifest overrides applied.", "path", a.config.ManifestPath)
	}

	topo, err := builder.Assemble(ctx, inputs)
	if err != nil {
		return fmt.Errorf("assembling topology: %w", err)
	}
	a.logger.Debug("Topology assembled.", "resources", len(topo.Resources), "exports", len(topo.Exports))

	switch a.config.Command {
	case CommandSynth:
		return a.synth(topo)
	case CommandApply:
		return a.apply(ctx, topo, env)
	case CommandDestroy:
		return a.destroy(ctx, topo, env)
	default:
		return fmt.Errorf("unknown command %q", a.config.Command)
	}
}

// synth writes the deterministic topology document.
func (a *App) synth(topo *topology.Topology) error {
	resources, err := topo.SortedResources()
	if err != nil {
		return fmt.Errorf("ordering resources: %w", err)
	}

	doc := document{
		Identifier: topo.Identifier,
		Resources:  resources,
		Exports:    topo.Exports,
	}
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding topology document: %w", err)
	}
	return nil
}

// selectEngine returns the injected engine, or builds the configured one.
func (a *App) selectEngine(env *config.Environment) (engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	switch a.config.Engine {
	case EngineAWS:
		return awsengine.New(env.Region)
	default:
		return nil, fmt.Errorf("unknown engine %q", a.config.Engine)
	}
}

func (a *App) apply(ctx context.Context, topo *topology.Topology, env *config.Environment) error {
	eng, err := a.selectEngine(env)
	if err != nil {
		return err
	}

	a.logger.Info("Applying stack.", "identifier", topo.Identifier, "resources", len(topo.Resources))
	result, err := executor.New(topo, eng).Apply(ctx)
	if err != nil {
		return fmt.Errorf("applying stack '%s': %w", topo.Identifier, err)
	}
	a.logger.Info("Stack applied.", "identifier", topo.Identifier, "exports", len(result.Exports))

	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Exports); err != nil {
		return fmt.Errorf("encoding exports: %w", err)
	}
	return nil
}

func (a *App) destroy(ctx context.Context, topo *topology.Topology, env *config.Environment) error {
	eng, err := a.selectEngine(env)
	if err != nil {
		return err
	}

	a.logger.Info("Destroying stack.", "identifier", topo.Identifier, "resources", len(topo.Resources))
	if err := executor.New(topo, eng).Destroy(ctx); err != nil {
		return fmt.Errorf("destroying stack '%s': %w", topo.Identifier, err)
	}
	a.logger.Info("Stack destroyed.", "identifier", topo.Identifier)
	return nil
}
