package executor

import (
	"context"
	"fmt"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/ctxlog"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// Executor applies or destroys one topology through an engine.
type Executor struct {
	topo   *topology.Topology
	engine engine.Engine
}

// Result holds the outcome of a successful apply.
type Result struct {
	// Handles maps every resource ID to its created handle.
	Handles map[string]engine.Handle
	// Exports is the resolved export map, keyed by export name.
	Exports map[string]string
}

// New returns an executor for the given topology and engine.
func New(topo *topology.Topology, eng engine.Engine) *Executor {
	return &Executor{topo: topo, engine: eng}
}

// Apply creates every declared resource in dependency order and resolves
// the export map. Engine failures are surfaced unmodified, wrapped only
// with the identity of the failing resource.
func (e *Executor) Apply(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	sorted, err := e.topo.SortedResources()
	if err != nil {
		return nil, err
	}

	handles := make(map[string]engine.Handle, len(sorted))
	for _, res := range sorted {
		deps := e.dependencyHandles(res, handles)
		logger.Info("Creating resource.", "id", res.ID, "kind", res.Kind)
		h, err := e.engine.CreateResource(ctx, res, deps)
		if err != nil {
			return nil, fmt.Errorf("creating resource '%s': %w", res.ID, err)
		}
		handles[res.ID] = h
	}

	exports := make(map[string]string, len(e.topo.Exports))
	for _, exp := range e.topo.Exports {
		v, err := engine.ResolveValue(exp.Value, handles)
		if err != nil {
			return nil, fmt.Errorf("resolving export '%s': %w", exp.Name, err)
		}
		exports[exp.Name] = v
	}

	logger.Info("Apply finished.", "resources", len(handles), "exports", len(exports))
	return &Result{Handles: handles, Exports: exports}, nil
}

// Destroy tears the stack down in reverse dependency order. Handles are
// zero-valued: engines locate existing resources by their deterministic
// names.
func (e *Executor) Destroy(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	sorted, err := e.topo.SortedResources()
	if err != nil {
		return err
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		res := sorted[i]
		logger.Info("Deleting resource.", "id", res.ID, "kind", res.Kind)
		if err := e.engine.DeleteResource(ctx, res, engine.Handle{NodeID: res.ID}); err != nil {
			return fmt.Errorf("deleting resource '%s': %w", res.ID, err)
		}
	}
	logger.Info("Destroy finished.", "resources", len(sorted))
	return nil
}

// dependencyHandles collects the handles of everything res references.
func (e *Executor) dependencyHandles(res *topology.Resource, handles map[string]engine.Handle) map[string]engine.Handle {
	deps := make(map[string]engine.Handle)
	for _, ref := range res.Spec.References() {
		if ref.Node == res.ID {
			continue
		}
		if h, ok := handles[ref.Node]; ok {
			deps[ref.Node] = h
		}
	}
	for _, dep := range res.DependsOn {
		if h, ok := handles[dep]; ok {
			deps[dep] = h
		}
	}
	return deps
}
