package engine

import (
	"context"
	"fmt"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// Handle identifies a physically created resource. Attrs carries the
// attributes refs can resolve against: "arn", "id" and "name".
type Handle struct {
	NodeID string
	Attrs  map[string]string
}

// Attr returns the named attribute of the handle.
func (h Handle) Attr(name string) (string, bool) {
	v, ok := h.Attrs[name]
	return v, ok
}

// Engine creates and destroys resources of the kinds a topology declares.
// Implementations receive resources in dependency order: deps always holds
// a handle for every resource the declaration references. Failures are
// surfaced unmodified; the caller does not retry.
type Engine interface {
	// CreateResource realizes one declared resource and returns its handle.
	CreateResource(ctx context.Context, res *topology.Resource, deps map[string]Handle) (Handle, error)

	// DeleteResource tears down a previously created resource. It is invoked
	// in reverse dependency order.
	DeleteResource(ctx context.Context, res *topology.Resource, h Handle) error
}

// ResolveRef reads the attribute a ref points at from the created handles.
func ResolveRef(ref topology.Ref, deps map[string]Handle) (string, error) {
	h, ok := deps[ref.Node]
	if !ok {
		return "", fmt.Errorf("no handle for resource '%s'", ref.Node)
	}
	v, ok := h.Attr(ref.Attr)
	if !ok {
		return "", fmt.Errorf("handle for '%s' has no attribute '%s'", ref.Node, ref.Attr)
	}
	return v, nil
}

// ResolveValue returns the literal, or resolves the ref against the handles.
func ResolveValue(v topology.Value, deps map[string]Handle) (string, error) {
	if !v.IsRef() {
		return v.Literal, nil
	}
	return ResolveRef(*v.Ref, deps)
}
