package topology

import (
	"fmt"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/dag"
)

// Resource is a single declared resource: a unique name, a kind, and a typed
// spec. DependsOn carries ordering edges that are not implied by a ref
// inside the spec.
type Resource struct {
	ID        string       `json:"id"`
	Kind      ResourceKind `json:"kind"`
	Spec      Spec         `json:"spec"`
	DependsOn []string     `json:"dependsOn,omitempty"`
}

// Export is one named output of the stack. Downstream stacks locate
// resources purely by export name; the names must be stable across
// deployments of the same identifier.
type Export struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Topology is the fully assembled declaration of one bakery stack.
type Topology struct {
	Identifier string      `json:"identifier"`
	Resources  []*Resource `json:"resources"`
	Exports    []Export    `json:"exports"`

	byID map[string]*Resource
}

// New returns an empty topology for the given stack identifier.
func New(identifier string) *Topology {
	return &Topology{
		Identifier: identifier,
		byID:       make(map[string]*Resource),
	}
}

// Add declares a resource. Every ref inside the spec must target a resource
// that was added earlier: construction order is how dependency order is
// enforced, so a forward reference is a programming error and panics.
func (t *Topology) Add(id string, kind ResourceKind, spec Spec, dependsOn ...string) *Resource {
	if _, exists := t.byID[id]; exists {
		panic(fmt.Sprintf("topology: resource '%s' declared twice", id))
	}
	for _, ref := range spec.References() {
		// A resource may reference itself (a self-referential ingress rule);
		// that is not an ordering constraint.
		if ref.Node == id {
			continue
		}
		if _, ok := t.byID[ref.Node]; !ok {
			panic(fmt.Sprintf("topology: resource '%s' references '%s' before it is declared", id, ref.Node))
		}
	}
	for _, dep := range dependsOn {
		if _, ok := t.byID[dep]; !ok {
			panic(fmt.Sprintf("topology: resource '%s' depends on undeclared '%s'", id, dep))
		}
	}

	r := &Resource{ID: id, Kind: kind, Spec: spec, DependsOn: dependsOn}
	t.Resources = append(t.Resources, r)
	t.byID[id] = r
	return r
}

// AddExport publishes a named output. Export names are derived from the
// stack identifier by the naming package and must be unique.
func (t *Topology) AddExport(name string, v Value) {
	for _, e := range t.Exports {
		if e.Name == name {
			panic(fmt.Sprintf("topology: export '%s' declared twice", name))
		}
	}
	if v.IsRef() {
		if _, ok := t.byID[v.Ref.Node]; !ok {
			panic(fmt.Sprintf("topology: export '%s' references undeclared resource '%s'", name, v.Ref.Node))
		}
	}
	t.Exports = append(t.Exports, Export{Name: name, Value: v})
}

// Lookup returns the resource with the given ID, or nil.
func (t *Topology) Lookup(id string) *Resource {
	return t.byID[id]
}

// Graph builds the dependency graph of the topology: one node per resource,
// one edge per ref or explicit dependency. The graph is cycle-checked
// before being returned.
func (t *Topology) Graph() (*dag.Graph, error) {
	g := dag.New()
	for _, r := range t.Resources {
		g.AddNode(r.ID)
	}
	for _, r := range t.Resources {
		for _, ref := range r.Spec.References() {
			if ref.Node == r.ID {
				continue
			}
			if err := g.AddEdge(ref.Node, r.ID); err != nil {
				return nil, fmt.Errorf("resource '%s': %w", r.ID, err)
			}
		}
		for _, dep := range r.DependsOn {
			if err := g.AddEdge(dep, r.ID); err != nil {
				return nil, fmt.Errorf("resource '%s': %w", r.ID, err)
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	return g, nil
}

// SortedResources returns the resources in a deterministic dependency order:
// every resource appears after everything it references.
func (t *Topology) SortedResources() ([]*Resource, error) {
	g, err := t.Graph()
	if err != nil {
		return nil, err
	}
	ids, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	sorted := make([]*Resource, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, t.byID[id])
	}
	return sorted, nil
}

// Validate checks the structural integrity of the topology without applying
// it: graph acyclicity, ref targets, and ref attribute names.
func (t *Topology) Validate() error {
	if t.Identifier == "" {
		return fmt.Errorf("topology has no identifier")
	}
	for _, r := range t.Resources {
		for _, ref := range r.Spec.References() {
			switch ref.Attr {
			case AttrARN, AttrID, AttrName:
			default:
				return fmt.Errorf("resource '%s': ref to '%s' uses unknown attribute '%s'", r.ID, ref.Node, ref.Attr)
			}
		}
	}
	_, err := t.Graph()
	return err
}
