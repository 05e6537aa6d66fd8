// Package dag provides the directed acyclic graph underlying a resource
// topology. Nodes are identified by their unique resource names; a directed
// edge from A to B records that B cannot be created before A. The graph
// preserves insertion order so that topological sorting is deterministic:
// assembling the same stack twice yields the same creation order.
package dag
