// Package topology defines the declarative model of a bakery stack: typed
// resource declarations, references between them, and the export map
// published for downstream stacks.
//
// A Topology is assembled once, synchronously, by the builder package. Every
// cross-resource value is a Ref naming the source node and the attribute to
// read from its created handle; each Ref becomes a validated edge in the
// underlying dependency graph. Nothing in this package talks to a cloud
// control plane — creating the declared resources is the job of an engine.
package topology
