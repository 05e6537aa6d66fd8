// Package engine defines the provisioning engine contract. The topology
// builder only emits a dependency-consistent declaration; physically
// creating resources is delegated to an Engine implementation, injected as
// a capability. This keeps the builder testable by recording emitted
// declarations without any live cloud dependency.
package engine
