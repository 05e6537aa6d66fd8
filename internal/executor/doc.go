// Package executor walks an assembled topology in dependency order and
// drives a provisioning engine over it. The executor itself is synchronous
// and sequential: ordering correctness comes from the topology's graph, and
// any parallelism is the engine's own business. Teardown visits resources
// in exact reverse creation order; engines locate existing resources by
// their deterministic names.
package executor
