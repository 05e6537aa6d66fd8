/*
Package builder assembles the resource topology of one bakery stack. It is
the bridge between the stack's inputs (identifier, environment, manifest
overrides) and the declarative model in the 'topology' package.

Assembly is a strictly ordered, single-pass construction:

 1. Storage: the flow and cache buckets, ephemeral by design.

 2. Network: the VPC, one public subnet per availability zone, and the two
    security groups. The agent group is declared before the worker group so
    the worker group's cross-group ingress rule can reference it.

 3. Identity: the task role with its inline statements, bucket grants and
    managed policy, the task execution role, and the read-only reference to
    the runner token secret.

 4. Compute: the cluster, the agent task definition (whose command embeds
    refs to the cluster ARN and task role ARN), and the agent service.

 5. Exports: one named output per externally consumable resource.

Every cross-resource value is a typed ref, and the topology validates that
refs only point backwards, so a dependency-order violation is
unrepresentable rather than checked at run time. Assembly is deterministic
and side-effect-free: the same inputs always produce a structurally
identical topology.
*/
package builder
