package naming

import "fmt"

// Kind identifies a class of resource or export whose name is derived from
// the stack identifier. The constants below are the public naming contract
// of a bakery stack: downstream stacks locate resources purely by these
// derived names, so they must stay stable across releases.
type Kind string

// Resource kinds.
const (
	KindStorageBucket       Kind = "flow-storage-bucket"
	KindCacheBucket         Kind = "flow-cache-bucket"
	KindVPC                 Kind = "bakery-vpc"
	KindAgentSecurityGroup  Kind = "prefect-security-group"
	KindWorkerSecurityGroup Kind = "dask-security-group"
	KindCluster             Kind = "bakery-cluster"
	KindTaskRole            Kind = "prefect-ecs-task-role"
	KindTaskExecutionRole   Kind = "prefect-ecs-task-execution-role"
	KindAgentTaskDefinition Kind = "prefect-ecs-agent-task-definition"
	KindAgentContainer      Kind = "prefect-ecs-agent-task-container"
	KindAgentService        Kind = "prefect-ecs-agent-service"
	KindRunnerTokenSecret   Kind = "prefect-cloud-runner-token"
	KindAgentRepository     Kind = "pangeo-forge-aws-bakery-agent-repo"
)

// Export kinds.
const (
	ExportTaskRoleARN          Kind = "prefect-task-role-arn-output"
	ExportClusterARN           Kind = "prefect-cluster-arn-output"
	ExportStorageBucketName    Kind = "prefect-storage-bucket-name-output"
	ExportCacheBucketName      Kind = "prefect-cache-bucket-name-output"
	ExportTaskExecutionRoleARN Kind = "prefect-task-execution-role-arn-output"
	ExportWorkerSecurityGroup  Kind = "prefect-dask-security-group-output"
	ExportAgentSecurityGroup   Kind = "prefect-prefect-security-group-output"
	ExportVPC                  Kind = "prefect-vpc-output"
)

// Name derives the globally unique name for a resource of the given kind in
// the stack identified by identifier. It is a pure function: the same inputs
// always yield the same name, and for any fixed kind two distinct
// identifiers never collide. Uniqueness across concurrently deployed stacks
// is the caller's responsibility, by choosing distinct identifiers.
func Name(kind Kind, identifier string) string {
	return string(kind) + "-" + identifier
}

// SubnetName derives the resource name for the public subnet at the given
// index. Subnets are the only per-index resources in the topology.
func SubnetName(index int, identifier string) string {
	return fmt.Sprintf("bakery-vpc-public-subnet-%d-%s", index, identifier)
}

// SubnetExportName derives the export name for the public subnet at the
// given index. Subnet exports are the only per-index names in the contract.
func SubnetExportName(index int, identifier string) string {
	return fmt.Sprintf("prefect-public-subnet-%d-output-%s", index, identifier)
}
