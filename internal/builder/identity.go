package builder

import (
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/config"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/naming"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// identityResources holds the declared roles and the secret reference.
type identityResources struct {
	TaskRole          *topology.Resource
	TaskExecutionRole *topology.Resource
	Secret            *topology.Resource
}

// readWriteGrant is the additive statement granting a role read-write access
// to one bucket and its contents.
func readWriteGrant(bucketName string) topology.PolicyStatement {
	bucketARN := "arn:aws:s3:::" + bucketName
	return topology.PolicyStatement{
		Effect:    "Allow",
		Actions:   []string{"s3:GetObject", "s3:PutObject", "s3:DeleteObject", "s3:ListBucket"},
		Resources: []string{bucketARN, bucketARN + "/*"},
	}
}

// declareIdentity declares the task role the agent runs as, the execution
// role the platform uses on the task's behalf, and the read-only reference
// to the runner token secret. Policy statements are additive only; nothing
// is revoked after creation.
func declareIdentity(topo *topology.Topology, in Inputs, storage storageResources) identityResources {
	taskRole := topo.Add(
		naming.Name(naming.KindTaskRole, in.Identifier),
		topology.KindRole,
		topology.RoleSpec{
			AssumedBy: ecsTasksPrincipal,
			InlineStatements: []topology.PolicyStatement{
				{
					// Wide scope preserved verbatim as documented policy.
					Effect:    "Allow",
					Actions:   []string{"iam:ListRoleTags"},
					Resources: []string{"*"},
				},
				{
					Effect:    "Allow",
					Actions:   []string{"logs:GetLogEvents"},
					Resources: []string{workerLogGroupPattern},
				},
				readWriteGrant(storage.Storage.ID),
				readWriteGrant(storage.Cache.ID),
			},
			ManagedPolicyARNs: []string{managedECSFullAccess},
		},
	)

	taskExecutionRole := topo.Add(
		naming.Name(naming.KindTaskExecutionRole, in.Identifier),
		topology.KindRole,
		topology.RoleSpec{
			AssumedBy:         ecsTasksPrincipal,
			ManagedPolicyARNs: []string{managedTaskExecutionRole},
		},
	)

	// The secret is externally managed: this node only constructs the
	// injectable reference used at container-launch time, never the value.
	secret := topo.Add(
		naming.Name(naming.KindRunnerTokenSecret, in.Identifier),
		topology.KindSecretRef,
		topology.SecretRefSpec{
			SecretARN: in.SecretARN,
			Field:     config.SecretField,
		},
	)

	return identityResources{
		TaskRole:          taskRole,
		TaskExecutionRole: taskExecutionRole,
		Secret:            secret,
	}
}
