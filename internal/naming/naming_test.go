package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKinds = []Kind{
	KindStorageBucket,
	KindCacheBucket,
	KindVPC,
	KindAgentSecurityGroup,
	KindWorkerSecurityGroup,
	KindCluster,
	KindTaskRole,
	KindTaskExecutionRole,
	KindAgentTaskDefinition,
	KindAgentContainer,
	KindAgentService,
	KindRunnerTokenSecret,
	KindAgentRepository,
	ExportTaskRoleARN,
	ExportClusterARN,
	ExportStorageBucketName,
	ExportCacheBucketName,
	ExportTaskExecutionRoleARN,
	ExportWorkerSecurityGroup,
	ExportAgentSecurityGroup,
	ExportVPC,
}

func TestNameIsDeterministic(t *testing.T) {
	for _, kind := range allKinds {
		assert.Equal(t, Name(kind, "test1"), Name(kind, "test1"), "kind %s", kind)
	}
}

func TestNameIsInjective(t *testing.T) {
	seen := map[string]string{}
	for _, kind := range allKinds {
		for _, id := range []string{"test1", "test2", "prod", "a-b"} {
			name := Name(kind, id)
			key := string(kind) + "|" + id
			prev, dup := seen[name]
			require.False(t, dup, "name %q produced by both %q and %q", name, prev, key)
			seen[name] = key
		}
	}
}

func TestNameUsesIdentifierVerbatim(t *testing.T) {
	assert.Equal(t, "bakery-vpc-test1", Name(KindVPC, "test1"))
	assert.Equal(t, "prefect-task-role-arn-output-test1", Name(ExportTaskRoleARN, "test1"))
}

func TestDistinctIdentifiersNeverIntersect(t *testing.T) {
	first := map[string]struct{}{}
	for _, kind := range allKinds {
		first[Name(kind, "stack-a")] = struct{}{}
	}
	for _, kind := range allKinds {
		assert.NotContains(t, first, Name(kind, "stack-b"))
	}
}

func TestSubnetExportName(t *testing.T) {
	assert.Equal(t, "prefect-public-subnet-0-output-test1", SubnetExportName(0, "test1"))
	assert.Equal(t, "prefect-public-subnet-2-output-dev", SubnetExportName(2, "dev"))
	assert.NotEqual(t, SubnetExportName(1, "a"), SubnetExportName(1, "b"))
}
