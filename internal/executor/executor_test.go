package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/builder"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

func testTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := builder.Assemble(context.Background(), builder.Inputs{
		Identifier:        "test1",
		SecretARN:         "arn:aws:secretsmanager:us-west-2:123456789012:secret:tok",
		AgentLabels:       "dev",
		AvailabilityZones: []string{"us-west-2a", "us-west-2b", "us-west-2c"},
	})
	require.NoError(t, err)
	return topo
}

func TestApplyCreatesInDependencyOrder(t *testing.T) {
	topo := testTopology(t)
	rec := engine.NewRecorder()

	result, err := New(topo, rec).Apply(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Handles, len(topo.Resources))

	pos := map[string]int{}
	for i, id := range rec.CreationOrder() {
		pos[id] = i
	}

	// Spot-check the ordering constraints the graph encodes.
	assert.Less(t, pos["bakery-vpc-test1"], pos["prefect-security-group-test1"])
	assert.Less(t, pos["prefect-security-group-test1"], pos["dask-security-group-test1"])
	assert.Less(t, pos["bakery-cluster-test1"], pos["prefect-ecs-agent-task-definition-test1"])
	assert.Less(t, pos["prefect-ecs-task-role-test1"], pos["prefect-ecs-agent-task-definition-test1"])
	assert.Less(t, pos["prefect-ecs-agent-task-definition-test1"], pos["prefect-ecs-agent-service-test1"])
}

func TestApplyPassesDependencyHandles(t *testing.T) {
	topo := testTopology(t)
	rec := engine.NewRecorder()

	_, err := New(topo, rec).Apply(context.Background())
	require.NoError(t, err)

	var serviceRecord *engine.Record
	for i := range rec.Created {
		if rec.Created[i].Resource.ID == "prefect-ecs-agent-service-test1" {
			serviceRecord = &rec.Created[i]
		}
	}
	require.NotNil(t, serviceRecord)
	assert.Contains(t, serviceRecord.Deps, "bakery-cluster-test1")
	assert.Contains(t, serviceRecord.Deps, "prefect-ecs-agent-task-definition-test1")
	assert.Contains(t, serviceRecord.Deps, "prefect-security-group-test1")
}

func TestApplyResolvesExports(t *testing.T) {
	topo := testTopology(t)
	rec := engine.NewRecorder()

	result, err := New(topo, rec).Apply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:mock:::prefect-ecs-task-role-test1", result.Exports["prefect-task-role-arn-output-test1"])
	assert.Equal(t, "arn:aws:mock:::bakery-cluster-test1", result.Exports["prefect-cluster-arn-output-test1"])
	assert.Equal(t, "flow-storage-bucket-test1", result.Exports["prefect-storage-bucket-name-output-test1"])
	assert.Equal(t, "flow-cache-bucket-test1", result.Exports["prefect-cache-bucket-name-output-test1"])
	assert.Equal(t, "mock-bakery-vpc-test1", result.Exports["prefect-vpc-output-test1"])
	assert.Equal(t, "mock-bakery-vpc-public-subnet-0-test1", result.Exports["prefect-public-subnet-0-output-test1"])
	assert.Len(t, result.Exports, 11)
}

func TestApplyIsDeterministic(t *testing.T) {
	first := engine.NewRecorder()
	_, err := New(testTopology(t), first).Apply(context.Background())
	require.NoError(t, err)

	second := engine.NewRecorder()
	_, err = New(testTopology(t), second).Apply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.CreationOrder(), second.CreationOrder())
}

func TestApplySurfacesEngineFailures(t *testing.T) {
	topo := testTopology(t)
	boom := errors.New("quota exceeded")
	eng := &failingEngine{failOn: "bakery-cluster-test1", err: boom}

	_, err := New(topo, eng).Apply(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "bakery-cluster-test1")
}

func TestDestroyReversesCreationOrder(t *testing.T) {
	topo := testTopology(t)
	rec := engine.NewRecorder()
	exec := New(topo, rec)

	_, err := exec.Apply(context.Background())
	require.NoError(t, err)
	require.NoError(t, exec.Destroy(context.Background()))

	created := rec.CreationOrder()
	require.Len(t, rec.Deleted, len(created))
	for i, id := range rec.Deleted {
		assert.Equal(t, created[len(created)-1-i], id)
	}
}

// failingEngine fails creation of a single resource and creates nothing else.
type failingEngine struct {
	failOn string
	err    error
}

func (f *failingEngine) CreateResource(_ context.Context, res *topology.Resource, _ map[string]engine.Handle) (engine.Handle, error) {
	if res.ID == f.failOn {
		return engine.Handle{}, f.err
	}
	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrARN:  "arn:aws:mock:::" + res.ID,
		topology.AttrID:   "mock-" + res.ID,
		topology.AttrName: res.ID,
	}}, nil
}

func (f *failingEngine) DeleteResource(context.Context, *topology.Resource, engine.Handle) error {
	return nil
}
