package awsengine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/ecs/ecsiface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

type fakeSTS struct {
	stsiface.STSAPI
	account string
	calls   int
}

func (f *fakeSTS) GetCallerIdentityWithContext(aws.Context, *sts.GetCallerIdentityInput, ...request.Option) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

type fakeECS struct {
	ecsiface.ECSAPI
	registered *ecs.RegisterTaskDefinitionInput
}

func (f *fakeECS) RegisterTaskDefinitionWithContext(_ aws.Context, in *ecs.RegisterTaskDefinitionInput, _ ...request.Option) (*ecs.RegisterTaskDefinitionOutput, error) {
	f.registered = in
	return &ecs.RegisterTaskDefinitionOutput{
		TaskDefinition: &ecs.TaskDefinition{
			TaskDefinitionArn: aws.String("arn:aws:ecs:us-west-2:000011112222:task-definition/" + aws.StringValue(in.Family) + ":1"),
		},
	}, nil
}

func TestAssumeRolePolicy(t *testing.T) {
	doc, err := assumeRolePolicy("ecs-tasks.amazonaws.com")
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	assert.Equal(t, "2012-10-17", parsed["Version"])

	statements := parsed["Statement"].([]any)
	require.Len(t, statements, 1)
	statement := statements[0].(map[string]any)
	assert.Equal(t, "Allow", statement["Effect"])
	assert.Equal(t, map[string]any{"Service": "ecs-tasks.amazonaws.com"}, statement["Principal"])
}

func TestInlinePolicy(t *testing.T) {
	doc, err := inlinePolicy([]topology.PolicyStatement{
		{Effect: "Allow", Actions: []string{"iam:ListRoleTags"}, Resources: []string{"*"}},
		{Effect: "Allow", Actions: []string{"logs:GetLogEvents"}, Resources: []string{"arn:aws:logs:*:*:log-group:dask-ecs*"}},
	})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	statements := parsed["Statement"].([]any)
	require.Len(t, statements, 2)
	first := statements[0].(map[string]any)
	assert.Equal(t, []any{"iam:ListRoleTags"}, first["Action"])
	assert.Equal(t, []any{"*"}, first["Resource"])
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "prefect-agent", shortName("prefect-agent", 32))
	assert.Len(t, shortName("prefect-agent-service-with-a-very-long-identifier", 32), 32)
	// A truncation landing on a dash trims it.
	assert.Equal(t, "abc", shortName("abc-def", 4))
}

func TestResolveImage(t *testing.T) {
	stsc := &fakeSTS{account: "000011112222"}
	e := NewWithClients("us-west-2", nil, nil, nil, nil, nil, nil, stsc)

	t.Run("bare repository name expands to the caller's registry", func(t *testing.T) {
		uri, err := e.resolveImage(context.Background(), "pangeo-forge-aws-bakery-agent")
		require.NoError(t, err)
		assert.Equal(t, "000011112222.dkr.ecr.us-west-2.amazonaws.com/pangeo-forge-aws-bakery-agent", uri)
	})

	t.Run("qualified image passes through", func(t *testing.T) {
		uri, err := e.resolveImage(context.Background(), "docker.io/prefecthq/prefect:latest")
		require.NoError(t, err)
		assert.Equal(t, "docker.io/prefecthq/prefect:latest", uri)
	})

	t.Run("account is resolved once", func(t *testing.T) {
		_, err := e.resolveImage(context.Background(), "another-repo")
		require.NoError(t, err)
		assert.Equal(t, 1, stsc.calls)
	})
}

func TestRegisterTaskDefinition(t *testing.T) {
	ecsc := &fakeECS{}
	stsc := &fakeSTS{account: "000011112222"}
	e := NewWithClients("us-west-2", nil, nil, nil, ecsc, nil, nil, stsc)

	res := &topology.Resource{
		ID:   "prefect-task-definition-test",
		Kind: topology.KindTaskDefinition,
		Spec: topology.TaskDefinitionSpec{
			CPU:           512,
			MemoryMiB:     2048,
			TaskRole:      topology.Ref{Node: "prefect-task-role-test", Attr: topology.AttrARN},
			ExecutionRole: topology.Ref{Node: "prefect-execution-role-test", Attr: topology.AttrARN},
			Container: topology.ContainerSpec{
				Name:         "agent",
				Image:        "pangeo-forge-aws-bakery-agent",
				PortMappings: []topology.PortMapping{{ContainerPort: 8080, HostPort: 8080}},
				Logging:      topology.LogConfig{Driver: "awslogs", StreamPrefix: "ecs-agent"},
				Environment:  map[string]string{"PREFECT__CLOUD__AGENT__LABELS": `["test"]`},
				Secrets: []topology.SecretBinding{{
					EnvName: "PREFECT__CLOUD__AGENT__AUTH_TOKEN",
					Secret:  topology.Ref{Node: "prefect-secret-test", Attr: topology.AttrARN},
					Field:   "RUNNER_TOKEN",
				}},
				Command: []topology.Value{
					topology.String("--cluster"),
					topology.RefValue("bakery-cluster-test", topology.AttrARN),
				},
			},
		},
	}
	deps := map[string]engine.Handle{
		"prefect-task-role-test":      {NodeID: "prefect-task-role-test", Attrs: map[string]string{topology.AttrARN: "arn:aws:iam::000011112222:role/task"}},
		"prefect-execution-role-test": {NodeID: "prefect-execution-role-test", Attrs: map[string]string{topology.AttrARN: "arn:aws:iam::000011112222:role/exec"}},
		"prefect-secret-test":         {NodeID: "prefect-secret-test", Attrs: map[string]string{topology.AttrARN: "arn:aws:secretsmanager:us-west-2:000011112222:secret:tok"}},
		"bakery-cluster-test":         {NodeID: "bakery-cluster-test", Attrs: map[string]string{topology.AttrARN: "arn:aws:ecs:us-west-2:000011112222:cluster/bakery-cluster-test"}},
	}

	h, err := e.registerTaskDefinition(context.Background(), res, deps)
	require.NoError(t, err)

	in := ecsc.registered
	require.NotNil(t, in)
	assert.Equal(t, "prefect-task-definition-test", aws.StringValue(in.Family))
	assert.Equal(t, "512", aws.StringValue(in.Cpu))
	assert.Equal(t, "2048", aws.StringValue(in.Memory))
	assert.Equal(t, "awsvpc", aws.StringValue(in.NetworkMode))
	require.Len(t, in.ContainerDefinitions, 1)

	container := in.ContainerDefinitions[0]
	assert.Equal(t, "000011112222.dkr.ecr.us-west-2.amazonaws.com/pangeo-forge-aws-bakery-agent", aws.StringValue(container.Image))
	require.Len(t, container.Secrets, 1)
	assert.Equal(t, "arn:aws:secretsmanager:us-west-2:000011112222:secret:tok:RUNNER_TOKEN::",
		aws.StringValue(container.Secrets[0].ValueFrom))
	require.Len(t, container.Command, 2)
	assert.Equal(t, "--cluster", aws.StringValue(container.Command[0]))
	assert.Equal(t, "arn:aws:ecs:us-west-2:000011112222:cluster/bakery-cluster-test", aws.StringValue(container.Command[1]))
	assert.Equal(t, "true", aws.StringValue(container.LogConfiguration.Options["awslogs-create-group"]))

	name, ok := h.Attr(attrContainerName)
	require.True(t, ok)
	assert.Equal(t, "agent", name)
	port, ok := h.Attr(attrContainerPort)
	require.True(t, ok)
	assert.Equal(t, "8080", port)
}
