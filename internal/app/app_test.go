package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/config"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
)

const testSecretARN = "arn:aws:secretsmanager:us-west-2:000011112222:secret:prefect-runner-token-AbCdEf"

func setTestEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("RUNNER_TOKEN_SECRET_ARN", testSecretARN)
	t.Setenv("PREFECT_AGENT_LABELS", `["test"]`)
	t.Setenv("AWS_REGION", "us-west-2")
}

func newTestConfig(command string) *Config {
	return &Config{
		Command:    command,
		Identifier: "test",
		Engine:     EngineAWS,
		LogFormat:  "text",
		LogLevel:   "error",
	}
}

func TestNewConfigRejectsUnknownCommand(t *testing.T) {
	_, err := NewConfig(Config{Command: "deploy", Engine: EngineAWS})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deploy")
}

func TestNewConfigRejectsUnknownEngine(t *testing.T) {
	_, err := NewConfig(Config{Command: CommandSynth, Engine: "gcp"})
	require.Error(t, err)
}

func TestSynthWritesDeterministicDocument(t *testing.T) {
	setTestEnvironment(t)

	var first, second bytes.Buffer
	for _, out := range []*bytes.Buffer{&first, &second} {
		a := NewApp(out, &bytes.Buffer{}, newTestConfig(CommandSynth), nil)
		require.NoError(t, a.Run(context.Background()))
	}
	assert.Equal(t, first.String(), second.String())

	var doc struct {
		Identifier string `json:"identifier"`
		Resources  []struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"resources"`
		Exports []struct {
			Name string `json:"name"`
		} `json:"exports"`
	}
	require.NoError(t, json.Unmarshal(first.Bytes(), &doc))

	assert.Equal(t, "test", doc.Identifier)
	assert.Len(t, doc.Resources, 14)
	assert.Len(t, doc.Exports, 11)

	// Dependency order: the VPC precedes every subnet.
	position := map[string]int{}
	for i, res := range doc.Resources {
		position[res.ID] = i
	}
	require.Contains(t, position, "bakery-vpc-test")
	assert.Less(t, position["bakery-vpc-test"], position["bakery-vpc-public-subnet-0-test"])
}

func TestApplyResolvesExports(t *testing.T) {
	setTestEnvironment(t)

	rec := engine.NewRecorder()
	var out bytes.Buffer
	a := NewApp(&out, &bytes.Buffer{}, newTestConfig(CommandApply), rec)
	require.NoError(t, a.Run(context.Background()))

	assert.Len(t, rec.Created, 14)

	var exports map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &exports))
	assert.Equal(t, "arn:aws:mock:::prefect-ecs-task-role-test", exports["prefect-task-role-arn-output-test"])
	assert.Len(t, exports, 11)
}

func TestDestroyTearsDownInReverseOrder(t *testing.T) {
	setTestEnvironment(t)

	rec := engine.NewRecorder()
	a := NewApp(&bytes.Buffer{}, &bytes.Buffer{}, newTestConfig(CommandDestroy), rec)
	require.NoError(t, a.Run(context.Background()))

	require.Len(t, rec.Deleted, 14)
	// Reverse dependency order: the VPC is torn down after its subnets.
	position := map[string]int{}
	for i, id := range rec.Deleted {
		position[id] = i
	}
	assert.Greater(t, position["bakery-vpc-test"], position["bakery-vpc-public-subnet-0-test"])
}

func TestRunFailsFastOnMissingEnvironment(t *testing.T) {
	t.Setenv("RUNNER_TOKEN_SECRET_ARN", "placeholder")
	os.Unsetenv("RUNNER_TOKEN_SECRET_ARN")
	t.Setenv("PREFECT_AGENT_LABELS", `["test"]`)

	rec := engine.NewRecorder()
	a := NewApp(&bytes.Buffer{}, &bytes.Buffer{}, newTestConfig(CommandApply), rec)
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingInput))
	assert.Empty(t, rec.Created)
}

func TestManifestOverridesInputs(t *testing.T) {
	setTestEnvironment(t)

	path := filepath.Join(t.TempDir(), "bakery.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
bakery {
  identifier         = "staging"
  availability_zones = ["us-west-2a"]
}
`), 0o644))

	cfg := newTestConfig(CommandSynth)
	cfg.ManifestPath = path

	var out bytes.Buffer
	a := NewApp(&out, &bytes.Buffer{}, cfg, nil)
	require.NoError(t, a.Run(context.Background()))

	var doc struct {
		Identifier string `json:"identifier"`
		Exports    []struct {
			Name string `json:"name"`
		} `json:"exports"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "staging", doc.Identifier)
	// One zone, one subnet export: 9 exports total.
	assert.Len(t, doc.Exports, 9)
}
