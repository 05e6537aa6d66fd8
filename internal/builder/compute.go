package builder

import (
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/naming"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// declareCluster declares the stack's single compute placement group.
func declareCluster(topo *topology.Topology, in Inputs, net networkResources) *topology.Resource {
	return topo.Add(
		naming.Name(naming.KindCluster, in.Identifier),
		topology.KindCluster,
		topology.ClusterSpec{
			VPC: topology.Ref{Node: net.VPC.ID, Attr: topology.AttrID},
		},
	)
}

// declareCompute declares the agent task definition and the service running
// it. The task definition's command embeds refs to the cluster ARN and the
// task role ARN so the running agent can self-register workers into the
// correct cluster under the correct role.
func declareCompute(topo *topology.Topology, in Inputs, net networkResources, cluster *topology.Resource, identity identityResources) {
	taskDef := topo.Add(
		naming.Name(naming.KindAgentTaskDefinition, in.Identifier),
		topology.KindTaskDefinition,
		topology.TaskDefinitionSpec{
			CPU:           in.CPU,
			MemoryMiB:     in.MemoryMiB,
			TaskRole:      topology.Ref{Node: identity.TaskRole.ID, Attr: topology.AttrARN},
			ExecutionRole: topology.Ref{Node: identity.TaskExecutionRole.ID, Attr: topology.AttrARN},
			Container: topology.ContainerSpec{
				Name:  naming.Name(naming.KindAgentContainer, in.Identifier),
				Image: in.Image,
				PortMappings: []topology.PortMapping{
					{ContainerPort: agentPort, HostPort: agentPort},
				},
				Logging: topology.LogConfig{
					Driver:       "awslogs",
					StreamPrefix: logStreamPrefix,
				},
				Environment: map[string]string{
					agentLabelsEnvVar: in.AgentLabels,
				},
				Secrets: []topology.SecretBinding{
					{
						EnvName: agentTokenEnvVar,
						Secret:  topology.Ref{Node: identity.Secret.ID, Attr: topology.AttrARN},
						Field:   identity.Secret.Spec.(topology.SecretRefSpec).Field,
					},
				},
				Command: []topology.Value{
					topology.String("--cluster"),
					topology.RefValue(cluster.ID, topology.AttrARN),
					topology.String("--task-role-arn"),
					topology.RefValue(identity.TaskRole.ID, topology.AttrARN),
				},
			},
		},
	)

	securityGroups := []topology.Ref{
		{Node: net.AgentGroup.ID, Attr: topology.AttrID},
	}
	subnets := make([]topology.Ref, 0, len(net.Subnets))
	for _, s := range net.Subnets {
		subnets = append(subnets, topology.Ref{Node: s.ID, Attr: topology.AttrID})
	}

	topo.Add(
		naming.Name(naming.KindAgentService, in.Identifier),
		topology.KindService,
		topology.ServiceSpec{
			Cluster:        topology.Ref{Node: cluster.ID, Attr: topology.AttrARN},
			TaskDefinition: topology.Ref{Node: taskDef.ID, Attr: topology.AttrARN},
			SecurityGroups: securityGroups,
			Subnets:        subnets,
			AssignPublicIP: true,
			DesiredCount:   in.DesiredCount,
			HealthCheck: topology.HealthCheck{
				Path: healthCheckPath,
				Port: agentPort,
			},
		},
	)
}
