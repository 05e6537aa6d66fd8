package awsengine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/google/uuid"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/ctxlog"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// Handle attributes the task definition carries forward for the service's
// load balancer wiring.
const (
	attrContainerName = "container"
	attrContainerPort = "port"
	attrVPC           = "vpc"
)

func (e *Engine) createCluster(ctx context.Context, res *topology.Resource) (engine.Handle, error) {
	out, err := e.ecs.CreateClusterWithContext(ctx, &ecs.CreateClusterInput{
		ClusterName: aws.String(res.ID),
	})
	if err != nil {
		return engine.Handle{}, err
	}
	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrARN:  aws.StringValue(out.Cluster.ClusterArn),
		topology.AttrName: res.ID,
	}}, nil
}

// resolveImage expands a bare repository name into the caller's ECR registry
// URI. Images that already carry a registry or tag pass through untouched.
func (e *Engine) resolveImage(ctx context.Context, image string) (string, error) {
	if strings.ContainsAny(image, "/:") {
		return image, nil
	}
	account, err := e.account(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s", account, e.region, image), nil
}

func (e *Engine) registerTaskDefinition(ctx context.Context, res *topology.Resource, deps map[string]engine.Handle) (engine.Handle, error) {
	spec := res.Spec.(topology.TaskDefinitionSpec)

	taskRoleARN, err := engine.ResolveRef(spec.TaskRole, deps)
	if err != nil {
		return engine.Handle{}, err
	}
	execRoleARN, err := engine.ResolveRef(spec.ExecutionRole, deps)
	if err != nil {
		return engine.Handle{}, err
	}

	container := spec.Container
	image, err := e.resolveImage(ctx, container.Image)
	if err != nil {
		return engine.Handle{}, err
	}

	var ports []*ecs.PortMapping
	for _, p := range container.PortMappings {
		ports = append(ports, &ecs.PortMapping{
			ContainerPort: aws.Int64(int64(p.ContainerPort)),
			HostPort:      aws.Int64(int64(p.HostPort)),
		})
	}

	// Sorted so the registered definition is byte-stable across runs.
	envNames := make([]string, 0, len(container.Environment))
	for name := range container.Environment {
		envNames = append(envNames, name)
	}
	sort.Strings(envNames)
	var envPairs []*ecs.KeyValuePair
	for _, name := range envNames {
		envPairs = append(envPairs, &ecs.KeyValuePair{
			Name:  aws.String(name),
			Value: aws.String(container.Environment[name]),
		})
	}

	var secretRefs []*ecs.Secret
	for _, binding := range container.Secrets {
		secretARN, err := engine.ResolveRef(binding.Secret, deps)
		if err != nil {
			return engine.Handle{}, err
		}
		// ARN:field:: selects one JSON field of the secret, latest version.
		secretRefs = append(secretRefs, &ecs.Secret{
			Name:      aws.String(binding.EnvName),
			ValueFrom: aws.String(secretARN + ":" + binding.Field + "::"),
		})
	}

	var command []*string
	for _, v := range container.Command {
		resolved, err := engine.ResolveValue(v, deps)
		if err != nil {
			return engine.Handle{}, err
		}
		command = append(command, aws.String(resolved))
	}

	out, err := e.ecs.RegisterTaskDefinitionWithContext(ctx, &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(res.ID),
		Cpu:                     aws.String(strconv.Itoa(spec.CPU)),
		Memory:                  aws.String(strconv.Itoa(spec.MemoryMiB)),
		NetworkMode:             aws.String(ecs.NetworkModeAwsvpc),
		RequiresCompatibilities: []*string{aws.String(ecs.CompatibilityFargate)},
		TaskRoleArn:             aws.String(taskRoleARN),
		ExecutionRoleArn:        aws.String(execRoleARN),
		ContainerDefinitions: []*ecs.ContainerDefinition{{
			Name:         aws.String(container.Name),
			Image:        aws.String(image),
			Essential:    aws.Bool(true),
			PortMappings: ports,
			Environment:  envPairs,
			Secrets:      secretRefs,
			Command:      command,
			LogConfiguration: &ecs.LogConfiguration{
				LogDriver: aws.String(container.Logging.Driver),
				Options: map[string]*string{
					"awslogs-group":         aws.String(res.ID),
					"awslogs-region":        aws.String(e.region),
					"awslogs-stream-prefix": aws.String(container.Logging.StreamPrefix),
					"awslogs-create-group":  aws.String("true"),
				},
			},
		}},
	})
	if err != nil {
		return engine.Handle{}, err
	}

	attrs := map[string]string{
		topology.AttrARN:  aws.StringValue(out.TaskDefinition.TaskDefinitionArn),
		topology.AttrName: res.ID,
		attrContainerName: container.Name,
	}
	if len(container.PortMappings) > 0 {
		attrs[attrContainerPort] = strconv.Itoa(container.PortMappings[0].ContainerPort)
	}
	return engine.Handle{NodeID: res.ID, Attrs: attrs}, nil
}

// createService stands up the agent service behind an internet-facing load
// balancer so the declared health endpoint is actually probed.
func (e *Engine) createService(ctx context.Context, res *topology.Resource, deps map[string]engine.Handle) (engine.Handle, error) {
	logger := ctxlog.FromContext(ctx).With("resource", res.ID, "run", e.runID)
	spec := res.Spec.(topology.ServiceSpec)

	clusterARN, err := engine.ResolveRef(spec.Cluster, deps)
	if err != nil {
		return engine.Handle{}, err
	}
	taskDefARN, err := engine.ResolveRef(spec.TaskDefinition, deps)
	if err != nil {
		return engine.Handle{}, err
	}

	var groupIDs []*string
	for _, ref := range spec.SecurityGroups {
		id, err := engine.ResolveRef(ref, deps)
		if err != nil {
			return engine.Handle{}, err
		}
		groupIDs = append(groupIDs, aws.String(id))
	}

	var subnetIDs []*string
	vpcID := ""
	for _, ref := range spec.Subnets {
		id, err := engine.ResolveRef(ref, deps)
		if err != nil {
			return engine.Handle{}, err
		}
		subnetIDs = append(subnetIDs, aws.String(id))
		if v, ok := deps[ref.Node].Attr(attrVPC); ok {
			vpcID = v
		}
	}
	if vpcID == "" {
		return engine.Handle{}, fmt.Errorf("no subnet handle carries the VPC for service '%s'", res.ID)
	}

	targetGroup, err := e.elb.CreateTargetGroupWithContext(ctx, &elbv2.CreateTargetGroupInput{
		Name:                aws.String(shortName(res.ID, 32)),
		Protocol:            aws.String(elbv2.ProtocolEnumHttp),
		Port:                aws.Int64(int64(spec.HealthCheck.Port)),
		VpcId:               aws.String(vpcID),
		TargetType:          aws.String(elbv2.TargetTypeEnumIp),
		HealthCheckPath:     aws.String(spec.HealthCheck.Path),
		HealthCheckProtocol: aws.String(elbv2.ProtocolEnumHttp),
	})
	if err != nil {
		return engine.Handle{}, err
	}
	targetGroupARN := targetGroup.TargetGroups[0].TargetGroupArn

	balancer, err := e.elb.CreateLoadBalancerWithContext(ctx, &elbv2.CreateLoadBalancerInput{
		Name:           aws.String(shortName(res.ID, 32)),
		Scheme:         aws.String(elbv2.LoadBalancerSchemeEnumInternetFacing),
		Type:           aws.String(elbv2.LoadBalancerTypeEnumApplication),
		Subnets:        subnetIDs,
		SecurityGroups: groupIDs,
	})
	if err != nil {
		return engine.Handle{}, err
	}
	balancerARN := balancer.LoadBalancers[0].LoadBalancerArn

	_, err = e.elb.CreateListenerWithContext(ctx, &elbv2.CreateListenerInput{
		LoadBalancerArn: balancerARN,
		Protocol:        aws.String(elbv2.ProtocolEnumHttp),
		Port:            aws.Int64(80),
		DefaultActions: []*elbv2.Action{{
			Type:           aws.String(elbv2.ActionTypeEnumForward),
			TargetGroupArn: targetGroupARN,
		}},
	})
	if err != nil {
		return engine.Handle{}, err
	}

	taskDefHandle := deps[spec.TaskDefinition.Node]
	containerName, ok := taskDefHandle.Attr(attrContainerName)
	if !ok {
		return engine.Handle{}, fmt.Errorf("task definition handle for service '%s' carries no container name", res.ID)
	}
	containerPort := int64(spec.HealthCheck.Port)
	if p, ok := taskDefHandle.Attr(attrContainerPort); ok {
		parsed, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return engine.Handle{}, fmt.Errorf("parsing container port %q: %w", p, err)
		}
		containerPort = parsed
	}

	assignIP := ecs.AssignPublicIpDisabled
	if spec.AssignPublicIP {
		assignIP = ecs.AssignPublicIpEnabled
	}

	out, err := e.ecs.CreateServiceWithContext(ctx, &ecs.CreateServiceInput{
		ServiceName:    aws.String(res.ID),
		Cluster:        aws.String(clusterARN),
		TaskDefinition: aws.String(taskDefARN),
		DesiredCount:   aws.Int64(int64(spec.DesiredCount)),
		LaunchType:     aws.String(ecs.LaunchTypeFargate),
		ClientToken:    aws.String(uuid.NewString()),
		NetworkConfiguration: &ecs.NetworkConfiguration{
			AwsvpcConfiguration: &ecs.AwsVpcConfiguration{
				Subnets:        subnetIDs,
				SecurityGroups: groupIDs,
				AssignPublicIp: aws.String(assignIP),
			},
		},
		LoadBalancers: []*ecs.LoadBalancer{{
			TargetGroupArn: targetGroupARN,
			ContainerName:  aws.String(containerName),
			ContainerPort:  aws.Int64(containerPort),
		}},
	})
	if err != nil {
		return engine.Handle{}, err
	}
	logger.Info("Service created.", "service", aws.StringValue(out.Service.ServiceArn))

	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrARN:  aws.StringValue(out.Service.ServiceArn),
		topology.AttrName: res.ID,
	}}, nil
}

func (e *Engine) deleteCluster(ctx context.Context, res *topology.Resource) error {
	_, err := e.ecs.DeleteClusterWithContext(ctx, &ecs.DeleteClusterInput{
		Cluster: aws.String(res.ID),
	})
	return err
}

// deregisterTaskDefinition retires every active revision of the family.
func (e *Engine) deregisterTaskDefinition(ctx context.Context, res *topology.Resource) error {
	out, err := e.ecs.ListTaskDefinitionsWithContext(ctx, &ecs.ListTaskDefinitionsInput{
		FamilyPrefix: aws.String(res.ID),
		Status:       aws.String(ecs.TaskDefinitionStatusActive),
	})
	if err != nil {
		return err
	}
	for _, arn := range out.TaskDefinitionArns {
		_, err = e.ecs.DeregisterTaskDefinitionWithContext(ctx, &ecs.DeregisterTaskDefinitionInput{
			TaskDefinition: arn,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) deleteService(ctx context.Context, res *topology.Resource) error {
	spec := res.Spec.(topology.ServiceSpec)

	_, err := e.ecs.DeleteServiceWithContext(ctx, &ecs.DeleteServiceInput{
		Cluster: aws.String(spec.Cluster.Node),
		Service: aws.String(res.ID),
		Force:   aws.Bool(true),
	})
	if err != nil {
		return err
	}

	balancers, err := e.elb.DescribeLoadBalancersWithContext(ctx, &elbv2.DescribeLoadBalancersInput{
		Names: []*string{aws.String(shortName(res.ID, 32))},
	})
	if err != nil {
		// The load balancer may never have been created; nothing to unwind.
		return nil
	}
	for _, balancer := range balancers.LoadBalancers {
		listeners, err := e.elb.DescribeListenersWithContext(ctx, &elbv2.DescribeListenersInput{
			LoadBalancerArn: balancer.LoadBalancerArn,
		})
		if err != nil {
			return err
		}
		for _, listener := range listeners.Listeners {
			_, err = e.elb.DeleteListenerWithContext(ctx, &elbv2.DeleteListenerInput{
				ListenerArn: listener.ListenerArn,
			})
			if err != nil {
				return err
			}
		}
		_, err = e.elb.DeleteLoadBalancerWithContext(ctx, &elbv2.DeleteLoadBalancerInput{
			LoadBalancerArn: balancer.LoadBalancerArn,
		})
		if err != nil {
			return err
		}
	}

	groups, err := e.elb.DescribeTargetGroupsWithContext(ctx, &elbv2.DescribeTargetGroupsInput{
		Names: []*string{aws.String(shortName(res.ID, 32))},
	})
	if err != nil {
		return nil
	}
	for _, group := range groups.TargetGroups {
		_, err = e.elb.DeleteTargetGroupWithContext(ctx, &elbv2.DeleteTargetGroupInput{
			TargetGroupArn: group.TargetGroupArn,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
