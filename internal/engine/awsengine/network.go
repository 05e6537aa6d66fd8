package awsengine

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/ctxlog"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

func (e *Engine) createVPC(ctx context.Context, res *topology.Resource) (engine.Handle, error) {
	logger := ctxlog.FromContext(ctx).With("resource", res.ID, "run", e.runID)
	spec := res.Spec.(topology.VPCSpec)

	out, err := e.ec2.CreateVpcWithContext(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(spec.CIDR),
	})
	if err != nil {
		return engine.Handle{}, err
	}
	vpcID := aws.StringValue(out.Vpc.VpcId)
	logger.Info("VPC created, waiting for it to become available.", "vpc", vpcID)

	describe := &ec2.DescribeVpcsInput{VpcIds: []*string{out.Vpc.VpcId}}
	if err := e.ec2.WaitUntilVpcExistsWithContext(ctx, describe); err != nil {
		return engine.Handle{}, fmt.Errorf("waiting for VPC to exist: %w", err)
	}
	if err := e.ec2.WaitUntilVpcAvailableWithContext(ctx, describe); err != nil {
		return engine.Handle{}, fmt.Errorf("waiting for VPC to become available: %w", err)
	}

	if spec.EnableDNSSupport {
		_, err = e.ec2.ModifyVpcAttributeWithContext(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:            out.Vpc.VpcId,
			EnableDnsSupport: &ec2.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return engine.Handle{}, err
		}
	}
	if spec.EnableDNSHostnames {
		_, err = e.ec2.ModifyVpcAttributeWithContext(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              out.Vpc.VpcId,
			EnableDnsHostnames: &ec2.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return engine.Handle{}, err
		}
	}

	_, err = e.ec2.CreateTagsWithContext(ctx, &ec2.CreateTagsInput{
		Resources: []*string{out.Vpc.VpcId},
		Tags:      nameTag(res.ID),
	})
	if err != nil {
		return engine.Handle{}, err
	}

	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrID:   vpcID,
		topology.AttrName: res.ID,
	}}, nil
}

// ensureRouting creates the internet gateway and public route table of a
// VPC on first use. All public subnets share them: the stack has direct
// egress only, no NAT path.
func (e *Engine) ensureRouting(ctx context.Context, vpcID string) (*vpcRouting, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.routing[vpcID]; ok {
		return r, nil
	}

	igw, err := e.ec2.CreateInternetGatewayWithContext(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return nil, err
	}
	_, err = e.ec2.AttachInternetGatewayWithContext(ctx, &ec2.AttachInternetGatewayInput{
		VpcId:             aws.String(vpcID),
		InternetGatewayId: igw.InternetGateway.InternetGatewayId,
	})
	if err != nil {
		return nil, err
	}

	routeTable, err := e.ec2.CreateRouteTableWithContext(ctx, &ec2.CreateRouteTableInput{
		VpcId: aws.String(vpcID),
	})
	if err != nil {
		return nil, err
	}
	_, err = e.ec2.CreateRouteWithContext(ctx, &ec2.CreateRouteInput{
		RouteTableId:         routeTable.RouteTable.RouteTableId,
		DestinationCidrBlock: aws.String("0.0.0.0/0"),
		GatewayId:            igw.InternetGateway.InternetGatewayId,
	})
	if err != nil {
		return nil, err
	}

	r := &vpcRouting{
		internetGatewayID: aws.StringValue(igw.InternetGateway.InternetGatewayId),
		routeTableID:      aws.StringValue(routeTable.RouteTable.RouteTableId),
	}
	e.routing[vpcID] = r
	return r, nil
}

func (e *Engine) createSubnet(ctx context.Context, res *topology.Resource, deps map[string]engine.Handle) (engine.Handle, error) {
	spec := res.Spec.(topology.SubnetSpec)
	vpcID, err := engine.ResolveRef(spec.VPC, deps)
	if err != nil {
		return engine.Handle{}, err
	}

	out, err := e.ec2.CreateSubnetWithContext(ctx, &ec2.CreateSubnetInput{
		VpcId:            aws.String(vpcID),
		CidrBlock:        aws.String(spec.CIDR),
		AvailabilityZone: aws.String(spec.AvailabilityZone),
	})
	if err != nil {
		return engine.Handle{}, err
	}
	subnetID := aws.StringValue(out.Subnet.SubnetId)

	if spec.MapPublicIPOnLaunch {
		_, err = e.ec2.ModifySubnetAttributeWithContext(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            out.Subnet.SubnetId,
			MapPublicIpOnLaunch: &ec2.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return engine.Handle{}, err
		}

		routing, err := e.ensureRouting(ctx, vpcID)
		if err != nil {
			return engine.Handle{}, err
		}
		_, err = e.ec2.AssociateRouteTableWithContext(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: aws.String(routing.routeTableID),
			SubnetId:     out.Subnet.SubnetId,
		})
		if err != nil {
			return engine.Handle{}, err
		}
	}

	_, err = e.ec2.CreateTagsWithContext(ctx, &ec2.CreateTagsInput{
		Resources: []*string{out.Subnet.SubnetId},
		Tags:      nameTag(res.ID),
	})
	if err != nil {
		return engine.Handle{}, err
	}

	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrID:   subnetID,
		topology.AttrName: res.ID,
		// Carried for the service's target group, which needs the VPC.
		attrVPC: vpcID,
	}}, nil
}

func (e *Engine) createSecurityGroup(ctx context.Context, res *topology.Resource, deps map[string]engine.Handle) (engine.Handle, error) {
	spec := res.Spec.(topology.SecurityGroupSpec)
	vpcID, err := engine.ResolveRef(spec.VPC, deps)
	if err != nil {
		return engine.Handle{}, err
	}

	out, err := e.ec2.CreateSecurityGroupWithContext(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(res.ID),
		Description: aws.String(spec.Description),
		VpcId:       aws.String(vpcID),
	})
	if err != nil {
		return engine.Handle{}, err
	}
	groupID := aws.StringValue(out.GroupId)

	for _, rule := range spec.Ingress {
		sourceID := groupID // self-referential rule
		if rule.SourceGroup.Node != res.ID {
			sourceID, err = engine.ResolveRef(rule.SourceGroup, deps)
			if err != nil {
				return engine.Handle{}, err
			}
		}

		permission := &ec2.IpPermission{
			IpProtocol:       aws.String(rule.Protocol),
			UserIdGroupPairs: []*ec2.UserIdGroupPair{{GroupId: aws.String(sourceID)}},
		}
		if rule.Protocol != "-1" {
			permission.FromPort = aws.Int64(int64(rule.FromPort))
			permission.ToPort = aws.Int64(int64(rule.ToPort))
		}
		_, err = e.ec2.AuthorizeSecurityGroupIngressWithContext(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []*ec2.IpPermission{permission},
		})
		if err != nil {
			return engine.Handle{}, err
		}
	}

	_, err = e.ec2.CreateTagsWithContext(ctx, &ec2.CreateTagsInput{
		Resources: []*string{out.GroupId},
		Tags:      nameTag(res.ID),
	})
	if err != nil {
		return engine.Handle{}, err
	}

	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrID:   groupID,
		topology.AttrName: res.ID,
	}}, nil
}

func (e *Engine) deleteSubnet(ctx context.Context, res *topology.Resource) error {
	out, err := e.ec2.DescribeSubnetsWithContext(ctx, &ec2.DescribeSubnetsInput{
		Filters: []*ec2.Filter{{Name: aws.String("tag:Name"), Values: []*string{aws.String(res.ID)}}},
	})
	if err != nil {
		return err
	}
	for _, subnet := range out.Subnets {
		if _, err := e.ec2.DeleteSubnetWithContext(ctx, &ec2.DeleteSubnetInput{SubnetId: subnet.SubnetId}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) deleteSecurityGroup(ctx context.Context, res *topology.Resource) error {
	out, err := e.ec2.DescribeSecurityGroupsWithContext(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []*ec2.Filter{{Name: aws.String("group-name"), Values: []*string{aws.String(res.ID)}}},
	})
	if err != nil {
		return err
	}
	for _, group := range out.SecurityGroups {
		if _, err := e.ec2.DeleteSecurityGroupWithContext(ctx, &ec2.DeleteSecurityGroupInput{GroupId: group.GroupId}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) deleteVPC(ctx context.Context, res *topology.Resource) error {
	vpcs, err := e.ec2.DescribeVpcsWithContext(ctx, &ec2.DescribeVpcsInput{
		Filters: []*ec2.Filter{{Name: aws.String("tag:Name"), Values: []*string{aws.String(res.ID)}}},
	})
	if err != nil {
		return err
	}

	for _, vpc := range vpcs.Vpcs {
		gateways, err := e.ec2.DescribeInternetGatewaysWithContext(ctx, &ec2.DescribeInternetGatewaysInput{
			Filters: []*ec2.Filter{{Name: aws.String("attachment.vpc-id"), Values: []*string{vpc.VpcId}}},
		})
		if err != nil {
			return err
		}
		for _, gateway := range gateways.InternetGateways {
			_, err = e.ec2.DetachInternetGatewayWithContext(ctx, &ec2.DetachInternetGatewayInput{
				InternetGatewayId: gateway.InternetGatewayId,
				VpcId:             vpc.VpcId,
			})
			if err != nil {
				return err
			}
			_, err = e.ec2.DeleteInternetGatewayWithContext(ctx, &ec2.DeleteInternetGatewayInput{
				InternetGatewayId: gateway.InternetGatewayId,
			})
			if err != nil {
				return err
			}
		}

		tables, err := e.ec2.DescribeRouteTablesWithContext(ctx, &ec2.DescribeRouteTablesInput{
			Filters: []*ec2.Filter{{Name: aws.String("vpc-id"), Values: []*string{vpc.VpcId}}},
		})
		if err != nil {
			return err
		}
		for _, table := range tables.RouteTables {
			main := false
			for _, assoc := range table.Associations {
				if aws.BoolValue(assoc.Main) {
					main = true
				}
			}
			if main {
				continue
			}
			if _, err := e.ec2.DeleteRouteTableWithContext(ctx, &ec2.DeleteRouteTableInput{RouteTableId: table.RouteTableId}); err != nil {
				return err
			}
		}

		if _, err := e.ec2.DeleteVpcWithContext(ctx, &ec2.DeleteVpcInput{VpcId: vpc.VpcId}); err != nil {
			return err
		}
	}
	return nil
}
