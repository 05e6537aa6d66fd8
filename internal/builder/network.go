package builder

import (
	"fmt"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/naming"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// networkResources holds the declared network for later wiring.
type networkResources struct {
	VPC         *topology.Resource
	Subnets     []*topology.Resource
	AgentGroup  *topology.Resource
	WorkerGroup *topology.Resource
}

// allTraffic is the ingress rule port range covering every protocol and
// port. Broad by intent: isolation is provided by the VPC boundary, not
// port filtering, which trades fine-grained port security for simplicity.
func allTraffic(sourceGroup string) topology.IngressRule {
	return topology.IngressRule{
		SourceGroup: topology.Ref{Node: sourceGroup, Attr: topology.AttrID},
		Protocol:    "-1",
	}
}

// declareNetwork declares the VPC, its public subnets, and the two security
// groups. The agent group is declared first: the worker group's cross-group
// rule references it by identity, so the reverse order is unrepresentable.
func declareNetwork(topo *topology.Topology, in Inputs) networkResources {
	vpcName := naming.Name(naming.KindVPC, in.Identifier)
	vpc := topo.Add(vpcName, topology.KindVPC, topology.VPCSpec{
		CIDR:                vpcCIDR,
		EnableDNSSupport:    true,
		EnableDNSHostnames:  true,
		NATGateways:         0,
		MaxAvailabilityZone: maxAvailabilityZones,
	})
	vpcRef := topology.Ref{Node: vpcName, Attr: topology.AttrID}

	subnets := make([]*topology.Resource, 0, len(in.AvailabilityZones))
	for i, zone := range in.AvailabilityZones {
		subnets = append(subnets, topo.Add(
			naming.SubnetName(i, in.Identifier),
			topology.KindSubnet,
			topology.SubnetSpec{
				VPC:                 vpcRef,
				CIDR:                fmt.Sprintf("10.0.%d.0/24", i),
				AvailabilityZone:    zone,
				MapPublicIPOnLaunch: true,
			},
		))
	}

	agentName := naming.Name(naming.KindAgentSecurityGroup, in.Identifier)
	agent := topo.Add(agentName, topology.KindSecurityGroup, topology.SecurityGroupSpec{
		VPC:              vpcRef,
		Description:      "bakery agent security group " + in.Identifier,
		AllowAllOutbound: true,
		Ingress:          []topology.IngressRule{allTraffic(agentName)},
	})

	workerName := naming.Name(naming.KindWorkerSecurityGroup, in.Identifier)
	worker := topo.Add(workerName, topology.KindSecurityGroup, topology.SecurityGroupSpec{
		VPC:              vpcRef,
		Description:      "bakery worker security group " + in.Identifier,
		AllowAllOutbound: true,
		Ingress: []topology.IngressRule{
			allTraffic(workerName),
			allTraffic(agentName),
		},
	})

	return networkResources{VPC: vpc, Subnets: subnets, AgentGroup: agent, WorkerGroup: worker}
}
