package builder

import (
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/naming"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// declareExports publishes the named outputs downstream stacks consume.
// Export names are derived from the identifier by the naming package and
// are the sole integration seam of the stack: consumers locate resources by
// export name only, never by direct reference.
func declareExports(topo *topology.Topology, in Inputs, storage storageResources, net networkResources, cluster *topology.Resource, identity identityResources) {
	export := func(kind naming.Kind, v topology.Value) {
		topo.AddExport(naming.Name(kind, in.Identifier), v)
	}

	export(naming.ExportTaskRoleARN, topology.RefValue(identity.TaskRole.ID, topology.AttrARN))
	export(naming.ExportClusterARN, topology.RefValue(cluster.ID, topology.AttrARN))

	// Bucket names are known at assembly time; everything else resolves at
	// apply time from the created handles.
	export(naming.ExportStorageBucketName, topology.String(storage.Storage.ID))
	export(naming.ExportCacheBucketName, topology.String(storage.Cache.ID))

	export(naming.ExportTaskExecutionRoleARN, topology.RefValue(identity.TaskExecutionRole.ID, topology.AttrARN))
	export(naming.ExportWorkerSecurityGroup, topology.RefValue(net.WorkerGroup.ID, topology.AttrID))
	export(naming.ExportAgentSecurityGroup, topology.RefValue(net.AgentGroup.ID, topology.AttrID))
	export(naming.ExportVPC, topology.RefValue(net.VPC.ID, topology.AttrID))

	for i, subnet := range net.Subnets {
		topo.AddExport(naming.SubnetExportName(i, in.Identifier), topology.RefValue(subnet.ID, topology.AttrID))
	}
}
