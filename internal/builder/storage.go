package builder

import (
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/naming"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// storageResources holds the declared buckets for later wiring.
type storageResources struct {
	Storage *topology.Resource
	Cache   *topology.Resource
}

// declareStorage declares the flow storage and cache buckets. Both are
// ephemeral pipeline state, not production data stores: contents and bucket
// are destroyed on stack teardown.
func declareStorage(topo *topology.Topology, in Inputs) storageResources {
	spec := func(name string) topology.BucketSpec {
		return topology.BucketSpec{
			BucketName:        name,
			AutoDeleteObjects: true,
			RemovalPolicy:     topology.RemovalDestroy,
		}
	}

	storageName := naming.Name(naming.KindStorageBucket, in.Identifier)
	cacheName := naming.Name(naming.KindCacheBucket, in.Identifier)

	return storageResources{
		Storage: topo.Add(storageName, topology.KindBucket, spec(storageName)),
		Cache:   topo.Add(cacheName, topology.KindBucket, spec(cacheName)),
	}
}
