package engine

import (
	"context"
	"fmt"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// Record is one creation the Recorder observed.
type Record struct {
	Resource *topology.Resource
	Deps     map[string]Handle
}

// Recorder is an Engine that records emitted declarations instead of
// creating anything. Handles are fabricated deterministically from the
// resource ID, so tests can assert on resolved values.
type Recorder struct {
	Created []Record
	Deleted []string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// CreateResource records the declaration and fabricates a handle.
func (r *Recorder) CreateResource(_ context.Context, res *topology.Resource, deps map[string]Handle) (Handle, error) {
	r.Created = append(r.Created, Record{Resource: res, Deps: deps})
	return Handle{
		NodeID: res.ID,
		Attrs: map[string]string{
			topology.AttrARN:  fmt.Sprintf("arn:aws:mock:::%s", res.ID),
			topology.AttrID:   "mock-" + res.ID,
			topology.AttrName: res.ID,
		},
	}, nil
}

// DeleteResource records the teardown.
func (r *Recorder) DeleteResource(_ context.Context, res *topology.Resource, _ Handle) error {
	r.Deleted = append(r.Deleted, res.ID)
	return nil
}

// CreationOrder returns the IDs of created resources in observed order.
func (r *Recorder) CreationOrder() []string {
	out := make([]string, 0, len(r.Created))
	for _, rec := range r.Created {
		out = append(out, rec.Resource.ID)
	}
	return out
}
