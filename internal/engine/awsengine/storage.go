package awsengine

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

func (e *Engine) createBucket(ctx context.Context, res *topology.Resource) (engine.Handle, error) {
	spec := res.Spec.(topology.BucketSpec)

	input := &s3.CreateBucketInput{Bucket: aws.String(spec.BucketName)}
	// us-east-1 rejects an explicit location constraint.
	if e.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(e.region),
		}
	}
	if _, err := e.s3.CreateBucketWithContext(ctx, input); err != nil {
		return engine.Handle{}, err
	}
	if err := e.s3.WaitUntilBucketExistsWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(spec.BucketName)}); err != nil {
		return engine.Handle{}, err
	}

	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrARN:  "arn:aws:s3:::" + spec.BucketName,
		topology.AttrID:   spec.BucketName,
		topology.AttrName: spec.BucketName,
	}}, nil
}

// deleteBucket empties and removes a bucket. Both bakery buckets declare
// auto-delete semantics, so losing the contents on teardown is intended.
func (e *Engine) deleteBucket(ctx context.Context, res *topology.Resource) error {
	spec := res.Spec.(topology.BucketSpec)
	bucket := aws.String(spec.BucketName)

	if spec.AutoDeleteObjects {
		err := e.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{Bucket: bucket},
			func(page *s3.ListObjectsV2Output, _ bool) bool {
				for _, object := range page.Contents {
					_, _ = e.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
						Bucket: bucket,
						Key:    object.Key,
					})
				}
				return true
			})
		if err != nil {
			return err
		}
	}

	_, err := e.s3.DeleteBucketWithContext(ctx, &s3.DeleteBucketInput{Bucket: bucket})
	return err
}
