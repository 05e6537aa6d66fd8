package awsengine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/ecs/ecsiface"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/elbv2/elbv2iface"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/google/uuid"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// Engine provisions declared resources against the AWS control plane.
type Engine struct {
	region string
	// runID tags every apply run for log correlation and seeds idempotency
	// client tokens.
	runID string

	ec2     ec2iface.EC2API
	iam     iamiface.IAMAPI
	s3      s3iface.S3API
	ecs     ecsiface.ECSAPI
	elb     elbv2iface.ELBV2API
	secrets secretsmanageriface.SecretsManagerAPI
	sts     stsiface.STSAPI

	mu sync.Mutex
	// routing caches the internet gateway and public route table created per
	// VPC, shared by every public subnet of that VPC.
	routing map[string]*vpcRouting
	// accountID caches the caller's account, resolved on first use.
	accountID string
}

// vpcRouting is the public egress path of one VPC.
type vpcRouting struct {
	internetGatewayID string
	routeTableID      string
}

// New builds an engine from the default AWS credential chain.
func New(region string) (*Engine, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return &Engine{
		region:  region,
		runID:   uuid.NewString(),
		ec2:     ec2.New(sess),
		iam:     iam.New(sess),
		s3:      s3.New(sess),
		ecs:     ecs.New(sess),
		elb:     elbv2.New(sess),
		secrets: secretsmanager.New(sess),
		sts:     sts.New(sess),
		routing: make(map[string]*vpcRouting),
	}, nil
}

// NewWithClients builds an engine from explicit service clients. Used by
// tests to substitute fakes.
func NewWithClients(region string, ec2c ec2iface.EC2API, iamc iamiface.IAMAPI, s3c s3iface.S3API, ecsc ecsiface.ECSAPI, elbc elbv2iface.ELBV2API, smc secretsmanageriface.SecretsManagerAPI, stsc stsiface.STSAPI) *Engine {
	return &Engine{
		region:  region,
		runID:   uuid.NewString(),
		ec2:     ec2c,
		iam:     iamc,
		s3:      s3c,
		ecs:     ecsc,
		elb:     elbc,
		secrets: smc,
		sts:     stsc,
		routing: make(map[string]*vpcRouting),
	}
}

// CreateResource implements engine.Engine.
func (e *Engine) CreateResource(ctx context.Context, res *topology.Resource, deps map[string]engine.Handle) (engine.Handle, error) {
	switch res.Kind {
	case topology.KindBucket:
		return e.createBucket(ctx, res)
	case topology.KindVPC:
		return e.createVPC(ctx, res)
	case topology.KindSubnet:
		return e.createSubnet(ctx, res, deps)
	case topology.KindSecurityGroup:
		return e.createSecurityGroup(ctx, res, deps)
	case topology.KindRole:
		return e.createRole(ctx, res)
	case topology.KindSecretRef:
		return e.resolveSecret(ctx, res)
	case topology.KindCluster:
		return e.createCluster(ctx, res)
	case topology.KindTaskDefinition:
		return e.registerTaskDefinition(ctx, res, deps)
	case topology.KindService:
		return e.createService(ctx, res, deps)
	default:
		return engine.Handle{}, fmt.Errorf("unsupported resource kind %q", res.Kind)
	}
}

// DeleteResource implements engine.Engine. Resources are located by their
// deterministic names; a resource that is already gone is not an error.
func (e *Engine) DeleteResource(ctx context.Context, res *topology.Resource, h engine.Handle) error {
	switch res.Kind {
	case topology.KindBucket:
		return e.deleteBucket(ctx, res)
	case topology.KindVPC:
		return e.deleteVPC(ctx, res)
	case topology.KindSubnet:
		return e.deleteSubnet(ctx, res)
	case topology.KindSecurityGroup:
		return e.deleteSecurityGroup(ctx, res)
	case topology.KindRole:
		return e.deleteRole(ctx, res)
	case topology.KindSecretRef:
		// Externally managed; never touched.
		return nil
	case topology.KindCluster:
		return e.deleteCluster(ctx, res)
	case topology.KindTaskDefinition:
		return e.deregisterTaskDefinition(ctx, res)
	case topology.KindService:
		return e.deleteService(ctx, res)
	default:
		return fmt.Errorf("unsupported resource kind %q", res.Kind)
	}
}

// account resolves and caches the caller's AWS account ID.
func (e *Engine) account(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.accountID != "" {
		return e.accountID, nil
	}
	out, err := e.sts.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("resolving caller identity: %w", err)
	}
	e.accountID = aws.StringValue(out.Account)
	return e.accountID, nil
}

// shortName truncates a derived name to the given limit, as required by
// resources with short name caps (load balancers, target groups).
func shortName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	return strings.TrimRight(name[:limit], "-")
}

// nameTag builds the standard Name tag carried by every taggable resource.
func nameTag(name string) []*ec2.Tag {
	return []*ec2.Tag{{Key: aws.String("Name"), Value: aws.String(name)}}
}
