package awsengine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/secretsmanager"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/topology"
)

// policyDocument is the wire form of an IAM policy.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action,omitempty"`
	Resource  []string          `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
}

const policyVersion = "2012-10-17"

// assumeRolePolicy renders the trust policy for a service principal.
func assumeRolePolicy(principal string) (string, error) {
	doc := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{{
			Effect:    "Allow",
			Action:    []string{"sts:AssumeRole"},
			Principal: map[string]string{"Service": principal},
		}},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("rendering trust policy: %w", err)
	}
	return string(raw), nil
}

// inlinePolicy renders the additive inline statements of a role.
func inlinePolicy(statements []topology.PolicyStatement) (string, error) {
	doc := policyDocument{Version: policyVersion}
	for _, s := range statements {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect:   s.Effect,
			Action:   s.Actions,
			Resource: s.Resources,
		})
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("rendering inline policy: %w", err)
	}
	return string(raw), nil
}

// inlinePolicyName is the single inline policy each role carries.
func inlinePolicyName(roleName string) string {
	return roleName + "-inline"
}

func (e *Engine) createRole(ctx context.Context, res *topology.Resource) (engine.Handle, error) {
	spec := res.Spec.(topology.RoleSpec)

	trust, err := assumeRolePolicy(spec.AssumedBy)
	if err != nil {
		return engine.Handle{}, err
	}
	out, err := e.iam.CreateRoleWithContext(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(res.ID),
		AssumeRolePolicyDocument: aws.String(trust),
	})
	if err != nil {
		return engine.Handle{}, err
	}

	if len(spec.InlineStatements) > 0 {
		doc, err := inlinePolicy(spec.InlineStatements)
		if err != nil {
			return engine.Handle{}, err
		}
		_, err = e.iam.PutRolePolicyWithContext(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(res.ID),
			PolicyName:     aws.String(inlinePolicyName(res.ID)),
			PolicyDocument: aws.String(doc),
		})
		if err != nil {
			return engine.Handle{}, err
		}
	}

	for _, managed := range spec.ManagedPolicyARNs {
		_, err = e.iam.AttachRolePolicyWithContext(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(res.ID),
			PolicyArn: aws.String(managed),
		})
		if err != nil {
			return engine.Handle{}, err
		}
	}

	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrARN:  aws.StringValue(out.Role.Arn),
		topology.AttrID:   aws.StringValue(out.Role.RoleId),
		topology.AttrName: res.ID,
	}}, nil
}

// resolveSecret validates that the externally managed secret exists. The
// secret value is never read; only the reference is carried forward.
func (e *Engine) resolveSecret(ctx context.Context, res *topology.Resource) (engine.Handle, error) {
	spec := res.Spec.(topology.SecretRefSpec)

	out, err := e.secrets.DescribeSecretWithContext(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(spec.SecretARN),
	})
	if err != nil {
		return engine.Handle{}, fmt.Errorf("resolving secret reference: %w", err)
	}

	return engine.Handle{NodeID: res.ID, Attrs: map[string]string{
		topology.AttrARN:  aws.StringValue(out.ARN),
		topology.AttrName: aws.StringValue(out.Name),
	}}, nil
}

func (e *Engine) deleteRole(ctx context.Context, res *topology.Resource) error {
	spec := res.Spec.(topology.RoleSpec)

	if len(spec.InlineStatements) > 0 {
		_, err := e.iam.DeleteRolePolicyWithContext(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(res.ID),
			PolicyName: aws.String(inlinePolicyName(res.ID)),
		})
		if err != nil {
			return err
		}
	}
	for _, managed := range spec.ManagedPolicyARNs {
		_, err := e.iam.DetachRolePolicyWithContext(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(res.ID),
			PolicyArn: aws.String(managed),
		})
		if err != nil {
			return err
		}
	}
	_, err := e.iam.DeleteRoleWithContext(ctx, &iam.DeleteRoleInput{RoleName: aws.String(res.ID)})
	return err
}
