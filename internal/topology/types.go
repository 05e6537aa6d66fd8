package topology

import "encoding/json"

// ResourceKind classifies a resource declaration. The values follow the
// CloudFormation resource-type convention.
type ResourceKind string

const (
	KindVPC            ResourceKind = "AWS::EC2::VPC"
	KindSubnet         ResourceKind = "AWS::EC2::Subnet"
	KindSecurityGroup  ResourceKind = "AWS::EC2::SecurityGroup"
	KindRole           ResourceKind = "AWS::IAM::Role"
	KindBucket         ResourceKind = "AWS::S3::Bucket"
	KindSecretRef      ResourceKind = "AWS::SecretsManager::SecretRef"
	KindCluster        ResourceKind = "AWS::ECS::Cluster"
	KindTaskDefinition ResourceKind = "AWS::ECS::TaskDefinition"
	KindService        ResourceKind = "AWS::ECS::Service"
)

// Handle attribute names resolvable through a Ref.
const (
	AttrARN  = "arn"
	AttrID   = "id"
	AttrName = "name"
)

// Ref points at a named attribute of another resource in the same topology.
// The value is unknown until the referenced resource has been created; at
// apply time it is read from that resource's handle.
type Ref struct {
	Node string `json:"node"`
	Attr string `json:"attr"`
}

// Value is a string that is either known at assembly time (a literal) or
// deferred to apply time (a ref).
type Value struct {
	Literal string
	Ref     *Ref
}

// String returns a literal Value.
func String(s string) Value {
	return Value{Literal: s}
}

// RefValue returns a deferred Value reading attr from the named node.
func RefValue(node, attr string) Value {
	return Value{Ref: &Ref{Node: node, Attr: attr}}
}

// IsRef reports whether the value is deferred.
func (v Value) IsRef() bool {
	return v.Ref != nil
}

// MarshalJSON renders literals as plain strings and refs as objects, so a
// synthesized topology document is readable as-is.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Ref != nil {
		return json.Marshal(struct {
			Ref *Ref `json:"$ref"`
		}{Ref: v.Ref})
	}
	return json.Marshal(v.Literal)
}

// Spec is implemented by every typed resource specification. References
// enumerates the refs embedded in the spec; the topology turns each one into
// a dependency edge.
type Spec interface {
	References() []Ref
}

// VPCSpec declares the stack's isolated network. There is exactly one per
// stack, with direct public egress only: no NAT gateways, no private
// subnets.
type VPCSpec struct {
	CIDR                string `json:"cidr"`
	EnableDNSSupport    bool   `json:"enableDnsSupport"`
	EnableDNSHostnames  bool   `json:"enableDnsHostnames"`
	NATGateways         int    `json:"natGateways"`
	MaxAvailabilityZone int    `json:"maxAvailabilityZones"`
}

func (s VPCSpec) References() []Ref { return nil }

// SubnetSpec declares one public subnet of the VPC.
type SubnetSpec struct {
	VPC                 Ref    `json:"vpc"`
	CIDR                string `json:"cidr"`
	AvailabilityZone    string `json:"availabilityZone"`
	MapPublicIPOnLaunch bool   `json:"mapPublicIpOnLaunch"`
}

func (s SubnetSpec) References() []Ref { return []Ref{s.VPC} }

// IngressRule allows traffic into a security group from another group.
// Protocol "-1" with the zero port range means all traffic.
type IngressRule struct {
	SourceGroup Ref    `json:"sourceGroup"`
	Protocol    string `json:"protocol"`
	FromPort    int    `json:"fromPort"`
	ToPort      int    `json:"toPort"`
}

// SecurityGroupSpec declares a traffic policy boundary inside the VPC.
type SecurityGroupSpec struct {
	VPC              Ref           `json:"vpc"`
	Description      string        `json:"description"`
	AllowAllOutbound bool          `json:"allowAllOutbound"`
	Ingress          []IngressRule `json:"ingress"`
}

func (s SecurityGroupSpec) References() []Ref {
	refs := []Ref{s.VPC}
	for _, rule := range s.Ingress {
		refs = append(refs, rule.SourceGroup)
	}
	return refs
}

// PolicyStatement is a single additive IAM policy statement.
type PolicyStatement struct {
	Effect    string   `json:"effect"`
	Actions   []string `json:"actions"`
	Resources []string `json:"resources"`
}

// RoleSpec declares an IAM role. Statements and managed policies are
// additive only; nothing is ever revoked after creation.
type RoleSpec struct {
	AssumedBy         string            `json:"assumedBy"`
	InlineStatements  []PolicyStatement `json:"inlineStatements"`
	ManagedPolicyARNs []string          `json:"managedPolicyArns"`
}

func (s RoleSpec) References() []Ref { return nil }

// RemovalPolicy controls what happens to a durable resource on teardown.
type RemovalPolicy string

// RemovalDestroy deletes the resource and its contents on stack teardown.
const RemovalDestroy RemovalPolicy = "destroy"

// BucketSpec declares an object storage bucket. Both bakery buckets are
// ephemeral pipeline state, destroyed with the stack.
type BucketSpec struct {
	BucketName        string        `json:"bucketName"`
	AutoDeleteObjects bool          `json:"autoDeleteObjects"`
	RemovalPolicy     RemovalPolicy `json:"removalPolicy"`
}

func (s BucketSpec) References() []Ref { return nil }

// SecretRefSpec declares a read-only reference to an externally managed
// secret. The secret is never created or read by this stack; only the
// injectable reference is constructed.
type SecretRefSpec struct {
	SecretARN string `json:"secretArn"`
	Field     string `json:"field"`
}

func (s SecretRefSpec) References() []Ref { return nil }

// ClusterSpec declares the compute placement group for agent and workers.
type ClusterSpec struct {
	VPC Ref `json:"vpc"`
}

func (s ClusterSpec) References() []Ref { return []Ref{s.VPC} }

// PortMapping exposes a container port on the task network interface.
type PortMapping struct {
	ContainerPort int `json:"containerPort"`
	HostPort      int `json:"hostPort"`
}

// LogConfig attaches a log driver to a container.
type LogConfig struct {
	Driver       string `json:"driver"`
	StreamPrefix string `json:"streamPrefix"`
}

// SecretBinding injects one field of a referenced secret into a container
// environment variable at launch time.
type SecretBinding struct {
	EnvName string `json:"envName"`
	Secret  Ref    `json:"secret"`
	Field   string `json:"field"`
}

// ContainerSpec declares the single agent container of the task definition.
type ContainerSpec struct {
	Name         string            `json:"name"`
	Image        string            `json:"image"`
	PortMappings []PortMapping     `json:"portMappings"`
	Logging      LogConfig         `json:"logging"`
	Environment  map[string]string `json:"environment"`
	Secrets      []SecretBinding   `json:"secrets"`
	Command      []Value           `json:"command"`
}

// TaskDefinitionSpec is the immutable template for the agent task. The
// command embeds the cluster ARN and task role ARN so the running agent can
// self-register workers into the correct cluster under the correct role.
type TaskDefinitionSpec struct {
	CPU           int          `json:"cpu"`
	MemoryMiB     int          `json:"memoryMiB"`
	TaskRole      Ref          `json:"taskRole"`
	ExecutionRole Ref          `json:"executionRole"`
	Container     ContainerSpec `json:"container"`
}

func (s TaskDefinitionSpec) References() []Ref {
	refs := []Ref{s.TaskRole, s.ExecutionRole}
	for _, b := range s.Container.Secrets {
		refs = append(refs, b.Secret)
	}
	for _, v := range s.Container.Command {
		if v.IsRef() {
			refs = append(refs, *v.Ref)
		}
	}
	return refs
}

// HealthCheck fixes the liveness endpoint of the agent service.
type HealthCheck struct {
	Path string `json:"path"`
	Port int    `json:"port"`
}

// ServiceSpec declares the desired-count-managed agent service.
type ServiceSpec struct {
	Cluster        Ref         `json:"cluster"`
	TaskDefinition Ref         `json:"taskDefinition"`
	SecurityGroups []Ref       `json:"securityGroups"`
	Subnets        []Ref       `json:"subnets"`
	AssignPublicIP bool        `json:"assignPublicIp"`
	DesiredCount   int         `json:"desiredCount"`
	HealthCheck    HealthCheck `json:"healthCheck"`
}

func (s ServiceSpec) References() []Ref {
	refs := []Ref{s.Cluster, s.TaskDefinition}
	refs = append(refs, s.SecurityGroups...)
	refs = append(refs, s.Subnets...)
	return refs
}
