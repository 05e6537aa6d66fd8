// Package awsengine is the AWS implementation of the provisioning engine
// contract. It realizes a declared topology with the EC2, IAM, S3, ECS,
// ELBv2 and Secrets Manager APIs, one resource at a time, in the order the
// executor dictates. The engine never decides what to create; it only maps
// each declared kind onto the corresponding control-plane calls. Teardown
// locates existing resources by their deterministic names.
package awsengine
