// Package manifest loads the optional bakery manifest, an HCL file that
// overrides the assembly inputs taken from the environment. The manifest is
// the operator-facing knob for per-deployment sizing: image, CPU, memory,
// desired count and availability zones. Environment variables are exposed to
// manifest expressions through the env object.
package manifest
