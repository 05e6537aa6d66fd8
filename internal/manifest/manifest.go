package manifest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/builder"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/ctxlog"
)

// Manifest holds the decoded overrides of one bakery block. Nil fields were
// not set and leave the corresponding input untouched.
type Manifest struct {
	Identifier        *string
	Image             *string
	CPU               *int
	MemoryMiB         *int
	DesiredCount      *int
	AvailabilityZones []string
}

type hclManifest struct {
	Bakery *hclBakery `hcl:"bakery,block"`
}

type hclBakery struct {
	Identifier        *string  `hcl:"identifier,optional"`
	Image             *string  `hcl:"image,optional"`
	CPU               *int     `hcl:"cpu,optional"`
	MemoryMiB         *int     `hcl:"memory,optional"`
	DesiredCount      *int     `hcl:"desired_count,optional"`
	AvailabilityZones []string `hcl:"availability_zones,optional"`
}

// evalContext exposes the process environment to manifest expressions as the
// env object, so a manifest can write identifier = env.BAKERY_ID.
func evalContext() *hcl.EvalContext {
	vars := map[string]cty.Value{}
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}

// Load parses the manifest file at path. A missing file is not an error; it
// returns an empty manifest.
func Load(ctx context.Context, path string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("No manifest file found, using environment inputs only.", "path", path)
		return &Manifest{}, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, diags)
	}
	return decode(file.Body, path)
}

// Parse decodes manifest source held in memory. Used by tests and by callers
// that already read the file.
func Parse(src []byte, filename string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing manifest %s: %w", filename, diags)
	}
	return decode(file.Body, filename)
}

func decode(body hcl.Body, filename string) (*Manifest, error) {
	var parsed hclManifest
	diags := gohcl.DecodeBody(body, evalContext(), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decoding manifest %s: %w", filename, diags)
	}
	if parsed.Bakery == nil {
		return &Manifest{}, nil
	}
	return &Manifest{
		Identifier:        parsed.Bakery.Identifier,
		Image:             parsed.Bakery.Image,
		CPU:               parsed.Bakery.CPU,
		MemoryMiB:         parsed.Bakery.MemoryMiB,
		DesiredCount:      parsed.Bakery.DesiredCount,
		AvailabilityZones: parsed.Bakery.AvailabilityZones,
	}, nil
}

// Apply overlays the manifest's set fields onto the assembly inputs.
func (m *Manifest) Apply(in *builder.Inputs) {
	if m.Identifier != nil {
		in.Identifier = *m.Identifier
	}
	if m.Image != nil {
		in.Image = *m.Image
	}
	if m.CPU != nil {
		in.CPU = *m.CPU
	}
	if m.MemoryMiB != nil {
		in.MemoryMiB = *m.MemoryMiB
	}
	if m.DesiredCount != nil {
		in.DesiredCount = *m.DesiredCount
	}
	if len(m.AvailabilityZones) > 0 {
		in.AvailabilityZones = m.AvailabilityZones
	}
}
