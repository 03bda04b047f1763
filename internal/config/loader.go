package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/fern-lang/fernc/internal/ctxlog"
)

// Load reads and validates the project file at path.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading project configuration.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	var raw projectFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}

	if raw.Project == nil {
		return nil, fmt.Errorf("%s: missing required project block", path)
	}
	if raw.Bundle == nil {
		return nil, fmt.Errorf("%s: missing required bundle block", path)
	}

	roots, err := evalRoots(raw.Bundle.Roots)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if raw.Bundle.AllSourceModules == (len(roots) > 0) {
		return nil, fmt.Errorf("%s: bundle block must set exactly one of roots and all_source_modules", path)
	}

	model := &Model{
		Project: &Project{
			Name:     raw.Project.Name,
			Src:      raw.Project.Src,
			Foreigns: raw.Project.Foreigns,
		},
		Bundle: &Bundle{
			Output:           raw.Bundle.Output,
			Roots:            roots,
			AllSourceModules: raw.Bundle.AllSourceModules,
			Namespace:        raw.Bundle.Namespace,
			Compress:         raw.Bundle.Compress,
		},
		Dev: &Dev{CacheDir: DefaultCacheDir},
	}
	for _, dep := range raw.Dependencies {
		if dep.Sources == "" {
			return nil, fmt.Errorf("%s: dependency %q has no sources pattern", path, dep.Name)
		}
		model.Dependencies = append(model.Dependencies, &Dependency{
			Name:     dep.Name,
			Sources:  dep.Sources,
			Foreigns: dep.Foreigns,
		})
	}
	if raw.Dev != nil && raw.Dev.CacheDir != "" {
		model.Dev.CacheDir = raw.Dev.CacheDir
	}

	logger.Debug("Project configuration loaded.",
		"project", model.Project.Name,
		"dependencies", len(model.Dependencies))
	return model, nil
}

// evalRoots evaluates the bundle roots expression to a list of module
// names. An absent attribute yields an empty list.
func evalRoots(expr hcl.Expression) ([]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating bundle roots: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}

	val, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("bundle roots must be a list of module names: %w", err)
	}

	var roots []string
	for _, v := range val.AsValueSlice() {
		roots = append(roots, v.AsString())
	}
	return roots, nil
}
