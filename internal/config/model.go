// Package config defines the project configuration model for fernc and the
// HCL loader that populates it. The model is the single source of truth for
// discovery, the build pipeline, and the bundler.
package config

// Model is the fully validated configuration of one project.
type Model struct {
	Project      *Project
	Dependencies []*Dependency
	Bundle       *Bundle
	Dev          *Dev
}

// Project describes the first-party source tree.
type Project struct {
	// Name identifies the project in logs.
	Name string

	// Src is the directory holding first-party sources, relative to the
	// project file.
	Src string

	// Foreigns is an optional glob pattern for first-party foreign files.
	Foreigns string
}

// Dependency is one explicitly supplied dependency source location. There is
// no resolver: locations are given, not discovered.
type Dependency struct {
	// Name labels the dependency in logs and errors.
	Name string

	// Sources is the glob pattern for the dependency's source files.
	Sources string

	// Foreigns is an optional glob pattern for its foreign files.
	Foreigns string
}

// Bundle configures the linker.
type Bundle struct {
	// Output is the artifact path.
	Output string

	// Roots lists the dead-code-elimination seed modules. Empty when
	// AllSourceModules is set.
	Roots []string

	// AllSourceModules seeds reachability from every first-party module
	// instead of an explicit list.
	AllSourceModules bool

	// Namespace overrides the top-level namespace object name.
	Namespace string

	// Compress additionally writes a gzipped copy of the production
	// artifact next to the output file.
	Compress bool
}

// Dev configures development mode.
type Dev struct {
	// CacheDir is the build cache root.
	CacheDir string
}

// DefaultCacheDir is used when the dev block leaves cache_dir unset.
const DefaultCacheDir = ".fern-cache"
