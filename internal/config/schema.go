package config

import "github.com/hashicorp/hcl/v2"

// projectFile mirrors the top-level structure of a fern.hcl file.
type projectFile struct {
	Project      *projectBlock      `hcl:"project,block"`
	Dependencies []*dependencyBlock `hcl:"dependency,block"`
	Bundle       *bundleBlock       `hcl:"bundle,block"`
	Dev          *devBlock          `hcl:"dev,block"`
}

type projectBlock struct {
	Name     string `hcl:"name"`
	Src      string `hcl:"src"`
	Foreigns string `hcl:"foreigns,optional"`
}

type dependencyBlock struct {
	Name     string `hcl:"name,label"`
	Sources  string `hcl:"sources,optional"`
	Foreigns string `hcl:"foreigns,optional"`
}

// bundleBlock keeps roots as an expression so the loader can evaluate and
// type-check it explicitly, mirroring how defaults are handled elsewhere.
type bundleBlock struct {
	Output           string         `hcl:"output"`
	Roots            hcl.Expression `hcl:"roots,optional"`
	AllSourceModules bool           `hcl:"all_source_modules,optional"`
	Namespace        string         `hcl:"namespace,optional"`
	Compress         bool           `hcl:"compress,optional"`
}

type devBlock struct {
	CacheDir string `hcl:"cache_dir,optional"`
}
