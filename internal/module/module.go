// Package module defines the in-memory representation of a build: the set of
// modules to compile, the foreign-code side table, and the compiled fragments
// the backends produce. Everything here is immutable once the graph is built.
package module

import (
	"fmt"
	"regexp"
)

// nameRegex matches a qualified module name: dot-separated identifier
// segments, each starting with a letter ("Main", "Data.List").
var nameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)*$`)

// ValidName reports whether name is a well-formed qualified module name.
func ValidName(name string) bool {
	return nameRegex.MatchString(name)
}

// Module is a single named unit of compilation.
type Module struct {
	// Name is the qualified module name, unique within a build.
	Name string

	// Path is the source file path. Empty for virtual modules supplied
	// without a concrete file; those have no staleness signal and must
	// always recompile.
	Path string

	// Imports lists the imported module names in declaration order.
	Imports []string

	// Source is the raw source text.
	Source string

	// SourceHash is the blake3 hash of the source text, hex-encoded.
	SourceHash string

	// FirstParty is true when the source came from the project's own source
	// tree rather than a dependency location.
	FirstParty bool
}

// Virtual reports whether the module has no concrete source file.
func (m *Module) Virtual() bool {
	return m.Path == ""
}

// FragmentKind distinguishes generated code from hand-written foreign code.
type FragmentKind int

const (
	// Regular fragments are produced from module source by the front end.
	Regular FragmentKind = iota
	// Foreign fragments are hand-written host-language code paired with a
	// module by name.
	Foreign
)

func (k FragmentKind) String() string {
	if k == Foreign {
		return "foreign"
	}
	return "regular"
}

// ForeignKeyPrefix prefixes the compiled-set key of a foreign fragment, so
// regular and foreign code for the same module never collide.
const ForeignKeyPrefix = "$foreign:"

// ForeignKey returns the compiled-set key of the foreign fragment paired
// with the named module.
func ForeignKey(name string) string {
	return ForeignKeyPrefix + name
}

// Fragment is one unit of generated (or hand-written) target code.
type Fragment struct {
	// Name is the qualified name of the module the fragment belongs to.
	Name string

	// Kind is Regular or Foreign.
	Kind FragmentKind

	// Code is the target-language text.
	Code string

	// Path is the file the fragment came from. Set for foreign fragments
	// (their file mtime is a build input); empty for generated code.
	Path string
}

// Key returns the fragment's key in a compiled set: the module name for
// regular fragments, the foreign key for foreign ones.
func (f *Fragment) Key() string {
	if f.Kind == Foreign {
		return ForeignKey(f.Name)
	}
	return f.Name
}

// CompiledSet maps fragment keys to fragments, accumulated over one build.
type CompiledSet map[string]*Fragment

// Add inserts a fragment under its key. Duplicate keys are a programming
// error: the scheduler visits each module exactly once.
func (s CompiledSet) Add(f *Fragment) error {
	key := f.Key()
	if _, exists := s[key]; exists {
		return fmt.Errorf("duplicate %s fragment for module %q", f.Kind, f.Name)
	}
	s[key] = f
	return nil
}

// Externs is the post-compilation interface summary for one module. The
// build core stores and forwards it; only the front end interprets it.
type Externs struct {
	// Module is the qualified name of the module the summary describes.
	Module string `cbor:"module"`

	// Exports lists the names the module exports, in declaration order.
	Exports []string `cbor:"exports"`

	// ReExports lists modules whose exports are re-exported wholesale.
	ReExports []string `cbor:"reexports,omitempty"`

	// Foreigns lists names the module imports from its foreign counterpart.
	Foreigns []string `cbor:"foreigns,omitempty"`
}
