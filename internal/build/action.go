// Package build contains the backend-agnostic build engine: the Action
// interface the scheduler drives, the staleness stamp model, and the
// scheduler itself. Backends (disk, memory) implement Action; the scheduler
// holds no backend-specific state, which is what lets development and
// production share one graph-walking algorithm while differing only in
// caching policy.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"

	"github.com/fern-lang/fernc/internal/module"
)

// StampKind tags a staleness stamp. Modeling the sentinels explicitly keeps
// the staleness comparison total: there is no nil timestamp to mishandle.
type StampKind int

const (
	// Fresh carries a concrete timestamp.
	Fresh StampKind = iota
	// AlwaysRebuild forces recompilation regardless of cache state. Used as
	// an input stamp for modules with no reliable staleness signal.
	AlwaysRebuild
	// Absent marks a missing output, forcing recompilation.
	Absent
)

// Stamp is the result of an input or output staleness query.
type Stamp struct {
	Kind StampKind
	Time time.Time
}

// FreshAt returns a concrete timestamp stamp.
func FreshAt(t time.Time) Stamp {
	return Stamp{Kind: Fresh, Time: t}
}

// Rebuild is the input stamp that always forces recompilation.
var Rebuild = Stamp{Kind: AlwaysRebuild}

// Missing is the output stamp of an absent artifact.
var Missing = Stamp{Kind: Absent}

// Combine folds two input stamps into the later ("more stale") of the two.
// AlwaysRebuild is absorbing.
func Combine(a, b Stamp) Stamp {
	if a.Kind == AlwaysRebuild || b.Kind == AlwaysRebuild {
		return Rebuild
	}
	if b.Time.After(a.Time) {
		return b
	}
	return a
}

// EventKind classifies a progress event.
type EventKind int

const (
	// EventCompile fires when a module is about to be recompiled.
	EventCompile EventKind = iota
	// EventCached fires when a module is skipped because its output is fresh.
	EventCached
)

// Event is an advisory progress notification. Implementations must not
// block; events exist for observability only.
type Event struct {
	Module string
	Kind   EventKind
}

// Action is the capability set a storage/codegen backend provides to the
// scheduler. The disk and memory backends are the two implementations,
// selected at pipeline construction time.
type Action interface {
	// InputStamp reports the staleness stamp of the module's own source:
	// Fresh with a timestamp, or AlwaysRebuild when no reliable signal
	// exists.
	InputStamp(name string) Stamp

	// OutputStamp reports the stamp of the module's recorded output: Fresh
	// with a timestamp, or Absent when nothing is recorded.
	OutputStamp(name string) Stamp

	// ReadExterns returns the interface summary of a module previously
	// recorded as built in this invocation (or, for the disk backend, a
	// prior one). Failure for an already-built module is a contract
	// violation reported via ErrInternal.
	ReadExterns(name string) (*module.Externs, error)

	// Codegen compiles the module, durably records the produced fragment
	// and externs for later reads, and returns the externs. When a foreign
	// fragment is paired with the module, the generated code must gain a
	// reference to it so the two link together. Safe to call concurrently
	// for modules with no dependency edge.
	Codegen(ctx context.Context, mod *module.Module, foreign *module.Fragment, depExterns map[string]*module.Externs) (*module.Externs, hcl.Diagnostics)

	// Progress reports an advisory, non-blocking progress event.
	Progress(ev Event)
}

// WithForeignReference prepends the require line that binds a module's
// generated code to its foreign counterpart at link time.
func WithForeignReference(name, code string) string {
	return fmt.Sprintf("var $foreign = require(%q);\n", module.ForeignKey(name)) + code
}

// MissingForeignDiagnostic is the error produced when a module declares
// foreign imports but discovery paired no foreign file with it.
func MissingForeignDiagnostic(mod *module.Module) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("module %s declares foreign imports but no foreign file is paired with it", mod.Name),
		Detail:   "Add a foreign file whose leading comment is `// module " + mod.Name + "` to one of the configured foreign locations.",
	}
}
