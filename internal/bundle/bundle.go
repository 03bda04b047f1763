// Package bundle links a compiled set into one self-contained artifact: it
// computes the reachability closure from the root modules, drops everything
// unreached, and splices the surviving fragments into a single namespaced
// file ordered so no module loads before the modules it references.
//
// The reachability graph is recovered from the generated code itself, not
// from the import graph used for build ordering: every cross-module
// reference in a fragment appears as a `require("<key>")` call (the front
// end guarantees that shape, and re-exports produce requires of their own),
// so a text scan for require tokens is the linker's contract on fragments.
package bundle

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fern-lang/fernc/internal/module"
)

// DefaultNamespace is the name of the shared namespace object when the
// configuration does not override it.
const DefaultNamespace = "Fern"

// Options tune artifact emission.
type Options struct {
	// Namespace is the name of the top-level namespace object. Empty means
	// DefaultNamespace.
	Namespace string
}

// Error is a structural bundling failure: an unresolvable reference, a
// missing root, or a reference cycle. No partial artifact accompanies it.
type Error struct {
	Diagnostic string
}

func (e *Error) Error() string {
	return "bundling failed: " + e.Diagnostic
}

var requireRe = regexp.MustCompile(`require\("([^"]+)"\)`)

// references extracts the fragment keys a piece of generated code requires,
// deduplicated, in sorted order.
func references(code string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, m := range requireRe.FindAllStringSubmatch(code, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	sort.Strings(refs)
	return refs
}

// Bundle links the compiled set, seeding reachability from the given root
// module names. It returns the artifact bytes, or an Error and no bytes.
// Output is deterministic: bundling the same set and roots twice yields
// byte-identical artifacts.
func Bundle(set module.CompiledSet, roots []string, opts Options) ([]byte, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if len(roots) == 0 {
		return nil, &Error{Diagnostic: "empty root set: nothing to bundle"}
	}

	// Reachability closure and load order in one pass: depth-first search
	// over the reference graph, emitting each fragment after everything it
	// references. Roots and references are visited in sorted order, which
	// fixes the emission order for a given input.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var order []string

	var visit func(key, referrer string) error
	visit = func(key, referrer string) error {
		switch state[key] {
		case done:
			return nil
		case visiting:
			return &Error{Diagnostic: fmt.Sprintf("cyclic reference involving %q", key)}
		}

		frag, ok := set[key]
		if !ok {
			if referrer == "" {
				return &Error{Diagnostic: fmt.Sprintf("root module %q is not in the compiled set", key)}
			}
			return &Error{Diagnostic: fmt.Sprintf("module %q references %q, which is not in the compiled set", referrer, key)}
		}

		state[key] = visiting
		for _, ref := range references(frag.Code) {
			if err := visit(ref, key); err != nil {
				return err
			}
		}
		state[key] = done
		order = append(order, key)
		return nil
	}

	sortedRoots := append([]string(nil), roots...)
	sort.Strings(sortedRoots)
	for _, root := range sortedRoots {
		if err := visit(root, ""); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Linked by fernc. %d of %d fragments reachable.\n", len(order), len(set))
	buf.WriteString("\"use strict\";\n")
	fmt.Fprintf(&buf, "var %s = {};\n", namespace)

	for _, key := range order {
		frag := set[key]
		buf.WriteString("\n")
		if frag.Kind == module.Foreign {
			fmt.Fprintf(&buf, "// %s (foreign)\n", frag.Name)
			fmt.Fprintf(&buf, "(function(exports) {\n")
			writeCode(&buf, frag.Code)
			fmt.Fprintf(&buf, "})(%s[%q] = {});\n", namespace, key)
			continue
		}
		fmt.Fprintf(&buf, "// %s\n", frag.Name)
		fmt.Fprintf(&buf, "(function(module, require) {\n")
		writeCode(&buf, frag.Code)
		fmt.Fprintf(&buf, "%s[%q] = module.exports;\n", namespace, key)
		fmt.Fprintf(&buf, "})({ exports: {} }, function($name) { return %s[$name]; });\n", namespace)
	}

	return buf.Bytes(), nil
}

func writeCode(buf *bytes.Buffer, code string) {
	buf.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		buf.WriteString("\n")
	}
}
