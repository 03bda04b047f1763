package module

import (
	"fmt"
	"sort"
)

// Graph holds every module of one build plus the foreign-fragment side
// table. It is constructed once per pipeline invocation and read-only
// afterwards.
type Graph struct {
	modules  map[string]*Module
	foreigns map[string]*Fragment
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		modules:  make(map[string]*Module),
		foreigns: make(map[string]*Fragment),
	}
}

// Add inserts a module. Two modules with the same qualified name are a
// configuration error.
func (g *Graph) Add(m *Module) error {
	if existing, ok := g.modules[m.Name]; ok {
		return fmt.Errorf("duplicate module %q (declared in %q and %q)", m.Name, existing.Path, m.Path)
	}
	g.modules[m.Name] = m
	return nil
}

// AddForeign records the hand-written foreign fragment paired with a module
// name. At most one foreign file may pair with a module.
func (g *Graph) AddForeign(f *Fragment) error {
	if f.Kind != Foreign {
		return fmt.Errorf("fragment for %q is not foreign", f.Name)
	}
	if _, ok := g.foreigns[f.Name]; ok {
		return fmt.Errorf("duplicate foreign file for module %q", f.Name)
	}
	g.foreigns[f.Name] = f
	return nil
}

// Lookup returns the module with the given qualified name.
func (g *Graph) Lookup(name string) (*Module, bool) {
	m, ok := g.modules[name]
	return m, ok
}

// Foreign returns the foreign fragment paired with the named module, or nil.
func (g *Graph) Foreign(name string) *Fragment {
	return g.foreigns[name]
}

// Len returns the number of modules in the graph.
func (g *Graph) Len() int {
	return len(g.modules)
}

// Names returns all module names in lexicographic order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.modules))
	for name := range g.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TopoOrder returns the module names ordered so that every module appears
// after all modules it imports. Ties break lexicographically, so the order
// is deterministic for a given graph. An import of an unknown module or an
// import cycle is an error: the language disallows cyclic imports, so a
// cycle is a fatal configuration problem, not a front-end diagnostic.
func (g *Graph) TopoOrder() ([]string, error) {
	// Classic depth-first search with three node states: permanently done,
	// temporarily on the recursion stack, and unvisited.
	permanent := make(map[string]bool, len(g.modules))
	temporary := make(map[string]bool)
	order := make([]string, 0, len(g.modules))

	var visit func(name string, importer *Module) error
	visit = func(name string, importer *Module) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			return fmt.Errorf("import cycle detected involving module %q", name)
		}

		m, ok := g.modules[name]
		if !ok {
			return fmt.Errorf("module %q imports %q, which is not part of the build", importer.Name, name)
		}

		temporary[name] = true
		for _, imp := range sortedCopy(m.Imports) {
			if err := visit(imp, m); err != nil {
				return err
			}
		}
		delete(temporary, name)
		permanent[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range g.Names() {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func sortedCopy(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
