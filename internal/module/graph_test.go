package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, g *Graph, name string, imports ...string) {
	t.Helper()
	require.NoError(t, g.Add(&Module{Name: name, Path: name + ".fn", Imports: imports}))
}

func TestTopoOrder_DependenciesFirst(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "Main", "Data.List", "Helper")
	mustAdd(t, g, "Helper", "Data.List")
	mustAdd(t, g, "Data.List", "Prelude")
	mustAdd(t, g, "Prelude")

	order, err := g.TopoOrder()
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for _, name := range g.Names() {
		mod, _ := g.Lookup(name)
		for _, imp := range mod.Imports {
			assert.Less(t, pos[imp], pos[name], "%s must come before its importer %s", imp, name)
		}
	}
}

func TestTopoOrder_Deterministic(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "B")
	mustAdd(t, g, "C")
	mustAdd(t, g, "A")

	first, err := g.TopoOrder()
	require.NoError(t, err)
	second, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"A", "B", "C"}, first)
}

func TestTopoOrder_CycleIsFatal(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "A", "B")
	mustAdd(t, g, "B", "C")
	mustAdd(t, g, "C", "A")

	_, err := g.TopoOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle")
}

func TestTopoOrder_UnknownImport(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "A", "Missing")

	_, err := g.TopoOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Missing"`)
}

func TestGraph_DuplicateModule(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "A")
	err := g.Add(&Module{Name: "A", Path: "other/A.fn"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate module")
}

func TestGraph_ForeignPairing(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "Native")

	frag := &Fragment{Name: "Native", Kind: Foreign, Code: "exports.f = 1;"}
	require.NoError(t, g.AddForeign(frag))
	assert.Same(t, frag, g.Foreign("Native"))
	assert.Nil(t, g.Foreign("Other"))

	require.Error(t, g.AddForeign(&Fragment{Name: "Native", Kind: Foreign}))
	require.Error(t, g.AddForeign(&Fragment{Name: "Plain", Kind: Regular}))
}

func TestValidName(t *testing.T) {
	for _, good := range []string{"Main", "Data.List", "a", "A1.b2"} {
		assert.True(t, ValidName(good), good)
	}
	for _, bad := range []string{"", "1Main", "Data..List", ".List", "List.", "Da ta"} {
		assert.False(t, ValidName(bad), bad)
	}
}

func TestCompiledSet_Keys(t *testing.T) {
	set := make(CompiledSet)
	require.NoError(t, set.Add(&Fragment{Name: "A", Kind: Regular, Code: "x"}))
	require.NoError(t, set.Add(&Fragment{Name: "A", Kind: Foreign, Code: "y"}))
	assert.Len(t, set, 2)
	assert.Equal(t, "x", set["A"].Code)
	assert.Equal(t, "y", set[ForeignKey("A")].Code)

	err := set.Add(&Fragment{Name: "A", Kind: Regular})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
