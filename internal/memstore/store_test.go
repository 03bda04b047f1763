package memstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-lang/fernc/internal/build"
	"github.com/fern-lang/fernc/internal/frontend"
	"github.com/fern-lang/fernc/internal/module"
)

func newTestStore() *Store {
	return New(frontend.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sourceModule(name, source string) *module.Module {
	return &module.Module{Name: name, Path: name + ".fn", Source: source}
}

func TestStore_AlwaysRebuilds(t *testing.T) {
	store := newTestStore()

	assert.Equal(t, build.Rebuild, store.InputStamp("Anything"))
	assert.Equal(t, build.Missing, store.OutputStamp("Anything"))
}

func TestStore_CodegenRecordsFragmentAndExterns(t *testing.T) {
	// Arrange
	store := newTestStore()
	mod := sourceModule("Main", "module Main\n\nexport main\n\nfunction main() { return 1; }\n")

	// Act
	externs, diags := store.Codegen(context.Background(), mod, nil, nil)

	// Assert
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %v", diags)
	require.NotNil(t, externs)
	assert.Equal(t, []string{"main"}, externs.Exports)

	readBack, err := store.ReadExterns("Main")
	require.NoError(t, err)
	assert.Same(t, externs, readBack)

	set := store.Compiled()
	require.Contains(t, set, "Main")
	assert.Contains(t, set["Main"].Code, "function main()")
}

func TestStore_ReadExternsMissIsInternal(t *testing.T) {
	store := newTestStore()

	_, err := store.ReadExterns("Never")

	require.Error(t, err)
	assert.True(t, errors.Is(err, build.ErrInternal))
}

func TestStore_ForeignReferenceInjected(t *testing.T) {
	// Arrange
	store := newTestStore()
	mod := sourceModule("Native", "module Native\n\nforeign import now\n\nexport now\n")
	foreign := &module.Fragment{Name: "Native", Kind: module.Foreign, Code: "exports.now = function() {};", Path: "Native.js"}

	// Act
	_, diags := store.Codegen(context.Background(), mod, foreign, nil)

	// Assert
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %v", diags)
	set := store.Compiled()
	require.Contains(t, set, "Native")
	require.Contains(t, set, module.ForeignKey("Native"))
	assert.True(t, strings.HasPrefix(set["Native"].Code, `var $foreign = require("$foreign:Native");`))
}

func TestStore_MissingForeignIsError(t *testing.T) {
	store := newTestStore()
	mod := sourceModule("Native", "module Native\n\nforeign import now\n\nexport now\n")

	externs, diags := store.Codegen(context.Background(), mod, nil, nil)

	assert.Nil(t, externs)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Errs()[0].Error(), "no foreign file is paired")
}

func TestStore_ConcurrentAccess(t *testing.T) {
	// Arrange
	store := newTestStore()
	const goroutines = 32

	// Act: hammer the store from concurrent writers and readers, the way
	// scheduler workers do for independent modules.
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("Mod%02d", i)
			src := fmt.Sprintf("module %s\n\nexport v\n\nvar v = %d;\n", name, i)
			_, diags := store.Codegen(context.Background(), sourceModule(name, src), nil, nil)
			assert.False(t, diags.HasErrors())
			_, err := store.ReadExterns(name)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Assert
	assert.Len(t, store.Compiled(), goroutines)
}
