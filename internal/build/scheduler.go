package build

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/hcl/v2"

	"github.com/fern-lang/fernc/internal/ctxlog"
	"github.com/fern-lang/fernc/internal/module"
)

// Scheduler walks the module graph in dependency order, skipping fresh
// modules and delegating codegen for stale ones through the Action
// interface. Modules with no dependency edge between them compile
// concurrently on a worker pool.
type Scheduler struct {
	graph   *module.Graph
	action  Action
	workers int
}

// NewScheduler creates a scheduler over the given graph and backend.
func NewScheduler(graph *module.Graph, action Action, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{graph: graph, action: action, workers: workers}
}

// Result summarizes one completed walk.
type Result struct {
	// Compiled lists the modules that were recompiled, sorted by name.
	Compiled []string

	// Skipped lists the modules reused from cache, sorted by name.
	Skipped []string

	// Warnings holds every warning diagnostic collected during the walk.
	Warnings hcl.Diagnostics
}

// Node execution states.
const (
	statePending int32 = iota
	stateDone
	stateCached
	stateFailed
)

// schedNode is one vertex of the walk.
type schedNode struct {
	mod        *module.Module
	deps       []*schedNode
	dependents []*schedNode
	stale      bool

	depCount atomic.Int32
	state    atomic.Int32
	skipOnce sync.Once

	// diags and err are written only by the goroutine that owns the node;
	// the WaitGroup provides the happens-before edge for the final read.
	diags hcl.Diagnostics
	err   error
}

// Run executes the walk. It returns a CompileError when any front-end
// diagnostic of error severity was produced, a wrapped ErrInternal on a
// backend contract violation, and a plain error for an invalid graph.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	order, err := s.graph.TopoOrder()
	if err != nil {
		return nil, fmt.Errorf("invalid module graph: %w", err)
	}

	// Staleness pre-pass, in dependency order: a module's effective input
	// stamp is its own source stamp combined with every dependency's
	// effective input stamp, so staleness propagates transitively.
	nodes := make(map[string]*schedNode, len(order))
	effective := make(map[string]Stamp, len(order))
	for _, name := range order {
		mod, _ := s.graph.Lookup(name)
		n := &schedNode{mod: mod}

		in := s.action.InputStamp(name)
		for _, imp := range mod.Imports {
			dep := nodes[imp]
			n.deps = append(n.deps, dep)
			dep.dependents = append(dep.dependents, n)
			in = Combine(in, effective[imp])
		}
		effective[name] = in

		out := s.action.OutputStamp(name)
		n.stale = out.Kind == Absent || in.Kind == AlwaysRebuild || out.Time.Before(in.Time)
		n.depCount.Store(int32(len(n.deps)))
		nodes[name] = n
	}

	readyChan := make(chan *schedNode, len(nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(len(nodes))

	rootCount := 0
	for _, name := range order {
		if n := nodes[name]; n.depCount.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Scheduler starting walk.", "modules", len(nodes), "roots", rootCount, "workers", s.workers)

	for i := 0; i < s.workers; i++ {
		go s.worker(runCtx, readyChan, cancel, &wg)
	}

	wg.Wait()
	close(readyChan)

	result := &Result{}
	var all hcl.Diagnostics
	var internalErr error
	for _, name := range order {
		n := nodes[name]
		all = append(all, n.diags...)
		if n.err != nil && internalErr == nil {
			internalErr = n.err
		}
		switch n.state.Load() {
		case stateDone:
			result.Compiled = append(result.Compiled, name)
		case stateCached:
			result.Skipped = append(result.Skipped, name)
		}
	}
	sort.Strings(result.Compiled)
	sort.Strings(result.Skipped)
	SortDiagnostics(all)

	if internalErr != nil {
		return nil, internalErr
	}
	if all.HasErrors() {
		return nil, &CompileError{Diags: all}
	}
	for _, d := range all {
		if d.Severity == hcl.DiagWarning {
			result.Warnings = append(result.Warnings, d)
		}
	}
	logger.Debug("Scheduler walk complete.", "compiled", len(result.Compiled), "skipped", len(result.Skipped))
	return result, nil
}

// worker is the processing loop of one pool member.
func (s *Scheduler) worker(ctx context.Context, readyChan chan *schedNode, cancel context.CancelFunc, wg *sync.WaitGroup) {
	logger := ctxlog.FromContext(ctx)

	for n := range readyChan {
		if ctx.Err() != nil {
			// A node drained after cancellation never decrements its
			// dependents, so they must be released the same way a failed
			// node's dependents are.
			n.skipOnce.Do(func() {
				n.state.Store(stateFailed)
				s.skipDependents(n, wg)
				wg.Done()
			})
			continue
		}

		if !n.stale {
			s.action.Progress(Event{Module: n.mod.Name, Kind: EventCached})
			n.state.Store(stateCached)
		} else {
			s.action.Progress(Event{Module: n.mod.Name, Kind: EventCompile})
			if !s.compileNode(ctx, n) {
				logger.Debug("Module compilation failed, aborting remaining walk.", "module", n.mod.Name)
				n.state.Store(stateFailed)
				cancel()
				s.skipDependents(n, wg)
				wg.Done()
				continue
			}
			n.state.Store(stateDone)
		}

		for _, dep := range n.dependents {
			if dep.depCount.Add(-1) == 0 {
				readyChan <- dep
			}
		}
		wg.Done()
	}
}

// compileNode gathers dependency externs and delegates codegen. It returns
// false when the node failed.
func (s *Scheduler) compileNode(ctx context.Context, n *schedNode) bool {
	depExterns := make(map[string]*module.Externs, len(n.mod.Imports))
	for _, imp := range n.mod.Imports {
		ex, err := s.action.ReadExterns(imp)
		if err != nil {
			n.err = fmt.Errorf("reading externs of %s for %s: %w", imp, n.mod.Name, err)
			return false
		}
		depExterns[imp] = ex
	}

	diags := n.diags
	externs, cgDiags := s.action.Codegen(ctx, n.mod, s.graph.Foreign(n.mod.Name), depExterns)
	diags = append(diags, cgDiags...)
	n.diags = diags
	if cgDiags.HasErrors() {
		return false
	}
	if externs == nil {
		n.err = fmt.Errorf("codegen of %s returned no externs: %w", n.mod.Name, ErrInternal)
		return false
	}
	return true
}

// skipDependents transitively marks downstream nodes as failed. Nodes with a
// failed ancestor never reach a depCount of zero, so this is the only place
// their WaitGroup slot is released.
func (s *Scheduler) skipDependents(n *schedNode, wg *sync.WaitGroup) {
	for _, dep := range n.dependents {
		dep.skipOnce.Do(func() {
			dep.state.Store(stateFailed)
			wg.Done()
			s.skipDependents(dep, wg)
		})
	}
}
