// Package babz implements the coordination core of a parallel Branch-and-Bound
// search engine: a fixed pool of worker goroutines explores a tree of opaque
// search states ("Spaces"), sharing a monotonically improving best solution
// and cooperating through work stealing when individual subtrees run dry.
//
// # Overview
//
// The engine owns a slice of Workers, a FIFO of solutions awaiting delivery,
// and the synchronization machinery (a wait gate, a search event, and a
// two-phase termination handshake) that lets a caller drive exploration one
// solution at a time via Next, without the caller ever touching a Worker or a
// Space directly.
//
// babz does not know how to evaluate a search node, enumerate its branching
// alternatives, or apply one: those are supplied externally by implementing
// the Space interface. babz only knows how to explore the tree that
// interface describes, in parallel, with a shrinking bound.
//
// # Core Concepts
//
//   - Space: the external search-node contract (Status, Clone, Constrain, Commit, Description).
//   - Path: a per-worker stack of branching entries with bounded recomputation.
//   - Worker: one goroutine, one Path, one current Space, one mutex.
//   - Engine: owns the Workers, the best-known solution, and the command/gate protocol.
//
// # Usage Example
//
//	type myOptions struct{ /* ... */ }
//
//	root := myProblem.RootSpace()
//	opts := babz.NewOptions().WithThreads(4).WithCopyingDistance(8)
//
//	engine, err := babz.New(context.Background(), root, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	for {
//	    solution, ok := engine.Next(context.Background())
//	    if !ok {
//	        break
//	    }
//	    fmt.Println("improved solution", solution)
//	}
//
// # Observability
//
// The engine exposes metrics, tracing spans, and lifecycle hooks through the
// same trio of libraries used throughout this dependency's ecosystem:
// metricz counters and gauges, tracez spans for Next and solution broadcast,
// and hookz events for solution/idle/stop/steal/terminate transitions. See
// Engine.Metrics, Engine.Tracer, and Engine.OnSolution and friends.
//
// # Non-goals
//
// This package does not implement distributed or multi-host search, cost-based
// work redistribution, speculative or portfolio parallelism, or fault
// tolerance against a crashing worker goroutine. Workers are trusted
// cooperating goroutines within a single process.
package babz
