package babz

import (
	"context"
	"fmt"
	"sync"
)

// Worker owns one Path, one current frontier Space, and the mutex guarding
// both, and runs the exploration loop that evaluates nodes, pushes
// branchings, and either steals work when idle or publishes solutions and
// idleness/stop notifications back to its Engine.
//
//nolint:govet // fieldalignment: field grouping favors readability over the handful of padding bytes saved
type Worker struct {
	engine *Engine
	index  int

	m     sync.Mutex
	path  *Path
	cur   Space
	d     int
	mark  int
	best  Space
	idle  bool
	stats Stats
}

// newWorker constructs a Worker. initial is the root Space for worker 0 and
// nil for every other worker. Unlike the C++ original this engine was
// distilled from, there is no intermediate nil-then-reassign dance: Go has
// no base-class constructor ordering constraint forcing one, so the root
// space is simply assigned once.
func newWorker(engine *Engine, index int, initial Space) *Worker {
	return &Worker{engine: engine, index: index, path: newPath(), cur: initial}
}

// run is the Worker's goroutine body: read the engine's broadcast command
// and dispatch, until cmdTerminate is observed and the termination handshake
// completes.
func (w *Worker) run() {
	for {
		switch w.engine.commandSnapshot() {
		case cmdWait:
			w.engine.parkOnWait()
		case cmdTerminate:
			w.engine.acknowledge()
			w.engine.parkOnTerminate()
			w.engine.terminated()
			return
		case cmdWork:
			w.work()
		default:
			violate("cmd", "unknown command value observed by worker %d", w.index)
		}
	}
}

// work performs one WORK step: Cases A-D of the exploration loop.
func (w *Worker) work() {
	w.m.Lock()

	if w.idle {
		w.m.Unlock()
		w.find()
		return
	}

	if w.cur != nil {
		if stop := w.engine.opts.Stop; stop != nil {
			snapshot := w.stats
			snapshot.Memory = w.path.size()
			if stop(&snapshot, w.path.entriesCount()) {
				w.m.Unlock()
				w.engine.stop(w.index)
				return
			}
		}

		status := w.cur.Status(&w.stats)
		w.stats.Nodes++
		w.engine.obs.metrics.Counter(EngineNodesTotal).Inc()

		switch status {
		case Failed:
			w.stats.Failures++
			w.cur = nil
			w.m.Unlock()
			w.engine.obs.metrics.Counter(EngineFailuresTotal).Inc()
			return

		case Solved:
			w.stats.Solutions++
			_ = w.cur.Description() // forces finalization of the solved node
			s := w.cur.Clone(false)
			w.cur = nil
			w.m.Unlock()
			w.engine.solution(w.index, s)
			return

		case Branch:
			var maybeClone Space
			if w.d == 0 || uint(w.d) >= w.engine.opts.CD {
				maybeClone = w.cur.Clone(true)
				w.d = 1
			} else {
				w.d++
			}
			desc := w.path.push(w.cur, maybeClone)
			w.cur.Commit(desc, 0)
			w.m.Unlock()
			return

		default:
			w.m.Unlock()
			violate("space.status", "worker %d observed unknown NodeStatus %d", w.index, int(status))
			return
		}
	}

	// cur == nil: advance the path or go idle.
	if w.path.next() {
		d := w.d
		cur := w.path.recompute(&d, w.engine.opts.AD, w.best, w.mark, &w.stats.Restarts)
		w.d = d
		w.cur = cur
		w.stats.Depth = uint64(w.path.entriesCount())
		w.m.Unlock()
		return
	}

	w.idle = true
	w.m.Unlock()
	w.engine.idle(w.index)
}

// find is called by an idle worker to scan peers in index order (starting
// just past its own index and wrapping once, reducing contention on
// low-index workers relative to always starting at 0 — see the package's
// adopted scan-order redesign) and attempt to steal a sibling subtree.
func (w *Worker) find() {
	_, span := w.engine.obs.tracer.StartSpan(context.Background(), WorkerFindSpan)
	defer span.Finish()
	span.SetTag(TagWorkerIndex, fmt.Sprintf("%d", w.index))

	n := w.engine.numWorkers()
	for k := 1; k < n; k++ {
		i := (w.index + k) % n
		peer := w.engine.workerAt(i)

		w.engine.obs.metrics.Counter(EngineStealAttemptsTotal).Inc()
		stolen, depth, ok := peer.attemptSteal()
		if !ok {
			continue
		}

		w.m.Lock()
		w.idle = false
		w.d = 0
		w.cur = stolen
		w.mark = 0
		if w.best != nil {
			w.cur.Constrain(w.best)
		}
		w.stats.Depth = uint64(depth)
		w.m.Unlock()

		w.engine.obs.metrics.Counter(EngineStealsTotal).Inc()
		span.SetTag(TagStealSucceeded, "true")
		span.SetTag(TagStealDepth, fmt.Sprintf("%d", depth))
		w.engine.emitSteal(w.index, true, depth)
		return
	}

	span.SetTag(TagStealSucceeded, "false")
	w.engine.emitSteal(w.index, false, 0)
}

// attemptSteal is called by a thief on this worker, the potential victim. It
// checks the cheap lock-free summary first, then attempts the real steal
// under this worker's own mutex, calling busy() on the engine before
// returning so the busy counter reflects the future activity before the
// thief's cur is set.
func (w *Worker) attemptSteal() (Space, int, bool) {
	if !w.path.stealable() {
		return nil, 0, false
	}

	w.m.Lock()
	stolen, depth, ok := w.path.steal()
	w.m.Unlock()
	if !ok {
		return nil, 0, false
	}

	w.engine.busy()
	return stolen, depth, true
}

// better accepts an externally published better solution: drop the local
// best, store a deep (non-sharing) clone, re-arm I1 by resetting mark to the
// current path length, and constrain the live frontier if one exists. The
// engine calls better while holding mSearch, so better takes only this
// worker's own mutex and never acquires mSearch; nothing but this discipline
// prevents it, since the worker's engine back-reference reaches mSearch.
func (w *Worker) better(b Space) {
	w.m.Lock()
	w.best = b.Clone(false)
	w.mark = w.path.entriesCount()
	if w.cur != nil {
		w.cur.Constrain(w.best)
	}
	w.m.Unlock()
}

// snapshot returns a consistent copy of this worker's statistics, including
// the path's current memory estimate.
func (w *Worker) snapshot() Stats {
	w.m.Lock()
	defer w.m.Unlock()
	s := w.stats
	s.Memory = w.path.size()
	return s
}
