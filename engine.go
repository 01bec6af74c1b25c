package babz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Engine owns a fixed pool of Workers, the shared best solution, the
// solution queue, and the synchronization machinery that coordinates them:
// the broadcast command, the wait gate, the search event, and the two-phase
// termination handshake.
//
//nolint:govet // fieldalignment: field grouping favors readability over the handful of padding bytes saved
type Engine struct {
	opts *Options
	obs  *observability

	workers []*Worker

	cmdVal atomic.Int32

	mWait          gate
	mWaitTerminate gate

	mSearch    sync.Mutex
	solutions  []Space
	best       Space
	nBusy      int
	hasStopped bool
	eSearch    *event

	mTerminate       sync.Mutex
	nNotAcknowledged int
	nNotTerminated   int
	eAcknowledged    *event
	eTerminate       *event

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New constructs an Engine with root as worker 0's initial Space, spawns one
// goroutine per configured thread, and parks them all on the wait gate
// before returning: every worker's first action is to park, exactly as the
// lifecycle in the package's design requires.
func New(_ context.Context, root Space, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:          opts,
		obs:           newObservability(),
		eSearch:       newEvent(),
		eAcknowledged: newEvent(),
		eTerminate:    newEvent(),
	}
	e.nBusy = int(opts.Threads)
	e.nNotAcknowledged = int(opts.Threads)
	e.nNotTerminated = int(opts.Threads)
	e.cmdVal.Store(int32(cmdWait))

	e.workers = make([]*Worker, opts.Threads)
	for i := range e.workers {
		var initial Space
		if i == 0 {
			initial = root
		}
		e.workers[i] = newWorker(e, i, initial)
	}

	e.mWait.holdForParking()

	e.wg.Add(len(e.workers))
	for _, w := range e.workers {
		go func(w *Worker) {
			defer e.wg.Done()
			w.run()
		}(w)
	}

	return e, nil
}

func (e *Engine) commandSnapshot() cmd {
	return cmd(e.cmdVal.Load())
}

// block parks the worker population: set the command to cmdWait, then
// acquire the gate so every worker's next park call blocks.
func (e *Engine) block() {
	e.cmdVal.Store(int32(cmdWait))
	e.mWait.holdForParking()
}

// release sets the broadcast command and then releases the gate, in that
// order, so a worker racing through without ever blocking still observes
// the new command.
func (e *Engine) release(c cmd) {
	e.cmdVal.Store(int32(c))
	e.mWait.release()
}

func (e *Engine) parkOnWait() {
	e.mWait.parkHere()
}

func (e *Engine) parkOnTerminate() {
	e.mWaitTerminate.parkHere()
}

func (e *Engine) numWorkers() int { return len(e.workers) }

func (e *Engine) workerAt(i int) *Worker { return e.workers[i] }

// acknowledge is called by a worker that has observed cmdTerminate and is
// about to park on the terminate gate.
func (e *Engine) acknowledge() {
	e.mTerminate.Lock()
	e.nNotAcknowledged--
	if e.nNotAcknowledged < 0 {
		e.mTerminate.Unlock()
		violate("n_not_acknowledged >= 0", "acknowledge() called with count already at 0")
	}
	fire := e.nNotAcknowledged == 0
	e.mTerminate.Unlock()
	if fire {
		e.eAcknowledged.Fire()
	}
}

// terminated is called by a worker immediately before its run loop returns.
func (e *Engine) terminated() {
	e.mTerminate.Lock()
	e.nNotTerminated--
	if e.nNotTerminated < 0 {
		e.mTerminate.Unlock()
		violate("n_not_terminated >= 0", "terminated() called with count already at 0")
	}
	fire := e.nNotTerminated == 0
	e.mTerminate.Unlock()
	if fire {
		e.eTerminate.Fire()
	}
}

// signalLocked evaluates the precondition for firing eSearch. Callers must
// hold mSearch.
func (e *Engine) signalLocked() bool {
	return len(e.solutions) == 0 && e.nBusy > 0 && !e.hasStopped
}

// idle is called by a worker whose path has gone empty.
func (e *Engine) idle(workerIndex int) {
	e.mSearch.Lock()
	pre := e.signalLocked()
	e.nBusy--
	if e.nBusy < 0 {
		e.mSearch.Unlock()
		violate("n_busy >= 0", "idle() decremented n_busy below 0")
	}
	nBusy := e.nBusy
	fire := pre && nBusy == 0
	e.mSearch.Unlock()

	e.obs.metrics.Gauge(EngineBusyWorkers).Set(float64(nBusy))
	e.obs.emit(EventIdle, EngineEvent{WorkerIndex: workerIndex, Timestamp: e.opts.getClock().Now()})
	if fire {
		e.eSearch.Fire()
	}
}

// busy is called by the victim of a successful steal, on behalf of the
// thief becoming non-idle, before the stolen Space reaches the thief's cur.
func (e *Engine) busy() {
	e.mSearch.Lock()
	if e.nBusy <= 0 {
		e.mSearch.Unlock()
		violate("n_busy > 0", "busy() called with n_busy == %d", e.nBusy)
	}
	e.nBusy++
	nBusy := e.nBusy
	e.mSearch.Unlock()

	e.obs.metrics.Gauge(EngineBusyWorkers).Set(float64(nBusy))
}

// stop is called by a worker whose stop predicate triggered.
func (e *Engine) stop(workerIndex int) {
	e.mSearch.Lock()
	fire := e.signalLocked()
	e.hasStopped = true
	e.mSearch.Unlock()

	e.obs.emit(EventStop, EngineEvent{WorkerIndex: workerIndex, Timestamp: e.opts.getClock().Now()})
	if fire {
		e.eSearch.Fire()
	}
}

// solution is called by a worker that evaluated a node as Solved. If an
// engine-wide best already exists, s is re-checked against it (a
// concurrently published better solution may have superseded s); otherwise
// s becomes the new best outright. Every worker is then broadcast the new
// bound via its own better(), called while mSearch is held; better takes
// only that worker's own mutex.
func (e *Engine) solution(workerIndex int, s Space) {
	_, span := e.obs.tracer.StartSpan(context.Background(), EngineSolutionSpan)
	defer span.Finish()
	span.SetTag(TagWorkerIndex, fmt.Sprintf("%d", workerIndex))

	e.mSearch.Lock()
	if e.best != nil {
		s.Constrain(e.best)
		if s.Status(&Stats{}) == Failed {
			e.mSearch.Unlock()
			span.SetTag(TagStopped, "superseded")
			return
		}
	}
	e.best = s.Clone(false)
	best := e.best

	for _, w := range e.workers {
		w.better(best)
	}

	fire := e.signalLocked()
	e.solutions = append(e.solutions, s)
	queued := len(e.solutions)
	e.mSearch.Unlock()

	e.obs.metrics.Counter(EngineSolutionsTotal).Inc()
	e.obs.metrics.Gauge(EngineQueuedSolutions).Set(float64(queued))
	span.SetTag(TagSolutionsQueue, fmt.Sprintf("%d", queued))
	e.obs.emit(EventSolution, EngineEvent{WorkerIndex: workerIndex, QueuedSolutions: queued, Timestamp: e.opts.getClock().Now()})

	if fire {
		e.eSearch.Fire()
	}
}

// emitSteal reports one find() attempt's outcome via hookz, win or lose.
func (e *Engine) emitSteal(workerIndex int, succeeded bool, depth int) {
	e.obs.emit(EventSteal, EngineEvent{
		WorkerIndex:    workerIndex,
		StealSucceeded: succeeded,
		StealDepth:     depth,
		Timestamp:      e.opts.getClock().Now(),
	})
}

func (e *Engine) popSolutionLocked() Space {
	s := e.solutions[0]
	e.solutions = e.solutions[1:]
	return s
}

// Next returns the next solution found, blocking until one is available, the
// search is exhausted, or a stop triggers. It returns (nil, false) in the
// latter two cases; callers distinguish them via Stopped.
func (e *Engine) Next(ctx context.Context) (Space, bool) {
	_, span := e.obs.tracer.StartSpan(ctx, EngineNextSpan)
	defer span.Finish()

	e.mSearch.Lock()
	if len(e.solutions) > 0 {
		s := e.popSolutionLocked()
		e.mSearch.Unlock()
		span.SetTag(TagStopped, "false")
		return s, true
	}
	if e.nBusy == 0 {
		e.mSearch.Unlock()
		span.SetTag(TagStopped, "false")
		return nil, false
	}
	e.hasStopped = false
	e.mSearch.Unlock()

	e.release(cmdWork)

	for {
		e.eSearch.Wait()
		e.eSearch.Reset()

		e.mSearch.Lock()
		if len(e.solutions) > 0 {
			s := e.popSolutionLocked()
			e.mSearch.Unlock()
			e.block()
			span.SetTag(TagStopped, "false")
			return s, true
		}
		if e.nBusy == 0 || e.hasStopped {
			stopped := e.hasStopped
			e.mSearch.Unlock()
			e.block()
			span.SetTag(TagStopped, boolString(stopped))
			return nil, false
		}
		e.mSearch.Unlock()
	}
}

// Stopped reports whether the most recently consumed stop latched during the
// last Next call that observed it.
func (e *Engine) Stopped() bool {
	e.mSearch.Lock()
	defer e.mSearch.Unlock()
	return e.hasStopped
}

// Statistics sums every worker's statistics snapshot. Each worker's own
// snapshot is internally consistent; the sum is not globally atomic across
// workers.
func (e *Engine) Statistics() Stats {
	var total Stats
	for _, w := range e.workers {
		total.Add(w.snapshot())
	}
	return total
}

// Metrics returns the metricz registry backing this engine's counters and
// gauges.
func (e *Engine) Metrics() *metricz.Registry {
	return e.obs.metrics
}

// Tracer returns the tracez tracer backing this engine's spans.
func (e *Engine) Tracer() *tracez.Tracer {
	return e.obs.tracer
}

// OnSolution registers a handler fired whenever a solution is published.
func (e *Engine) OnSolution(handler func(context.Context, EngineEvent) error) error {
	_, err := e.obs.hooks.Hook(EventSolution, handler)
	return err
}

// OnIdle registers a handler fired whenever a worker announces idleness.
func (e *Engine) OnIdle(handler func(context.Context, EngineEvent) error) error {
	_, err := e.obs.hooks.Hook(EventIdle, handler)
	return err
}

// OnStop registers a handler fired whenever the stop predicate triggers.
func (e *Engine) OnStop(handler func(context.Context, EngineEvent) error) error {
	_, err := e.obs.hooks.Hook(EventStop, handler)
	return err
}

// OnSteal registers a handler fired after every find() attempt, successful
// or not (see EngineEvent.StealSucceeded).
func (e *Engine) OnSteal(handler func(context.Context, EngineEvent) error) error {
	_, err := e.obs.hooks.Hook(EventSteal, handler)
	return err
}

// OnTerminate registers a handler fired once Close completes teardown.
func (e *Engine) OnTerminate(handler func(context.Context, EngineEvent) error) error {
	_, err := e.obs.hooks.Hook(EventTerminate, handler)
	return err
}

// Close runs the two-phase termination handshake and tears down
// observability resources. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mWaitTerminate.holdForParking()
		e.release(cmdTerminate)
		e.eAcknowledged.Wait()
		e.mWaitTerminate.release()
		e.eTerminate.Wait()
		e.wg.Wait()

		e.obs.emit(EventTerminate, EngineEvent{WorkerIndex: -1, Timestamp: e.opts.getClock().Now()})
		e.obs.close()
		e.workers = nil
		e.solutions = nil
		e.best = nil
	})
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
