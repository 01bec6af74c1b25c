package babz

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Engine/Worker observability.
const (
	EngineNodesTotal              = metricz.Key("engine.nodes.total")
	EngineFailuresTotal           = metricz.Key("engine.failures.total")
	EngineSolutionsTotal          = metricz.Key("engine.solutions.total")
	EngineStealsTotal             = metricz.Key("engine.steals.total")
	EngineStealAttemptsTotal      = metricz.Key("engine.steal_attempts.total")
	EngineContractViolationsTotal = metricz.Key("engine.contract_violations.total")
	EngineBusyWorkers             = metricz.Key("engine.busy_workers")
	EngineQueuedSolutions         = metricz.Key("engine.queued_solutions")
)

// Span names for Engine/Worker tracing.
const (
	EngineNextSpan     = tracez.Key("engine.next")
	EngineSolutionSpan = tracez.Key("engine.solution")
	WorkerFindSpan     = tracez.Key("worker.find")
)

// Span tags.
const (
	TagEngineName     = tracez.Tag("engine.name")
	TagWorkerIndex    = tracez.Tag("worker.index")
	TagStealSucceeded = tracez.Tag("worker.steal_succeeded")
	TagStealDepth     = tracez.Tag("worker.steal_depth")
	TagSolutionsQueue = tracez.Tag("engine.queued_solutions")
	TagStopped        = tracez.Tag("engine.stopped")
)

// Hook event keys.
const (
	EventSolution  = hookz.Key("engine.solution")
	EventIdle      = hookz.Key("engine.idle")
	EventStop      = hookz.Key("engine.stop")
	EventSteal     = hookz.Key("engine.steal")
	EventTerminate = hookz.Key("engine.terminate")
)

// EngineEvent is the payload delivered to hookz listeners for every engine
// lifecycle transition, mirroring the teacher library's flat RetryEvent
// shape rather than one bespoke struct per event kind.
type EngineEvent struct {
	// WorkerIndex identifies the worker that triggered this event, or -1 for
	// engine-wide events with no single originating worker.
	WorkerIndex int
	// StealSucceeded is meaningful only for EventSteal.
	StealSucceeded bool
	// StealDepth is the depth of the stolen node, meaningful only when
	// StealSucceeded is true.
	StealDepth int
	// QueuedSolutions is the solution-queue depth right after the solution
	// was queued; it is set only for EventSolution and is 0 otherwise.
	QueuedSolutions int
	// Stats is left at its zero value by every event the engine emits.
	Stats Stats
	// Timestamp is when the event occurred, taken from the Engine's clock.
	Timestamp time.Time
}

// observability bundles the metricz/tracez/hookz trio the Engine owns,
// constructed once in New and shared by every Worker via a back-reference,
// grounded on retry.go's NewRetry initialization of the same three
// components.
type observability struct {
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[EngineEvent]
}

func newObservability() *observability {
	registry := metricz.New()
	registry.Counter(EngineNodesTotal)
	registry.Counter(EngineFailuresTotal)
	registry.Counter(EngineSolutionsTotal)
	registry.Counter(EngineStealsTotal)
	registry.Counter(EngineStealAttemptsTotal)
	registry.Counter(EngineContractViolationsTotal)
	registry.Gauge(EngineBusyWorkers)
	registry.Gauge(EngineQueuedSolutions)

	return &observability{
		metrics: registry,
		tracer:  tracez.New(),
		hooks:   hookz.New[EngineEvent](),
	}
}

func (o *observability) emit(key hookz.Key, ev EngineEvent) {
	if o.hooks.ListenerCount(key) > 0 {
		_ = o.hooks.Emit(context.Background(), key, ev) //nolint:errcheck // best-effort event delivery, no request-scoped context on the exploration loop
	}
}

// close tears down the tracer and the hook registry, mirroring retry.go's
// own Close(): both sub-closes fire in sequence and their results are
// discarded, since neither tracez.Tracer.Close nor hookz.Hooks.Close has
// its return value captured anywhere in the teacher's own Close methods.
func (o *observability) close() {
	o.tracer.Close()
	o.hooks.Close()
}
