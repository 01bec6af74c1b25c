package babz

import (
	"runtime"

	"github.com/zoobzio/clockz"
)

// StopPredicate is consulted by every Worker before each node expansion. It
// receives the worker's current statistics snapshot and the size of its
// path, and returns true to request a stop. Once any worker's predicate
// fires, the Engine latches Stopped until the next Next call.
type StopPredicate func(stats *Stats, pathSize int) bool

// Options configures an Engine. Construct with NewOptions and adjust with the
// fluent With* setters, mirroring the teacher library's WorkerPool/Retry/
// Timeout builder convention.
//
//nolint:govet // fieldalignment: field grouping favors readability over the handful of padding bytes saved
type Options struct {
	// Threads is the number of worker goroutines. Must be >= 1.
	Threads uint
	// CD is the copying distance: the maximum number of path entries between
	// successive stored clones. Must be >= 1.
	CD uint
	// AD is the adaptive distance: the maximum recomputation traversal before
	// a midpoint clone is materialized. Must be >= 1.
	AD uint
	// Stop is consulted at every node expansion; nil means never stop.
	Stop StopPredicate
	// Clock is used only for observability timestamps, never on the hot
	// exploration path. Defaults to clockz.RealClock.
	Clock clockz.Clock
}

// NewOptions returns Options with the teacher-library's usual sane defaults:
// one worker per logical CPU, a copying distance of 8, and an adaptive
// distance of 32 (Gecode's own published defaults for c_d/a_d).
func NewOptions() *Options {
	return &Options{
		Threads: uint(runtime.GOMAXPROCS(0)),
		CD:      8,
		AD:      32,
		Clock:   clockz.RealClock,
	}
}

// WithThreads sets the number of worker goroutines.
func (o *Options) WithThreads(n uint) *Options {
	o.Threads = n
	return o
}

// WithCopyingDistance sets the copying distance (c_d).
func (o *Options) WithCopyingDistance(cd uint) *Options {
	o.CD = cd
	return o
}

// WithAdaptiveDistance sets the adaptive recomputation distance (a_d).
func (o *Options) WithAdaptiveDistance(ad uint) *Options {
	o.AD = ad
	return o
}

// WithStop sets the stop predicate.
func (o *Options) WithStop(stop StopPredicate) *Options {
	o.Stop = stop
	return o
}

// WithClock sets a custom clock, primarily for deterministic tests.
func (o *Options) WithClock(clock clockz.Clock) *Options {
	o.Clock = clock
	return o
}

// validate checks the invariants New requires before spawning workers.
func (o *Options) validate() error {
	if o.Threads == 0 {
		return &Error{Op: "New", Err: ErrInvalidThreads}
	}
	if o.CD == 0 {
		return &Error{Op: "New", Err: ErrInvalidCopyingDistance}
	}
	if o.AD == 0 {
		return &Error{Op: "New", Err: ErrInvalidAdaptiveDistance}
	}
	return nil
}

func (o *Options) getClock() clockz.Clock {
	if o.Clock == nil {
		return clockz.RealClock
	}
	return o.Clock
}
