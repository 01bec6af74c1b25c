package babz_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/babz"
	"github.com/zoobzio/babz/spacemock"
)

// stopOnce returns a StopPredicate that fires exactly once, the first time
// the reporting worker's cumulative node count reaches n, and never again —
// unlike spacemock.StopAfterNodes, whose threshold stays crossed forever
// once a worker's monotonically increasing node count passes it.
func stopOnce(n uint64) babz.StopPredicate {
	var triggered atomic.Bool
	return func(stats *babz.Stats, _ int) bool {
		if stats.Nodes < n {
			return false
		}
		return !triggered.Swap(true)
	}
}

func nextWithTimeout(t *testing.T, e *babz.Engine, d time.Duration) (babz.Space, bool) {
	t.Helper()
	type result struct {
		s  babz.Space
		ok bool
	}
	ch := make(chan result, 1)
	go func() {
		s, ok := e.Next(context.Background())
		ch <- result{s, ok}
	}()
	select {
	case r := <-ch:
		return r.s, r.ok
	case <-time.After(d):
		t.Fatal("Next did not return within the deadline")
		return nil, false
	}
}

// Scenario 2: a single-node tree with no branchings yields exactly one
// solution, then exhausts.
func TestSingleSolution(t *testing.T) {
	root := spacemock.SingleLeafSolved()
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	s, ok := nextWithTimeout(t, e, 2*time.Second)
	if !ok || s == nil {
		t.Fatal("expected a solution")
	}

	if _, ok := nextWithTimeout(t, e, 2*time.Second); ok {
		t.Fatal("expected exhaustion after the only solution")
	}
	if e.Stopped() {
		t.Fatal("exhaustion must not be reported as a stop")
	}
}

// Scenario 1: a tree with no solutions at all exhausts immediately, with Stopped
// remaining false (exhaustion is not the same condition as a triggered stop).
func TestNoSolutions(t *testing.T) {
	root := spacemock.EmptyRoot()
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if _, ok := nextWithTimeout(t, e, 2*time.Second); ok {
		t.Fatal("expected no solutions from an immediately-failed root")
	}
	if e.Stopped() {
		t.Fatal("exhaustion must not be reported as a stop")
	}
}

// P1: solutions surface in improving order. BinaryTree's leaf values fall
// from left to right (value = 2^depth-1-index), so a single-threaded
// depth-first traversal must see strictly decreasing values.
func TestSolutionsImprove(t *testing.T) {
	root := spacemock.BinaryTree(3)
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	var values []int
	for {
		s, ok := nextWithTimeout(t, e, 3*time.Second)
		if !ok {
			break
		}
		ts, ok := s.(*spacemock.TreeSpace)
		if !ok {
			t.Fatalf("expected *spacemock.TreeSpace, got %T", s)
		}
		values = append(values, ts.Value())
	}

	if len(values) == 0 {
		t.Fatal("expected at least one solution")
	}
	for i := 1; i < len(values); i++ {
		if values[i] >= values[i-1] {
			t.Fatalf("solutions did not strictly improve: %v", values)
		}
	}
	if last := values[len(values)-1]; last != 0 {
		t.Fatalf("expected the final, best solution to have value 0, got %d", last)
	}
}

// P2: a depth-4 tree explored with several workers must still surface the
// optimum (value 0) before exhausting. Not every leaf surfaces: once more
// than one worker is publishing concurrently and constraining against each
// other's bound, superseded and pruned leaves are never delivered.
func TestConcurrentWorkersFindOptimum(t *testing.T) {
	root := spacemock.BinaryTree(4)
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	seen := map[int]bool{}
	for {
		s, ok := nextWithTimeout(t, e, 5*time.Second)
		if !ok {
			break
		}
		ts := s.(*spacemock.TreeSpace)
		seen[ts.Value()] = true
	}

	if len(seen) == 0 {
		t.Fatal("expected at least one solution across all workers")
	}
	if !seen[0] {
		t.Fatal("the best solution (leaf 0) must always be found eventually")
	}
}

// P5: a stop predicate halts the search and latches Stopped until the next
// Next call clears it and resumes exploration.
func TestStopPredicate(t *testing.T) {
	root := spacemock.BinaryTree(6)
	opts := babz.NewOptions().
		WithThreads(1).
		WithStop(stopOnce(3))
	e, err := babz.New(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	_, ok := nextWithTimeout(t, e, 2*time.Second)
	if ok {
		t.Fatal("expected the stop predicate to prevent a solution this early")
	}
	if !e.Stopped() {
		t.Fatal("expected Stopped() to report true after a triggered stop")
	}

	found := 0
	for {
		_, ok := nextWithTimeout(t, e, 5*time.Second)
		if !ok {
			break
		}
		found++
	}
	if found == 0 {
		t.Fatal("expected the resumed search to find at least one solution after the stop cleared")
	}
	if e.Stopped() {
		t.Fatal("expected Stopped() to report false once the resumed search exhausts the tree")
	}
}

// Scenario: Statistics sums node counts across all workers and is monotonically
// non-decreasing as the search proceeds.
func TestStatisticsAccumulate(t *testing.T) {
	root := spacemock.BinaryTree(3)
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	before := e.Statistics()
	for {
		if _, ok := nextWithTimeout(t, e, 3*time.Second); !ok {
			break
		}
	}
	after := e.Statistics()

	if after.Nodes < before.Nodes {
		t.Fatal("node count must not decrease")
	}
	if after.Solutions == 0 {
		t.Fatal("expected at least one solution tallied in statistics")
	}
}

// Scenario: Close is idempotent and safe to call more than once.
func TestCloseIsIdempotent(t *testing.T) {
	root := spacemock.SingleLeafSolved()
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// Scenario 6: closing the engine mid-exploration, without waiting for
// exhaustion, must not deadlock and must not leak Spaces once the engine and
// its workers release their references.
func TestCloseDuringExplorationNoDeadlockNoLeak(t *testing.T) {
	spacemock.ResetLiveInstances()

	root := spacemock.BinaryTree(8)
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok := nextWithTimeout(t, e, 5*time.Second); !ok {
		t.Fatal("expected at least one solution before closing mid-exploration")
	}

	done := make(chan error, 1)
	go func() { done <- e.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close deadlocked while workers were still exploring")
	}

	root = nil

	var remaining int64
	for i := 0; i < 20; i++ {
		runtime.GC()
		remaining = spacemock.LiveInstances()
		if remaining == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if remaining != 0 {
		t.Fatalf("expected no leaked Space instances after Close, %d still live", remaining)
	}
}

// Scenario: an alternating tree mixes Failed and Solved leaves; the engine
// must skip the Failed ones without surfacing them as solutions.
func TestAlternatingTree(t *testing.T) {
	root := spacemock.AlternatingBinaryTree(3)
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	count := 0
	for {
		s, ok := nextWithTimeout(t, e, 2*time.Second)
		if !ok {
			break
		}
		ts := s.(*spacemock.TreeSpace)
		if ts.Index()%2 != 0 {
			t.Fatalf("expected only even-indexed leaves to surface as solutions, got index %d", ts.Index())
		}
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one solution from the even-indexed leaves")
	}
}

// Scenario: options validation rejects zero Threads before any worker
// goroutine is spawned.
func TestNewRejectsInvalidOptions(t *testing.T) {
	root := spacemock.SingleLeafSolved()
	if _, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(0)); err == nil {
		t.Fatal("expected an error for zero Threads")
	}
}

// Scenario: hooks observe the solution lifecycle.
func TestSolutionHookFires(t *testing.T) {
	root := spacemock.SingleLeafSolved()
	e, err := babz.New(context.Background(), root, babz.NewOptions().WithThreads(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	fired := make(chan babz.EngineEvent, 1)
	if err := e.OnSolution(func(_ context.Context, ev babz.EngineEvent) error {
		fired <- ev
		return nil
	}); err != nil {
		t.Fatalf("OnSolution: %v", err)
	}

	if _, ok := nextWithTimeout(t, e, 2*time.Second); !ok {
		t.Fatal("expected a solution")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnSolution hook did not fire")
	}
}
