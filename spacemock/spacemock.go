// Package spacemock provides configurable babz.Space test doubles: small
// binary search trees with a known shape and a known best leaf, so tests can
// assert on exactly which solutions an Engine finds and in what order,
// rather than depending on a real constraint kernel.
//
// The fluent configure-then-use shape (construct, then read call-relevant
// state back off the concrete type) follows the teacher library's own
// MockProcessor[T] test helper; the tree/branching content has no analog
// there and is new.
package spacemock

import (
	"runtime"
	"sync/atomic"

	"github.com/zoobzio/babz"
)

var liveInstances atomic.Int64

// LiveInstances returns the number of TreeSpace values constructed (via the
// package's tree constructors or Clone) that have not yet been garbage
// collected. It is approximate: Go only runs finalizers opportunistically,
// so callers that want a reliable reading should force a collection first.
func LiveInstances() int64 {
	return liveInstances.Load()
}

// ResetLiveInstances zeroes the counter. Call this between independent test
// cases that each want their own leak accounting.
func ResetLiveInstances() {
	liveInstances.Store(0)
}

// branchDesc is the only BranchingDesc TreeSpace ever hands out: every
// internal node is binary.
type branchDesc struct{}

func (branchDesc) Alternatives() int { return 2 }

// TreeSpace is a babz.Space over a synthetic binary tree of fixed depth.
// Each leaf has an integer value equal to total-1 minus its left-to-right
// position, so the rightmost unconstrained leaf is always the best (lowest-value) solution
// reachable from a given node: Status, Clone, Constrain, and Commit are all
// defined purely in terms of the (lo, hi, depth) range a node currently
// covers.
//
// Index and value are deliberately inverted (value(i) = total-1-i): a plain
// left-to-right depth-first traversal then visits leaf 0 (the worst value)
// first and leaf total-1 (the best, value 0) last, so exploring the tree
// with no stealing produces a genuine sequence of several improving
// solutions rather than finding the optimum on the very first leaf.
type TreeSpace struct {
	lo, hi int
	total  int
	depth  int
	bound  int64
	solved []bool // solved[i] reports whether leaf i is a Solved node; nil means all leaves solved
	failed []bool // failed[i] reports whether leaf i is a Failed node; checked before solved
}

func newTreeSpace(depth int, solved, failed []bool) *TreeSpace {
	total := 1 << uint(depth)
	ts := &TreeSpace{lo: 0, hi: total, total: total, depth: depth, bound: -1, solved: solved, failed: failed}
	track(ts)
	return ts
}

func track(ts *TreeSpace) {
	liveInstances.Add(1)
	runtime.SetFinalizer(ts, func(*TreeSpace) { liveInstances.Add(-1) })
}

// EmptyRoot returns a Space whose single node is immediately Failed: an
// empty search tree with no solutions.
func EmptyRoot() *TreeSpace {
	ts := newTreeSpace(0, nil, []bool{true})
	return ts
}

// SingleLeafSolved returns a Space whose single node is immediately Solved,
// with leaf value 0.
func SingleLeafSolved() *TreeSpace {
	return newTreeSpace(0, []bool{true}, nil)
}

// BinaryTree returns a Space covering 2^depth leaves, every one Solved, with
// leaf index i carrying value 2^depth-1-i. Exploring it depth-first with no
// stealing visits leaf 0 (the worst value) first and the optimum last,
// yielding a genuine sequence of strictly improving solutions rather than
// finding the optimum outright.
func BinaryTree(depth int) *TreeSpace {
	return newTreeSpace(depth, nil, nil)
}

// AlternatingBinaryTree returns a Space like BinaryTree but with every
// odd-indexed leaf (see Index) marked Failed instead of Solved, exercising a
// worker's Case B Failed and Solved outcomes between consecutive WORK steps.
func AlternatingBinaryTree(depth int) *TreeSpace {
	n := 1 << uint(depth)
	failed := make([]bool, n)
	for i := range failed {
		failed[i] = i%2 == 1
	}
	return newTreeSpace(depth, nil, failed)
}

func (t *TreeSpace) leafFailed(i int) bool {
	if t.failed == nil {
		return false
	}
	return t.failed[i]
}

func (t *TreeSpace) leafSolved(i int) bool {
	if t.solved == nil {
		return true
	}
	return t.solved[i]
}

// Value returns this node's value: total-1 minus its leaf index. Only
// meaningful once depth reaches 0; exported so tests can assert on which
// solution an Engine surfaced.
func (t *TreeSpace) Value() int {
	return t.total - 1 - t.lo
}

// Index returns this node's original left-to-right leaf index, the same
// index passed to AlternatingBinaryTree's solved/failed pattern. Unlike
// Value it is not inverted.
func (t *TreeSpace) Index() int {
	return t.lo
}

// bestPossible is the lowest value reachable from this node's current leaf
// range: the rightmost leaf in [lo, hi) has the smallest value under the
// total-1-index mapping.
func (t *TreeSpace) bestPossible() int64 {
	return int64(t.total - t.hi)
}

// Status implements babz.Space.
func (t *TreeSpace) Status(_ *babz.Stats) babz.NodeStatus {
	if t.bound >= 0 && t.bestPossible() >= t.bound {
		return babz.Failed
	}
	if t.depth > 0 {
		return babz.Branch
	}
	if t.leafFailed(t.lo) {
		return babz.Failed
	}
	if t.leafSolved(t.lo) {
		return babz.Solved
	}
	return babz.Failed
}

// Clone implements babz.Space. share is ignored: TreeSpace holds no mutable
// substructure worth sharing, only value fields and two read-only slices.
func (t *TreeSpace) Clone(bool) babz.Space {
	c := &TreeSpace{lo: t.lo, hi: t.hi, total: t.total, depth: t.depth, bound: t.bound, solved: t.solved, failed: t.failed}
	track(c)
	return c
}

// Constrain implements babz.Space: reference must itself be a *TreeSpace at
// a Solved leaf. Tightens the bound to reference's value if it improves on
// whatever bound is already set.
func (t *TreeSpace) Constrain(reference babz.Space) {
	r, ok := reference.(*TreeSpace)
	if !ok {
		return
	}
	v := int64(r.Value())
	if t.bound < 0 || v < t.bound {
		t.bound = v
	}
}

// Commit implements babz.Space: alt 0 takes the lower half of the current
// leaf range, alt 1 the upper half.
func (t *TreeSpace) Commit(_ babz.BranchingDesc, alt int) {
	mid := t.lo + (t.hi-t.lo)/2
	switch alt {
	case 0:
		t.hi = mid
	case 1:
		t.lo = mid
	default:
		panic("spacemock: Commit called with alt outside {0, 1}")
	}
	t.depth--
}

// Description implements babz.Space.
func (*TreeSpace) Description() babz.BranchingDesc {
	return branchDesc{}
}

// CorruptSpace is a Space whose Status returns a value outside the
// Failed/Solved/Branch enum, for exercising the engine's fatal
// contract-violation path.
type CorruptSpace struct{}

func (CorruptSpace) Status(*babz.Stats) babz.NodeStatus { return babz.NodeStatus(99) }
func (CorruptSpace) Clone(bool) babz.Space              { return CorruptSpace{} }
func (CorruptSpace) Constrain(babz.Space)               {}
func (CorruptSpace) Commit(babz.BranchingDesc, int)     {}
func (CorruptSpace) Description() babz.BranchingDesc    { return branchDesc{} }

// ZeroAlternativesSpace is a Space whose only branching offers zero
// alternatives, for exercising Path.push's contract check.
type ZeroAlternativesSpace struct{}

type zeroAltsDesc struct{}

func (zeroAltsDesc) Alternatives() int { return 0 }

func (ZeroAlternativesSpace) Status(*babz.Stats) babz.NodeStatus { return babz.Branch }
func (ZeroAlternativesSpace) Clone(bool) babz.Space              { return ZeroAlternativesSpace{} }
func (ZeroAlternativesSpace) Constrain(babz.Space)               {}
func (ZeroAlternativesSpace) Commit(babz.BranchingDesc, int)     {}
func (ZeroAlternativesSpace) Description() babz.BranchingDesc    { return zeroAltsDesc{} }

// StopAfterNodes returns a StopPredicate that fires once the reporting
// worker's own node count reaches n.
func StopAfterNodes(n uint64) babz.StopPredicate {
	return func(stats *babz.Stats, _ int) bool {
		return stats.Nodes >= n
	}
}
