package babz

// NodeStatus describes the result of evaluating a Space.
type NodeStatus int

const (
	// Failed means the Space represents a dead end: no solution extends it.
	Failed NodeStatus = iota
	// Solved means the Space is a complete, feasible solution.
	Solved
	// Branch means the Space has at least one branching alternative left to explore.
	Branch
)

// String implements fmt.Stringer for diagnostics and trace tags.
func (s NodeStatus) String() string {
	switch s {
	case Failed:
		return "failed"
	case Solved:
		return "solved"
	case Branch:
		return "branch"
	default:
		return "unknown"
	}
}

// BranchingDesc is the opaque data needed to apply a chosen alternative of a
// branching via Space.Commit. Implementations are supplied by the caller's
// constraint-propagation kernel; the engine only ever asks for the number of
// alternatives and passes the description back into Commit unmodified.
type BranchingDesc interface {
	// Alternatives returns the number of alternatives this branching offers.
	// Must be >= 1; a branching with zero alternatives is a programming-contract
	// violation (see ContractViolation).
	Alternatives() int
}

// Space is an opaque search-tree node: an assignment-in-progress plus its
// constraint state. The engine treats every Space as exclusively owned by
// exactly one Worker (or, transiently, by the Engine itself while holding
// mSearch) and never inspects its internals; all domain logic lives on the
// other side of this interface.
//
// Implementations must not retain references to a Space handed to Clone,
// Constrain, or Commit beyond the call: ownership of the argument stays with
// the caller, and the engine relies on that for its exclusive-ownership
// invariant (I3).
type Space interface {
	// Status evaluates this node, returning Failed, Solved, or Branch. The
	// Space may use stats to tally domain-specific counters (propagation
	// steps, for instance); the engine's own node/failure/solved counters are
	// tracked by the Worker independently of whatever Status does with stats.
	Status(stats *Stats) NodeStatus

	// Clone produces an independent copy of this Space. When share is false
	// the clone must not alias any mutable state with the original (used when
	// publishing a Space across worker boundaries); when share is true the
	// implementation may share immutable substructure for efficiency, since
	// the copy stays within the same worker.
	Clone(share bool) Space

	// Constrain tightens this Space's bound using reference as a known-better
	// solution. After Constrain, a subsequent Status call may newly return
	// Failed where it previously would not have.
	Constrain(reference Space)

	// Commit applies the alt-th alternative of the branching most recently
	// returned by Description. alt must satisfy 0 <= alt < desc.Alternatives()
	// for the corresponding Description call.
	Commit(desc BranchingDesc, alt int)

	// Description returns the branching available at the current node. On a
	// Solved node, calling Description forces finalization of the solution
	// (the spec's "also used to force finalization on a solved node").
	Description() BranchingDesc
}

// Stats accumulates the counters the engine and its Workers maintain while
// exploring. A Space's Status implementation may add to it (for
// domain-specific counters); the node/failure/solved/restart fields below
// are owned and updated exclusively by the Worker run loop.
type Stats struct {
	// Nodes is the number of nodes whose Status was evaluated.
	Nodes uint64
	// Failures is the number of nodes that evaluated to Failed.
	Failures uint64
	// Solutions is the number of nodes that evaluated to Solved.
	Solutions uint64
	// Restarts is the number of Path.recompute calls that exceeded the
	// adaptive distance and stored a fresh midpoint clone.
	Restarts uint64
	// Depth is the frontier depth recorded at the worker's most recent
	// recompute (its path length) or steal (the stolen entry's index in the
	// victim's path); it starts at 0 and branching steps do not update it.
	Depth uint64
	// Memory is a byte-accounting estimate contributed by Path.size.
	Memory uint64
}

// Add accumulates o's counters into s, used to sum per-worker snapshots into
// an engine-wide total.
func (s *Stats) Add(o Stats) {
	s.Nodes += o.Nodes
	s.Failures += o.Failures
	s.Solutions += o.Solutions
	s.Restarts += o.Restarts
	s.Memory += o.Memory
	if o.Depth > s.Depth {
		s.Depth = o.Depth
	}
}
