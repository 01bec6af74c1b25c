package babz

import "sync/atomic"

// approxEntrySize and approxCloneSize are the per-entry and per-clone byte
// estimates Path.size uses for statistics accounting. Space implementations
// do not expose their own footprint, so this is necessarily an estimate, not
// a measurement; it exists only to give Stats.Memory a number that grows
// with path depth and clone density in the expected direction.
const (
	approxEntrySize = 64
	approxCloneSize = 512
)

// pathEntry is one recorded branching on the way from the root to the
// frontier. alt is the alternative the path owner currently occupies; high
// is the highest alternative index not yet claimed by anyone. The owner only
// ever advances alt upward by one (next), and thieves only ever take from
// high downward (steal); this two-pointer split means no separate
// claimed-set bitmap is needed; a lost steal race is simply alt == high by
// the time the lock is acquired.
type pathEntry struct {
	desc  BranchingDesc
	clone Space
	alt   int
	high  int
}

// Path is a per-worker stack of recomputation entries: the series of
// branchings from the root to the worker's current frontier, with a policy
// for which entries carry a clone of the Space at that node versus which
// must be recomputed by replaying commits from the nearest ancestor clone.
type Path struct {
	entries    []pathEntry
	hasStealer atomic.Bool
}

func newPath() *Path {
	return &Path{}
}

// entriesCount returns the number of recorded branchings.
func (p *Path) entriesCount() int {
	return len(p.entries)
}

// stealable is a cheap, lock-free-readable summary of whether any entry has
// an unexplored sibling alternative. Worker.find polls this before taking
// the peer's mutex.
func (p *Path) stealable() bool {
	return p.hasStealer.Load()
}

func (p *Path) updateStealable() {
	for i := range p.entries {
		if p.entries[i].alt < p.entries[i].high {
			p.hasStealer.Store(true)
			return
		}
	}
	p.hasStealer.Store(false)
}

// push records parent's branching, storing maybeClone (which may be nil) as
// the entry's checkpoint, and returns the branching description so the
// caller can commit alternative 0 on its own live cur.
func (p *Path) push(parent Space, maybeClone Space) BranchingDesc {
	desc := parent.Description()
	n := desc.Alternatives()
	if n < 1 {
		violate("branching.alternatives", "branching offered %d alternatives, want >= 1", n)
	}
	p.entries = append(p.entries, pathEntry{desc: desc, clone: maybeClone, alt: 0, high: n - 1})
	p.updateStealable()
	return desc
}

// next drops entries whose alternatives are exhausted (alt == high and no
// higher alternative remains) and, if any entry survives, advances its
// current alternative by one and returns true. Returns false once the path
// is empty.
func (p *Path) next() bool {
	for len(p.entries) > 0 {
		top := &p.entries[len(p.entries)-1]
		if top.alt < top.high {
			top.alt++
			p.updateStealable()
			return true
		}
		p.entries = p.entries[:len(p.entries)-1]
	}
	p.updateStealable()
	return false
}

// replay rebuilds a Space by cloning the nearest ancestor entry at or before
// upto that carries a stored clone, then committing alternatives forward.
// finalAlt overrides the alternative committed at index upto, which lets
// steal ask for the stolen sibling instead of the path owner's own
// in-progress alternative. If best is non-nil, Constrain is applied before
// committing at every replayed index >= mark (see the package's recompute
// mark-window design note). If dInOut is non-nil, it is reset to 0 whenever
// a fresh clone is stored, and a midpoint clone is materialized once the
// traversal distance from the nearest ancestor clone exceeds aD, bumping
// restarts.
func (p *Path) replay(upto, finalAlt int, best Space, mark int, dInOut *int, aD uint, restarts *uint64) Space {
	if upto < 0 || upto >= len(p.entries) {
		violate("path.replay", "upto=%d out of range for %d entries", upto, len(p.entries))
	}

	start := upto
	for start > 0 && p.entries[start].clone == nil {
		start--
	}
	if p.entries[start].clone == nil {
		violate("path.recompute", "no ancestor clone found to restart recomputation from")
	}

	cur := p.entries[start].clone.Clone(true)
	if dInOut != nil {
		*dInOut = 0
	}

	distance := upto - start
	mid := -1
	if aD > 0 && distance > int(aD) {
		mid = start + distance/2
		if restarts != nil {
			*restarts++
		}
	}

	for i := start; i <= upto; i++ {
		e := &p.entries[i]
		alt := e.alt
		if i == upto {
			alt = finalAlt
		}
		if i == mid && e.clone == nil {
			e.clone = cur.Clone(true)
			if dInOut != nil {
				*dInOut = 0
			}
		}
		if best != nil && i >= mark {
			cur.Constrain(best)
		}
		cur.Commit(e.desc, alt)
	}
	return cur
}

// recompute rebuilds the current frontier (the node reached after the most
// recently advanced entry's alternative), per replay's contract.
func (p *Path) recompute(dInOut *int, aD uint, best Space, mark int, restarts *uint64) Space {
	if len(p.entries) == 0 {
		violate("path.recompute", "recompute called on an empty path")
	}
	last := len(p.entries) - 1
	return p.replay(last, p.entries[last].alt, best, mark, dInOut, aD, restarts)
}

// steal atomically finds the shallowest entry with an unexplored sibling,
// claims it from the high end of that entry's remaining range, and returns
// a freshly reconstructed Space for it along with its depth. The victim's
// best/mark are deliberately NOT applied here (best and mark are passed as
// nil/0): the stealing worker re-applies its own best after taking the
// result, per the package's steal-time constraint policy. Returns
// ok == false if no entry currently has an unclaimed sibling.
//
// Callers must hold the owning worker's mutex.
func (p *Path) steal() (Space, int, bool) {
	for i := range p.entries {
		e := &p.entries[i]
		if e.alt < e.high {
			taken := e.high
			e.high--
			p.updateStealable()
			s := p.replay(i, taken, nil, 0, nil, 0, nil)
			return s, i, true
		}
	}
	return nil, 0, false
}

// reset drops all entries and their owned clones.
func (p *Path) reset() {
	p.entries = nil
	p.hasStealer.Store(false)
}

// size estimates the path's memory footprint for statistics reporting.
func (p *Path) size() uint64 {
	total := uint64(len(p.entries)) * approxEntrySize
	for i := range p.entries {
		if p.entries[i].clone != nil {
			total += approxCloneSize
		}
	}
	return total
}
