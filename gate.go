package babz

import "sync"

// cmd is the broadcast command every worker reads without locking. The
// engine is the sole writer: block writes cmdWait just before taking the wait
// gate (mWait), and release writes the new command while still holding the
// gate, before releasing it, so a worker racing through a park without
// blocking still observes the new command.
type cmd int32

const (
	cmdWait cmd = iota
	cmdWork
	cmdTerminate
)

// gate is the wait-gate rendezvous: the engine Locks it to park workers and
// Unlocks it to release them, while workers only ever Lock-then-immediately-
// Unlock to park. Go's sync.Mutex permits a goroutine other than the locker
// to Unlock it, which is exactly the asymmetric discipline this primitive
// needs and the reason a plain sync.Mutex suffices here with no wrapping
// beyond naming the two roles (engine vs worker) explicitly.
type gate struct {
	mu sync.Mutex
}

// holdForParking acquires the gate so that workers calling parkHere block.
func (g *gate) holdForParking() {
	g.mu.Lock()
}

// release lets any worker currently parked (or about to park) through.
func (g *gate) release() {
	g.mu.Unlock()
}

// parkHere is the worker-side park primitive: acquire then immediately
// release, blocking only while the engine holds the gate.
func (g *gate) parkHere() {
	g.mu.Lock()
	g.mu.Unlock() //nolint:staticcheck // intentional immediate unlock: this is a rendezvous, not a critical section
}
