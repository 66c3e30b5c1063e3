package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a node: Starting, Running, Leaving or Shutdown.
type State uint32

const (
	// Starting is the initial state of a node.
	Starting State = iota
	// Running means the overlay and the dispatcher are up.
	Running
	// Leaving means the node is saying goodbye to its peers.
	Leaving
	// Shutdown ...
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Leaving:
		return "Leaving"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
