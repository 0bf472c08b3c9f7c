package internal

import "sync"

// completionGuard records which streams have been completed so a stream is
// finalized at most once no matter how many terminal signals arrive.
type completionGuard struct {
	mu        sync.Mutex
	completed map[string]struct{}
}

func newCompletionGuard() *completionGuard {
	return &completionGuard{completed: make(map[string]struct{})}
}

// complete marks id as done and reports whether this call did so
func (g *completionGuard) complete(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.completed[id]; ok {
		return false
	}
	g.completed[id] = struct{}{}
	return true
}

func (g *completionGuard) isComplete(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.completed[id]
	return ok
}

// forgetExcept drops every id but keep, bounding the set across sessions
func (g *completionGuard) forgetExcept(keep string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id := range g.completed {
		if id != keep {
			delete(g.completed, id)
		}
	}
}
