package callback

import "sync"

// pending holds at most one outcome. The first resolve wins and closes done.
type pending struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newPending() *pending {
	return &pending{done: make(chan struct{})}
}

func (p *pending) resolve(o Outcome) bool {
	won := false
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
		won = true
	})
	return won
}

func (p *pending) resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// result returns the outcome once resolved.
func (p *pending) result() (Outcome, bool) {
	if !p.resolved() {
		return Outcome{}, false
	}
	return p.outcome, true
}
