package beacon

import "context"

// Pending is the outcome of a send that may still be in flight.
type Pending struct {
	done  chan struct{}
	token string
	ok    bool
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// settled returns a Pending that already finished without a result.
func settled() *Pending {
	p := newPending()
	close(p.done)
	return p
}

func (p *Pending) resolve(token string, ok bool) {
	p.token, p.ok = token, ok
	close(p.done)
}

// Done is closed once the send has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the send settles or ctx ends. It returns the token the
// collector answered with; ok is false when nothing was sent, the send
// failed, or ctx ended first.
func (p *Pending) Wait(ctx context.Context) (token string, ok bool) {
	select {
	case <-p.done:
		return p.token, p.ok
	case <-ctx.Done():
		return "", false
	}
}
