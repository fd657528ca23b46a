package beacon

import "github.com/nao1215/pagebeacon/internal/dom"

// Hook decorates a history method: Call runs before, then the original
// with the same arguments.
type Hook struct {
	original dom.StateFunc
	before   dom.StateFunc
}

// Wrap returns a Hook around original. Wrapping an installed Hook's Call
// stacks hooks; each keeps calling through to the one below.
func Wrap(original, before dom.StateFunc) *Hook {
	return &Hook{original: original, before: before}
}

// Call runs the hook. It has the dom.StateFunc signature so it can be
// installed with History.SetMethod.
func (h *Hook) Call(state any, title, url string) {
	h.before(state, title, url)
	h.original(state, title, url)
}

// Unwrap returns the decorated method.
func (h *Hook) Unwrap() dom.StateFunc {
	return h.original
}
