package dom

import "sync"

// StateFunc is the signature of pushState and replaceState.
type StateFunc func(state any, title, url string)

// Method names one of the history mutation entry points.
type Method int

const (
	// PushState adds a history entry.
	PushState Method = iota
	// ReplaceState rewrites the current history entry.
	ReplaceState
)

// String returns the JavaScript name of the method.
func (m Method) String() string {
	switch m {
	case PushState:
		return "pushState"
	case ReplaceState:
		return "replaceState"
	default:
		return "unknown"
	}
}

// History holds the session history. Its two mutation methods are
// replaceable, which is how single-page-app routers get observed.
type History struct {
	mu      sync.Mutex
	methods [2]StateFunc
	loc     *Location
	length  int
}

func newHistory(loc *Location) *History {
	h := &History{loc: loc, length: 1}
	h.methods[PushState] = h.push
	h.methods[ReplaceState] = h.replace
	return h
}

// PushState calls the currently installed pushState.
func (h *History) PushState(state any, title, url string) {
	h.Method(PushState)(state, title, url)
}

// ReplaceState calls the currently installed replaceState.
func (h *History) ReplaceState(state any, title, url string) {
	h.Method(ReplaceState)(state, title, url)
}

// Method returns the installed implementation of m.
func (h *History) Method(m Method) StateFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.methods[m]
}

// SetMethod installs fn as the implementation of m.
func (h *History) SetMethod(m Method, fn StateFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.methods[m] = fn
}

// Len returns the number of history entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.length
}

func (h *History) push(_ any, _ string, url string) {
	if url != "" {
		if err := h.loc.replace(url); err != nil {
			return
		}
	}
	h.mu.Lock()
	h.length++
	h.mu.Unlock()
}

func (h *History) replace(_ any, _ string, url string) {
	if url != "" {
		_ = h.loc.replace(url) //nolint:errcheck // browsers throw here; the page model just ignores it
	}
}
