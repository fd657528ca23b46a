package dom

import (
	"fmt"
	"net/url"
	"sync"
)

// Location is the address of the tab.
type Location struct {
	mu          sync.RWMutex
	u           *url.URL
	navigations []string
}

func newLocation(raw string) (*Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPageURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidPageURL
	}
	return &Location{u: u}, nil
}

// Href returns the full URL.
func (l *Location) Href() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.u.String()
}

// Origin returns scheme://host[:port].
func (l *Location) Origin() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.u.Scheme + "://" + l.u.Host
}

// Hostname returns the host without port.
func (l *Location) Hostname() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.u.Hostname()
}

// Resolve resolves ref against the current URL.
func (l *Location) Resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", ref, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.u.ResolveReference(r), nil
}

// Assign navigates the tab to ref, resolved against the current URL.
// Every successful call is recorded and visible through Navigations.
func (l *Location) Assign(ref string) error {
	u, err := l.Resolve(ref)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.u = u
	l.navigations = append(l.navigations, u.String())
	return nil
}

// Navigations lists URLs passed through Assign, oldest first.
func (l *Location) Navigations() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.navigations...)
}

// replace moves to ref without recording a navigation. Used by history,
// which never reloads the page.
func (l *Location) replace(ref string) error {
	u, err := l.Resolve(ref)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if u.Scheme != l.u.Scheme || u.Host != l.u.Host {
		return ErrCrossOrigin
	}
	l.u = u
	return nil
}
