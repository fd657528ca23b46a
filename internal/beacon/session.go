package beacon

import "sync"

// Session is the state a beacon keeps for the lifetime of its tab.
type Session struct {
	mu          sync.Mutex
	url         string
	referrer    string
	title       string
	token       string
	initialized bool
}

// SessionState is a copy of a Session.
type SessionState struct {
	URL         string
	Referrer    string
	Title       string
	Token       string
	Initialized bool
}

func newSession(url, referrer, title string) *Session {
	return &Session{url: url, referrer: referrer, title: title}
}

// State returns a copy of the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		URL:         s.url,
		Referrer:    s.referrer,
		Title:       s.title,
		Token:       s.token,
		Initialized: s.initialized,
	}
}

// navigate makes url current and the previous URL the referrer. It reports
// whether the URL changed.
func (s *Session) navigate(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrer = s.url
	s.url = url
	return s.url != s.referrer
}

func (s *Session) setTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

func (s *Session) correlationToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// markInitialized flips the initialized flag and reports whether this call
// did it.
func (s *Session) markInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return false
	}
	s.initialized = true
	return true
}
