package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/pagebeacon/internal/dom"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
  <title>Old Page</title>
  <script src="/beacon.js" data-website-id="site-1" data-tag="beta"></script>
</head>
<body>
  <a id="buy" href="/checkout" data-track-event="buy" data-track-event-plan="pro" data-track-event-bad.key="x"><span id="buy-label">Buy</span></a>
  <a id="docs" href="/docs">Docs</a>
  <a id="nohref" data-track-event="nohref">No href</a>
  <button id="subscribe" data-track-event="subscribe" data-track-event-source="footer">Subscribe</button>
  <button id="plain-button">Plain</button>
  <div id="plain"><p id="deep">Plain</p></div>
  <div id="banner" data-track-event="banner-view">Banner</div>
</body>
</html>`

// captured is one request seen by the fake collector.
type captured struct {
	Type    string
	Payload map[string]any
	Token   string
}

type fakeCollector struct {
	mu       sync.Mutex
	requests []captured
	status   int
	// gate, when set, holds every response until it is closed.
	gate chan struct{}
}

func (fc *fakeCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	fc.mu.Lock()
	fc.requests = append(fc.requests, captured{
		Type:    env.Type,
		Payload: env.Payload,
		Token:   r.Header.Get(DefaultCacheHeader),
	})
	n := len(fc.requests)
	status := fc.status
	gate := fc.gate
	fc.mu.Unlock()

	if gate != nil {
		<-gate
	}
	w.WriteHeader(status)
	fmt.Fprintf(w, "token-%d", n)
}

func (fc *fakeCollector) Requests() []captured {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]captured(nil), fc.requests...)
}

func (fc *fakeCollector) SetStatus(status int) {
	fc.mu.Lock()
	fc.status = status
	fc.mu.Unlock()
}

// Hold makes responses wait until the returned release func is called.
// Release runs at cleanup as well, so a failing test cannot hang the server.
func (fc *fakeCollector) Hold(t *testing.T) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	fc.mu.Lock()
	fc.gate = gate
	fc.mu.Unlock()

	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return release
}

// waitForRequests polls until the collector has seen n requests.
func (fc *fakeCollector) waitForRequests(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(fc.Requests()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("collector saw %d requests, want %d", len(fc.Requests()), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// newTestSender starts a fake collector and returns a Sender posting to it.
func newTestSender(t *testing.T) (*fakeCollector, *Sender) {
	t.Helper()

	fc := &fakeCollector{status: http.StatusOK}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	sender, err := NewSender(srv.URL+"/api/send", WithHTTPClient(client))
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	return fc, sender
}

// fakeScheduler queues deferred functions until Fire is called.
type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

// Fire runs and forgets every queued function.
func (s *fakeScheduler) Fire() {
	s.mu.Lock()
	funcs := s.funcs
	s.funcs = nil
	s.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.funcs)
}

func (s *fakeScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type fixture struct {
	win   *dom.Window
	b     *Beacon
	fc    *fakeCollector
	sched *fakeScheduler
}

func newFixture(t *testing.T, page, pageURL string, domOpts []dom.Option, opts ...Option) *fixture {
	t.Helper()

	win, err := dom.Parse(strings.NewReader(page), pageURL, domOpts...)
	if err != nil {
		t.Fatalf("dom.Parse() error = %v", err)
	}
	fc, sender := newTestSender(t)
	sched := &fakeScheduler{}
	opts = append([]Option{WithScheduler(sched)}, opts...)
	b := New(win, sender, opts...)
	t.Cleanup(func() { wait(t, b) })
	return &fixture{win: win, b: b, fc: fc, sched: sched}
}

// newStartedFixture returns a fixture whose beacon already sent its initial
// page view.
func newStartedFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := newFixture(t, testPage, "https://example.com/old-page",
		[]dom.Option{dom.WithReferrer("https://search.example/q")}, opts...)
	f.b.Start()
	wait(t, f.b)
	if n := len(f.fc.Requests()); n != 1 {
		t.Fatalf("initial page view: got %d requests, want 1", n)
	}
	return f
}

func wait(t *testing.T, b *Beacon) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}
