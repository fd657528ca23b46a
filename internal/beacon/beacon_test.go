package beacon

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagebeacon/internal/dom"
)

// failingDoer fails every request without touching the network.
type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestBeacon_InitialPageView(t *testing.T) {
	t.Parallel()

	f := newStartedFixture(t)
	req := f.fc.Requests()[0]

	if req.Type != string(KindEvent) {
		t.Errorf("type = %q, want event", req.Type)
	}
	want := map[string]any{
		"website":  "site-1",
		"hostname": "example.com",
		"screen":   "1920x1080",
		"language": "en-US",
		"title":    "Old%20Page",
		"url":      "/old-page",
		"referrer": "https://search.example/q",
		"tag":      "beta",
	}
	for k, v := range want {
		if req.Payload[k] != v {
			t.Errorf("payload[%q] = %v, want %v", k, req.Payload[k], v)
		}
	}
	if _, ok := req.Payload["name"]; ok {
		t.Error("page view must not carry a name")
	}
	if req.Token != "" {
		t.Errorf("first request carried token %q", req.Token)
	}
	if st := f.b.Stats(); st.Sent != 1 || st.Dispatched() != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if !f.b.Session().State().Initialized {
		t.Error("session should be initialized")
	}
}

func TestBeacon_SameOriginReferrerIsDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testPage, "https://example.com/old-page",
		[]dom.Option{dom.WithReferrer("https://example.com/previous")})
	if got := f.b.Session().State().Referrer; got != "" {
		t.Errorf("Referrer = %q, want empty", got)
	}
}

func TestBeacon_CorrelationToken(t *testing.T) {
	t.Parallel()

	f := newStartedFixture(t)

	token, ok := f.b.Track(Named{Name: "second"}).Wait(context.Background())
	if !ok || token != "token-2" {
		t.Fatalf("Wait() = %q, %v, want token-2, true", token, ok)
	}
	f.b.Track(Named{Name: "third"})
	wait(t, f.b)

	reqs := f.fc.Requests()
	if len(reqs) != 3 {
		t.Fatalf("got %d requests, want 3", len(reqs))
	}
	if reqs[1].Token != "token-1" {
		t.Errorf("second request token = %q, want token-1", reqs[1].Token)
	}
	if reqs[2].Token != "token-2" {
		t.Errorf("third request token = %q, want token-2", reqs[2].Token)
	}
	if got := f.b.Session().State().Token; got != "token-3" {
		t.Errorf("session token = %q, want token-3", got)
	}
}

func TestBeacon_TrackVariants(t *testing.T) {
	t.Parallel()

	t.Run("named event", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.b.Track(Named{Name: "signup", Data: map[string]string{"plan": "pro"}})
		wait(t, f.b)
		p := f.fc.Requests()[1].Payload
		if p["name"] != "signup" {
			t.Errorf("name = %v", p["name"])
		}
		data, _ := p["data"].(map[string]any)
		if data["plan"] != "pro" {
			t.Errorf("data = %v", p["data"])
		}
		if p["url"] != "/old-page" {
			t.Errorf("url = %v", p["url"])
		}
	})

	t.Run("raw payload is sent verbatim", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.b.Track(Raw{"website": "override", "custom": "yes"})
		wait(t, f.b)
		p := f.fc.Requests()[1].Payload
		if len(p) != 2 || p["website"] != "override" || p["custom"] != "yes" {
			t.Errorf("payload = %v", p)
		}
	})

	t.Run("transform rewrites the default payload", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.b.Track(Transform(func(p Payload) any {
			p.URL = "/rewritten"
			return p
		}))
		wait(t, f.b)
		p := f.fc.Requests()[1].Payload
		if p["url"] != "/rewritten" || p["website"] != "site-1" {
			t.Errorf("payload = %v", p)
		}
	})

	t.Run("panicking transform sends nothing", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		_, ok := f.b.Track(Transform(func(Payload) any { panic("boom") })).Wait(context.Background())
		if ok {
			t.Error("expected no result")
		}
		wait(t, f.b)
		if n := len(f.fc.Requests()); n != 1 {
			t.Errorf("got %d requests, want 1", n)
		}
		if st := f.b.Stats(); st.Dropped != 1 || st.Dispatched() != 1 {
			t.Errorf("Stats() = %+v", st)
		}
	})

	t.Run("nil event is a page view", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.b.Track(nil)
		wait(t, f.b)
		p := f.fc.Requests()[1].Payload
		if p["url"] != "/old-page" {
			t.Errorf("payload = %v", p)
		}
	})

	t.Run("identify", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.b.Identify(map[string]any{"user": "u-1", "beta": true})
		wait(t, f.b)
		req := f.fc.Requests()[1]
		if req.Type != string(KindIdentify) {
			t.Errorf("type = %q, want identify", req.Type)
		}
		data, _ := req.Payload["data"].(map[string]any)
		if data["user"] != "u-1" || data["beta"] != true {
			t.Errorf("data = %v", req.Payload["data"])
		}
		if req.Payload["website"] != "site-1" {
			t.Errorf("website = %v", req.Payload["website"])
		}
	})
}

func TestBeacon_Disabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		page    string
		pageURL string
		domOpts []dom.Option
		opts    []Option
	}{
		{
			name:    "no site id",
			page:    `<html><head><script src="/beacon.js"></script></head></html>`,
			pageURL: "https://example.com/",
			domOpts: []dom.Option{dom.WithScriptSrc("beacon.js")},
		},
		{
			name:    "no embedding script",
			page:    `<html><head></head></html>`,
			pageURL: "https://example.com/",
		},
		{
			name:    "hostname outside allowlist",
			page:    `<html><head><script data-website-id="s" data-domains="www.example.com"></script></head></html>`,
			pageURL: "https://example.com/",
		},
		{
			name:    "local opt out",
			page:    testPage,
			pageURL: "https://example.com/",
			domOpts: []dom.Option{dom.WithLocalStorage(map[string]string{OptOutKey: "1"})},
		},
		{
			name:    "localhost",
			page:    testPage,
			pageURL: "http://localhost:3000/",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.page, tt.pageURL, tt.domOpts, tt.opts...)
			if !f.b.Disabled() {
				t.Fatal("expected tracking to be disabled")
			}

			f.b.Start()
			if _, ok := f.b.Track(Named{Name: "x"}).Wait(context.Background()); ok {
				t.Error("expected no result")
			}
			f.b.Identify(map[string]any{"a": 1})
			wait(t, f.b)

			if n := len(f.fc.Requests()); n != 0 {
				t.Errorf("got %d requests, want 0", n)
			}
			if st := f.b.Stats(); st.Dispatched() != 0 || st.Skipped != 2 {
				t.Errorf("Stats() = %+v", st)
			}
		})
	}
}

func TestBeacon_AllowLocalhost(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testPage, "http://localhost:3000/", nil, WithAllowLocalhost(true))
	if f.b.Disabled() {
		t.Fatal("expected tracking to be enabled")
	}
}

func TestBeacon_DisabledIsEvaluatedPerCall(t *testing.T) {
	t.Parallel()

	f := newStartedFixture(t)
	f.win.LocalStorage().Set(OptOutKey, "true")
	f.b.Track(Named{Name: "ignored"})
	f.win.LocalStorage().Remove(OptOutKey)
	f.b.Track(Named{Name: "kept"})
	wait(t, f.b)

	reqs := f.fc.Requests()
	if len(reqs) != 2 || reqs[1].Payload["name"] != "kept" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestBeacon_SendFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	t.Run("non-2xx response", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.fc.SetStatus(http.StatusInternalServerError)
		if _, ok := f.b.Track(Named{Name: "x"}).Wait(context.Background()); ok {
			t.Error("expected no result")
		}
		if st := f.b.Stats(); st.Failed != 1 {
			t.Errorf("Stats() = %+v", st)
		}
		if got := f.b.Session().State().Token; got != "token-1" {
			t.Errorf("token = %q, want token-1 to survive the failure", got)
		}
	})

	t.Run("unencodable payload issues no request", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		if _, ok := f.b.Track(Raw{"bad": make(chan int)}).Wait(context.Background()); ok {
			t.Error("expected no result")
		}
		wait(t, f.b)
		if n := len(f.fc.Requests()); n != 1 {
			t.Errorf("got %d requests, want only the initial page view", n)
		}
		st := f.b.Stats()
		if st.Dropped != 1 || st.Failed != 0 || st.Dispatched() != 1 {
			t.Errorf("Stats() = %+v, want the encode failure counted as dropped", st)
		}
	})

	t.Run("network error", func(t *testing.T) {
		t.Parallel()
		win, err := dom.Parse(strings.NewReader(testPage), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		sender, err := NewSender("https://collector.example/api/send", WithHTTPClient(failingDoer{}))
		if err != nil {
			t.Fatal(err)
		}
		b := New(win, sender, WithScheduler(&fakeScheduler{}))
		b.Start()
		if _, ok := b.Track(nil).Wait(context.Background()); ok {
			t.Error("expected no result")
		}
		wait(t, b)
		if st := b.Stats(); st.Failed != 2 || st.Sent != 0 {
			t.Errorf("Stats() = %+v", st)
		}
	})
}

func TestBeacon_AutoTrackOff(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>T</title><script data-website-id="s" data-auto-track="false"></script></head>
<body><button id="b" data-track-event="click-b">B</button></body></html>`
	f := newFixture(t, page, "https://example.com/", nil)
	f.b.Start()
	wait(t, f.b)
	if n := len(f.fc.Requests()); n != 0 {
		t.Fatalf("got %d requests, want 0", n)
	}

	f.win.Document().Click(f.win.Document().ElementByID("b"), dom.ClickOptions{})
	f.win.History().PushState(nil, "", "/next")
	wait(t, f.b)
	if n := len(f.fc.Requests()); n != 0 {
		t.Errorf("watchers must not be attached: got %d requests", n)
	}

	f.b.Track(Named{Name: "manual"})
	wait(t, f.b)
	if n := len(f.fc.Requests()); n != 1 {
		t.Errorf("manual track: got %d requests, want 1", n)
	}
}

func TestBeacon_DeferredInit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testPage, "https://example.com/old-page",
		[]dom.Option{dom.WithReadyState(dom.ReadyStateLoading)})
	f.b.Start()
	wait(t, f.b)
	if n := len(f.fc.Requests()); n != 0 {
		t.Fatalf("got %d requests before ready, want 0", n)
	}

	doc := f.win.Document()
	doc.SetReadyState(dom.ReadyStateInteractive)
	doc.SetReadyState(dom.ReadyStateComplete)
	wait(t, f.b)
	if n := len(f.fc.Requests()); n != 1 {
		t.Errorf("got %d requests, want exactly one initial page view", n)
	}
}

func TestBeacon_GlobalAPI(t *testing.T) {
	t.Parallel()

	t.Run("installed on start", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		v, ok := f.win.Globals().Lookup(DefaultGlobalName)
		if !ok {
			t.Fatal("expected global API")
		}
		api, ok := v.(API)
		if !ok {
			t.Fatalf("global is %T, want API", v)
		}
		api.Track(Named{Name: "via-global"})
		wait(t, f.b)
		if got := f.fc.Requests()[1].Payload["name"]; got != "via-global" {
			t.Errorf("name = %v", got)
		}
	})

	t.Run("first definition wins", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, testPage, "https://example.com/", nil)
		f.win.Globals().Define(DefaultGlobalName, "existing")
		f.b.Start()
		v, _ := f.win.Globals().Lookup(DefaultGlobalName)
		if v != "existing" {
			t.Errorf("global = %v, want existing", v)
		}
	})
}

func TestBeacon_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	f := newStartedFixture(t)
	f.b.inflight.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
	f.b.inflight.Done()
}
