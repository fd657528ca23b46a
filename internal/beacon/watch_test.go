package beacon

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagebeacon/internal/dom"
)

func TestBeacon_HistoryNavigation(t *testing.T) {
	t.Parallel()

	t.Run("push schedules a deferred page view", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)

		f.win.History().PushState(nil, "", "/new-page")
		if got := f.win.Location().Href(); got != "https://example.com/new-page" {
			t.Errorf("location = %q, original pushState must still run", got)
		}
		if n := len(f.fc.Requests()); n != 1 {
			t.Fatalf("page view sent before the delay: %d requests", n)
		}
		if got := f.sched.Delays(); !reflect.DeepEqual(got, []time.Duration{DefaultNavigationDelay}) {
			t.Fatalf("delays = %v", got)
		}

		f.sched.Fire()
		wait(t, f.b)

		reqs := f.fc.Requests()
		if len(reqs) != 2 {
			t.Fatalf("got %d requests, want 2", len(reqs))
		}
		p := reqs[1].Payload
		if p["url"] != "/new-page" || p["referrer"] != "/old-page" {
			t.Errorf("url = %v, referrer = %v", p["url"], p["referrer"])
		}
	})

	t.Run("replace is watched too", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.win.History().ReplaceState(nil, "", "/replaced?q=1")
		f.sched.Fire()
		wait(t, f.b)
		if got := f.fc.Requests()[1].Payload["url"]; got != "/replaced?q=1" {
			t.Errorf("url = %v", got)
		}
	})

	t.Run("same url sends nothing", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.win.History().PushState(nil, "", "/old-page")
		if f.sched.Pending() != 0 {
			t.Error("no page view should be scheduled")
		}
		st := f.b.Session().State()
		if st.Referrer != "/old-page" {
			t.Errorf("referrer = %q, want the previous url", st.Referrer)
		}
	})

	t.Run("empty url is ignored", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.win.History().PushState(map[string]int{"n": 1}, "", "")
		if f.sched.Pending() != 0 {
			t.Error("no page view should be scheduled")
		}
		if got := f.b.Session().State().Referrer; got != "https://search.example/q" {
			t.Errorf("referrer = %q, want it untouched", got)
		}
	})

	t.Run("deferred send reads state at fire time", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.win.History().PushState(nil, "", "/a")
		f.win.Document().SetTitle("Page A")
		f.sched.Fire()
		wait(t, f.b)
		if got := f.fc.Requests()[1].Payload["title"]; got != "Page%20A" {
			t.Errorf("title = %v", got)
		}
	})

	t.Run("rapid navigations all read the latest state", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		for _, url := range []string{"/a", "/b", "/c"} {
			f.win.History().PushState(nil, "", url)
		}
		if n := f.sched.Pending(); n != 3 {
			t.Fatalf("scheduled %d page views, want 3", n)
		}

		f.sched.Fire()
		wait(t, f.b)

		reqs := f.fc.Requests()
		if len(reqs) != 4 {
			t.Fatalf("got %d requests, want 4", len(reqs))
		}
		for i, r := range reqs[1:] {
			if r.Payload["url"] != "/c" || r.Payload["referrer"] != "/b" {
				t.Errorf("send %d: url = %v, referrer = %v, want /c and /b", i+1, r.Payload["url"], r.Payload["referrer"])
			}
		}
	})

	t.Run("exclusions apply to navigations", func(t *testing.T) {
		t.Parallel()
		page := `<html><head><script data-website-id="s" data-exclude-search="true" data-exclude-hash="true"></script></head></html>`
		f := newFixture(t, page, "https://example.com/start?x=1#top", nil)
		f.b.Start()
		wait(t, f.b)
		f.win.History().PushState(nil, "", "/next?utm=1#section")
		f.sched.Fire()
		wait(t, f.b)

		reqs := f.fc.Requests()
		if len(reqs) != 2 {
			t.Fatalf("got %d requests, want 2", len(reqs))
		}
		if reqs[0].Payload["url"] != "/start" || reqs[1].Payload["url"] != "/next" {
			t.Errorf("urls = %v, %v", reqs[0].Payload["url"], reqs[1].Payload["url"])
		}
	})
}

func TestBeacon_HistoryHooksStack(t *testing.T) {
	t.Parallel()

	f := newStartedFixture(t)
	h := f.win.History()

	var seen []string
	h.SetMethod(dom.PushState, Wrap(h.Method(dom.PushState), func(_ any, _ string, url string) {
		seen = append(seen, url)
	}).Call)

	h.PushState(nil, "", "/stacked")
	f.sched.Fire()
	wait(t, f.b)

	if !reflect.DeepEqual(seen, []string{"/stacked"}) {
		t.Errorf("outer hook saw %v", seen)
	}
	if got := f.fc.Requests()[1].Payload["url"]; got != "/stacked" {
		t.Errorf("url = %v", got)
	}
	if h.Len() != 2 {
		t.Errorf("history length = %d, want 2", h.Len())
	}
}

func TestBeacon_TitleObservation(t *testing.T) {
	t.Parallel()

	t.Run("title mutations update the session", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.win.Document().SetTitle("Cart (2)")
		if got := f.b.Session().State().Title; got != "Cart (2)" {
			t.Errorf("title = %q", got)
		}
		f.b.Track(Named{Name: "x"})
		wait(t, f.b)
		if got := f.fc.Requests()[1].Payload["title"]; got != "Cart%20(2)" {
			t.Errorf("payload title = %v", got)
		}
	})

	t.Run("no title element", func(t *testing.T) {
		t.Parallel()
		page := `<html><head><script data-website-id="s"></script></head></html>`
		f := newFixture(t, page, "https://example.com/", nil)
		f.b.Start()
		wait(t, f.b)
		f.win.Document().SetTitle("Late")
		if got := f.b.Session().State().Title; got != "" {
			t.Errorf("title = %q, a title created after init is not observed", got)
		}
		if _, ok := f.fc.Requests()[0].Payload["title"]; ok {
			t.Error("empty title must be omitted")
		}
	})
}

func TestBeacon_Clicks(t *testing.T) {
	t.Parallel()

	click := func(f *fixture, id string, opts dom.ClickOptions) *dom.ClickEvent {
		return f.win.Document().Click(f.win.Document().ElementByID(id), opts)
	}

	t.Run("tracked anchor navigates after the send", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)

		ev := click(f, "buy-label", dom.ClickOptions{})
		if !ev.DefaultPrevented() {
			t.Error("default navigation should be prevented")
		}
		wait(t, f.b)

		if got := f.win.Location().Href(); got != "https://example.com/checkout" {
			t.Errorf("location = %q", got)
		}
		if got := f.win.Location().Navigations(); !reflect.DeepEqual(got, []string{"https://example.com/checkout"}) {
			t.Errorf("navigations = %v", got)
		}
		reqs := f.fc.Requests()
		if len(reqs) != 2 {
			t.Fatalf("got %d requests, want 2", len(reqs))
		}
		p := reqs[1].Payload
		if p["name"] != "buy" {
			t.Errorf("name = %v", p["name"])
		}
		if !reflect.DeepEqual(p["data"], map[string]any{"plan": "pro"}) {
			t.Errorf("data = %v, the malformed key must be dropped", p["data"])
		}
	})

	t.Run("navigation waits for the send to settle", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		release := f.fc.Hold(t)

		click(f, "buy", dom.ClickOptions{})
		f.fc.waitForRequests(t, 2)

		// The request is in flight; the tab must not have moved yet.
		time.Sleep(20 * time.Millisecond)
		if got := f.win.Location().Navigations(); len(got) != 0 {
			t.Fatalf("navigated before the send settled: %v", got)
		}
		if got := f.win.Location().Href(); got != "https://example.com/old-page" {
			t.Errorf("location = %q", got)
		}

		release()
		wait(t, f.b)
		if got := f.win.Location().Navigations(); !reflect.DeepEqual(got, []string{"https://example.com/checkout"}) {
			t.Errorf("navigations = %v", got)
		}
	})

	t.Run("tracked anchor navigates even when the send fails", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		f.fc.SetStatus(503)
		click(f, "buy", dom.ClickOptions{})
		wait(t, f.b)
		if got := f.win.Location().Href(); got != "https://example.com/checkout" {
			t.Errorf("location = %q", got)
		}
	})

	t.Run("external activations keep the default", func(t *testing.T) {
		t.Parallel()
		for _, opts := range []dom.ClickOptions{{Ctrl: true}, {Shift: true}, {Meta: true}, {Button: 1}} {
			f := newStartedFixture(t)
			ev := click(f, "buy", opts)
			if ev.DefaultPrevented() {
				t.Errorf("%+v: default should not be prevented", opts)
			}
			wait(t, f.b)
			if got := f.win.Opened(); !reflect.DeepEqual(got, []string{"https://example.com/checkout"}) {
				t.Errorf("%+v: opened = %v", opts, got)
			}
			if got := f.win.Location().Href(); got != "https://example.com/old-page" {
				t.Errorf("%+v: location = %q, tab must stay", opts, got)
			}
			if n := len(f.fc.Requests()); n != 2 {
				t.Errorf("%+v: got %d requests, want 2", opts, n)
			}
		}
	})

	t.Run("button sends its data", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		ev := click(f, "subscribe", dom.ClickOptions{})
		if ev.DefaultPrevented() {
			t.Error("buttons keep their default")
		}
		wait(t, f.b)
		p := f.fc.Requests()[1].Payload
		if p["name"] != "subscribe" || !reflect.DeepEqual(p["data"], map[string]any{"source": "footer"}) {
			t.Errorf("payload = %v", p)
		}
	})

	t.Run("tagged non-interactive element", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		click(f, "banner", dom.ClickOptions{})
		wait(t, f.b)
		reqs := f.fc.Requests()
		if len(reqs) != 2 || reqs[1].Payload["name"] != "banner-view" {
			t.Errorf("requests = %+v", reqs)
		}
		if _, ok := reqs[1].Payload["data"]; ok {
			t.Error("empty data must be omitted")
		}
	})

	t.Run("untracked clicks send nothing", func(t *testing.T) {
		t.Parallel()
		for _, id := range []string{"plain", "deep", "plain-button", "nohref"} {
			f := newStartedFixture(t)
			ev := click(f, id, dom.ClickOptions{})
			if ev.DefaultPrevented() {
				t.Errorf("%s: default should not be prevented", id)
			}
			wait(t, f.b)
			if n := len(f.fc.Requests()); n != 1 {
				t.Errorf("%s: got %d requests, want 1", id, n)
			}
		}
	})

	t.Run("untracked anchor navigates normally", func(t *testing.T) {
		t.Parallel()
		f := newStartedFixture(t)
		ev := click(f, "docs", dom.ClickOptions{})
		if ev.DefaultPrevented() {
			t.Error("default should not be prevented")
		}
		if got := f.win.Location().Href(); got != "https://example.com/docs" {
			t.Errorf("location = %q", got)
		}
		wait(t, f.b)
		if n := len(f.fc.Requests()); n != 1 {
			t.Errorf("got %d requests, want 1", n)
		}
	})

	t.Run("custom event attribute", func(t *testing.T) {
		t.Parallel()
		page := `<html><head><script data-website-id="s"></script></head>
<body><button id="b" data-ev="go" data-ev-step="2" data-track-event="ignored">Go</button></body></html>`
		f := newFixture(t, page, "https://example.com/", nil, WithEventAttribute("data-ev"))
		f.b.Start()
		wait(t, f.b)
		click(f, "b", dom.ClickOptions{})
		wait(t, f.b)
		p := f.fc.Requests()[1].Payload
		if p["name"] != "go" || !reflect.DeepEqual(p["data"], map[string]any{"step": "2"}) {
			t.Errorf("payload = %v", p)
		}
	})
}

func TestFindInteractive_DepthLimit(t *testing.T) {
	t.Parallel()

	inner := `<span id="leaf">x</span>`
	for i := 0; i < 11; i++ {
		inner = "<span>" + inner + "</span>"
	}
	page := `<html><body><a id="far" href="/far" data-track-event="far">` + inner + `</a>
<a id="near" href="/near"><span><span id="close">y</span></span></a></body></html>`
	win, err := dom.Parse(strings.NewReader(page), "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	doc := win.Document()

	if el := findInteractive(doc.ElementByID("leaf"), maxAncestorDepth); el != nil {
		t.Errorf("found %s beyond the depth limit", el.ID())
	}
	if el := findInteractive(doc.ElementByID("close"), maxAncestorDepth); el == nil || el.ID() != "near" {
		t.Errorf("findInteractive() = %v, want #near", el)
	}
}
