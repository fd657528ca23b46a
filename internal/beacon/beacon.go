package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/pagebeacon/internal/dom"
)

const (
	// DefaultGlobalName is the global the API is installed under.
	DefaultGlobalName = "beacon"

	// OptOutKey in local storage disables tracking when set to any value.
	OptOutKey = "beacon.disabled"
)

// API is what the host page sees under the global name.
type API struct {
	Track    func(Event) *Pending
	Identify func(map[string]any) *Pending
}

// Stats counts sends of a beacon.
type Stats struct {
	// Sent is the number of requests that got a 2xx response.
	Sent int64
	// Failed is the number of requests that errored.
	Failed int64
	// Skipped is the number of sends dropped because tracking was disabled.
	Skipped int64
	// Dropped is the number of sends abandoned before a request went out:
	// the payload transform panicked or the payload could not be encoded.
	Dropped int64
}

// Dispatched is the number of requests issued.
func (s Stats) Dispatched() int64 { return s.Sent + s.Failed }

// Beacon tracks one tab.
type Beacon struct {
	win        *dom.Window
	sender     *Sender
	cfg        TrackingConfig
	normalizer Normalizer
	session    *Session
	attrs      eventAttributes

	scheduler      Scheduler
	delay          time.Duration
	logger         *slog.Logger
	globalName     string
	allowLocalhost bool

	inflight sync.WaitGroup
	sent     atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64
	dropped  atomic.Int64
}

// Option configures a Beacon.
type Option func(*Beacon)

// WithScheduler sets how navigation page views are deferred.
func WithScheduler(s Scheduler) Option {
	return func(b *Beacon) {
		if s != nil {
			b.scheduler = s
		}
	}
}

// WithNavigationDelay sets the delay between a history change and its page
// view.
func WithNavigationDelay(d time.Duration) Option {
	return func(b *Beacon) {
		if d >= 0 {
			b.delay = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Beacon) { b.logger = logger }
}

// WithEventAttribute sets the attribute marking tracked elements.
func WithEventAttribute(name string) Option {
	return func(b *Beacon) {
		if name != "" {
			b.attrs = newEventAttributes(name)
		}
	}
}

// WithGlobalName sets the global the API is installed under.
func WithGlobalName(name string) Option {
	return func(b *Beacon) {
		if name != "" {
			b.globalName = name
		}
	}
}

// WithAllowLocalhost enables tracking on hostnames containing "localhost".
func WithAllowLocalhost(allow bool) Option {
	return func(b *Beacon) { b.allowLocalhost = allow }
}

// New creates a beacon for win posting through sender. The tracking
// configuration is read from the document's current script.
func New(win *dom.Window, sender *Sender, opts ...Option) *Beacon {
	doc := win.Document()
	cfg := ReadConfig(doc.CurrentScript())
	origin := win.Location().Origin()
	normalizer := NewNormalizer(origin, cfg.ExcludeSearch, cfg.ExcludeHash)

	referrer := doc.Referrer()
	if strings.HasPrefix(referrer, origin) {
		referrer = ""
	}

	b := &Beacon{
		win:        win,
		sender:     sender,
		cfg:        cfg,
		normalizer: normalizer,
		session:    newSession(normalizer.Normalize(win.Location().Href()), referrer, doc.Title()),
		attrs:      newEventAttributes(DefaultEventAttribute),
		scheduler:  timerScheduler{},
		delay:      DefaultNavigationDelay,
		globalName: DefaultGlobalName,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Config returns the tracking configuration.
func (b *Beacon) Config() TrackingConfig { return b.cfg }

// Session returns the session state record.
func (b *Beacon) Session() *Session { return b.session }

// Stats returns the send counters.
func (b *Beacon) Stats() Stats {
	return Stats{
		Sent:    b.sent.Load(),
		Failed:  b.failed.Load(),
		Skipped: b.skipped.Load(),
		Dropped: b.dropped.Load(),
	}
}

// Disabled reports whether sends are currently dropped. It is evaluated
// against the current location on every call.
func (b *Beacon) Disabled() bool {
	if b.cfg.SiteID == "" {
		return true
	}
	if b.win.LocalStorage().Get(OptOutKey) != "" {
		return true
	}
	host := b.win.Location().Hostname()
	if !b.allowLocalhost && strings.Contains(host, "localhost") {
		return true
	}
	return !b.cfg.AllowsHost(host)
}

// Start installs the API and, with auto tracking, initializes now if the
// document is complete or on its next ready state change otherwise.
func (b *Beacon) Start() {
	if !b.win.Globals().Define(b.globalName, API{Track: b.Track, Identify: b.Identify}) {
		b.logger.Debug("global already defined, keeping existing", "name", b.globalName)
	}
	if !b.cfg.AutoTrack || b.Disabled() {
		return
	}
	doc := b.win.Document()
	if doc.ReadyState() == dom.ReadyStateComplete {
		b.init()
		return
	}
	doc.OnReadyStateChange(b.init)
}

// init runs once: initial page view, then history, title and click
// watchers.
func (b *Beacon) init() {
	if !b.session.markInitialized() {
		return
	}
	b.Track(PageView{})
	b.watchHistory()
	b.watchTitle()
	b.watchClicks()
}

// Payload returns the default payload for the current session state.
func (b *Beacon) Payload() Payload {
	st := b.session.State()
	return Payload{
		Website:  b.cfg.SiteID,
		Hostname: b.win.Location().Hostname(),
		Screen:   b.win.Screen.String(),
		Language: b.win.Navigator.Language,
		Title:    Encode(st.Title),
		URL:      Encode(st.URL),
		Referrer: Encode(st.Referrer),
		Tag:      b.cfg.Tag,
	}
}

// Track sends ev. A nil ev is a page view.
func (b *Beacon) Track(ev Event) *Pending {
	if ev == nil {
		ev = PageView{}
	}
	payload, ok := b.resolve(ev)
	if !ok {
		b.dropped.Add(1)
		return settled()
	}
	return b.send(payload, KindEvent)
}

// Identify sends the default payload with data attached, as an identify
// message.
func (b *Beacon) Identify(data map[string]any) *Pending {
	p := b.Payload()
	p.Data = data
	return b.send(p, KindIdentify)
}

// resolve builds the payload of ev. A panicking Transform is contained.
func (b *Beacon) resolve(ev Event) (payload any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Debug("payload transform panicked", "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return ev.resolve(b.Payload()), true
}

func (b *Beacon) send(payload any, kind Kind) *Pending {
	if b.Disabled() {
		b.skipped.Add(1)
		return settled()
	}

	p := newPending()
	token := b.session.correlationToken()
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()

		next, err := b.sender.Send(context.Background(), kind, payload, token)
		if errors.Is(err, ErrEncodePayload) {
			b.dropped.Add(1)
			b.logger.Debug("beacon payload dropped", "kind", string(kind), "error", err)
			p.resolve("", false)
			return
		}
		if err != nil {
			b.failed.Add(1)
			b.logger.Debug("beacon send failed", "kind", string(kind), "error", err)
			p.resolve("", false)
			return
		}
		b.sent.Add(1)
		b.session.setToken(next)
		b.logger.Debug("beacon send settled", "kind", string(kind), "token", next)
		p.resolve(next, true)
	}()
	return p
}

// Wait blocks until every in-flight send, scheduled page view and pending
// click navigation has settled, or ctx ends.
func (b *Beacon) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
