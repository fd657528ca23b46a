package replay

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/pagebeacon/internal/beacon"
	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/dom"
)

// Result is the outcome of one replayed scenario.
type Result struct {
	Scenario string `json:"scenario"`
	// Disabled is true when the beacon refused to track the page.
	Disabled bool  `json:"disabled"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Skipped  int64 `json:"skipped"`
	// Dropped counts sends abandoned before a request went out.
	Dropped int64 `json:"dropped,omitempty"`
	// FinalURL is the tab location after the last step.
	FinalURL    string        `json:"finalUrl"`
	Navigations []string      `json:"navigations,omitempty"`
	Opened      []string      `json:"opened,omitempty"`
	Token       string        `json:"token,omitempty"`
	Steps       int           `json:"steps"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Runner replays scenarios against a collection endpoint.
type Runner struct {
	endpoint    string
	transport   beacon.TransportOptions
	client      beacon.Doer
	userAgent   string
	cacheHeader string
	profiles    *config.File
	beaconOpts  []beacon.Option
	logger      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTransport sets the HTTP transport options of beacon senders.
func WithTransport(opts beacon.TransportOptions) Option {
	return func(r *Runner) { r.transport = opts }
}

// WithHTTPClient makes every sender use client, ignoring transport options.
func WithHTTPClient(client beacon.Doer) Option {
	return func(r *Runner) { r.client = client }
}

// WithUserAgent sets the User-Agent of beacon requests.
func WithUserAgent(ua string) Option {
	return func(r *Runner) { r.userAgent = ua }
}

// WithCacheHeader sets the correlation header name.
func WithCacheHeader(name string) Option {
	return func(r *Runner) { r.cacheHeader = name }
}

// WithProfiles sets per-host profiles.
func WithProfiles(profiles *config.File) Option {
	return func(r *Runner) { r.profiles = profiles }
}

// WithBeaconOptions adds options applied to every beacon.
func WithBeaconOptions(opts ...beacon.Option) Option {
	return func(r *Runner) { r.beaconOpts = append(r.beaconOpts, opts...) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner returns a Runner posting to endpoint unless a profile
// overrides it.
func NewRunner(endpoint string, opts ...Option) *Runner {
	r := &Runner{endpoint: endpoint}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run replays sc and waits for every send it caused to settle.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (Result, error) {
	start := time.Now()
	res := Result{Scenario: sc.Name}
	if res.Scenario == "" {
		res.Scenario = sc.Page.URL
	}

	if err := sc.Validate(); err != nil {
		return r.fail(res, start, err)
	}
	pageURL, err := url.Parse(sc.Page.URL)
	if err != nil {
		return r.fail(res, start, fmt.Errorf("invalid page url: %w", err))
	}
	profile := r.profiles.GetProfile(pageURL.Hostname())

	win, err := r.buildPage(sc.Page, profile)
	if err != nil {
		return r.fail(res, start, err)
	}
	sender, closeIdle, err := r.newSender(profile)
	if err != nil {
		return r.fail(res, start, err)
	}
	defer closeIdle()

	opts := append([]beacon.Option{beacon.WithLogger(r.logger)}, r.beaconOpts...)
	b := beacon.New(win, sender, opts...)
	res.Disabled = b.Disabled()
	b.Start()

	s := &session{win: win, beacon: b}
	logger := r.logger.With("scenario", res.Scenario)
	for _, step := range sc.Steps {
		action, _ := step.action() //nolint:errcheck // validated above
		logger.Debug("executing step", "step", action.Name())
		if err := action.Do(ctx, s); err != nil {
			err = fmt.Errorf("%s: %w", action.Name(), err)
			_ = r.settle(ctx, b)
			r.collect(&res, win, b)
			return r.fail(res, start, err)
		}
		res.Steps++
	}

	if err := r.settle(ctx, b); err != nil {
		r.collect(&res, win, b)
		return r.fail(res, start, err)
	}
	r.collect(&res, win, b)
	res.Duration = time.Since(start)
	logger.Info("scenario replayed", "sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

func (r *Runner) buildPage(page Page, profile config.Profile) (*dom.Window, error) {
	src, err := page.source()
	if err != nil {
		return nil, err
	}

	opts := []dom.Option{
		dom.WithReferrer(page.Referrer),
		dom.WithScriptSrc(page.Script),
		dom.WithLocalStorage(page.Storage),
	}
	screen := firstNonEmpty(page.Screen, profile.Screen)
	if screen != "" {
		w, h, err := config.ParseScreen(screen)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dom.WithScreen(w, h))
	}
	if lang := firstNonEmpty(page.Language, profile.Language); lang != "" {
		opts = append(opts, dom.WithLanguage(lang))
	}
	if page.Ready != "" {
		opts = append(opts, dom.WithReadyState(page.Ready))
	}

	win, err := dom.Parse(strings.NewReader(src), page.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build page: %w", err)
	}
	return win, nil
}

// newSender builds the sender for one scenario. The returned func releases
// idle connections of a client built here.
func (r *Runner) newSender(profile config.Profile) (*beacon.Sender, func(), error) {
	endpoint := firstNonEmpty(profile.Endpoint, r.endpoint)
	closeIdle := func() {}

	client := r.client
	if client == nil {
		transport := r.transport
		if len(profile.Headers) > 0 {
			headers := make(map[string]string, len(transport.Headers)+len(profile.Headers))
			for k, v := range transport.Headers {
				headers[k] = v
			}
			for k, v := range profile.Headers {
				headers[k] = v
			}
			transport.Headers = headers
		}
		c, err := beacon.NewHTTPClient(transport)
		if err != nil {
			return nil, nil, err
		}
		client = c
		closeIdle = c.CloseIdleConnections
	}

	sender, err := beacon.NewSender(endpoint,
		beacon.WithHTTPClient(client),
		beacon.WithUserAgent(firstNonEmpty(profile.UserAgent, r.userAgent)),
		beacon.WithCacheHeader(r.cacheHeader),
	)
	if err != nil {
		return nil, nil, err
	}
	return sender, closeIdle, nil
}

// settle waits for in-flight sends. Scheduled page views keep their delay,
// so this can take a moment after the last history change.
func (r *Runner) settle(ctx context.Context, b *beacon.Beacon) error {
	if err := b.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for sends: %w", err)
	}
	return nil
}

func (r *Runner) collect(res *Result, win *dom.Window, b *beacon.Beacon) {
	st := b.Stats()
	res.Sent, res.Failed, res.Skipped, res.Dropped = st.Sent, st.Failed, st.Skipped, st.Dropped
	res.FinalURL = win.Location().Href()
	res.Navigations = win.Location().Navigations()
	res.Opened = win.Opened()
	res.Token = b.Session().State().Token
}

func (r *Runner) fail(res Result, start time.Time, err error) (Result, error) {
	res.Duration = time.Since(start)
	res.Error = err.Error()
	return res, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
