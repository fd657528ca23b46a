package dom

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/text/language"
)

// Default environment of a window.
const (
	DefaultScreenWidth  = 1920
	DefaultScreenHeight = 1080
	DefaultLanguage     = "en-US"
)

// Screen is the display size reported to scripts.
type Screen struct {
	Width  int
	Height int
}

// String formats the screen as "WxH".
func (s Screen) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Navigator describes the browser.
type Navigator struct {
	// Language is a BCP 47 tag.
	Language string
}

// Window is a browser tab.
type Window struct {
	Screen    Screen
	Navigator Navigator

	location *Location
	history  *History
	document *Document
	storage  *Storage
	globals  *Globals

	mu     sync.Mutex
	opened []string
}

// Location returns the tab's location.
func (w *Window) Location() *Location { return w.location }

// History returns the tab's session history.
func (w *Window) History() *History { return w.history }

// Document returns the loaded document.
func (w *Window) Document() *Document { return w.document }

// LocalStorage returns the tab's local storage.
func (w *Window) LocalStorage() *Storage { return w.storage }

// Globals returns the global namespace.
func (w *Window) Globals() *Globals { return w.globals }

// Opened lists URLs opened in new browsing contexts.
func (w *Window) Opened() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.opened...)
}

func (w *Window) open(href string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, href)
}

// Option configures a Window.
type Option func(*options)

type options struct {
	referrer   string
	screen     Screen
	language   string
	readyState string
	scriptSrc  string
	storage    map[string]string
}

// WithReferrer sets document.referrer.
func WithReferrer(referrer string) Option {
	return func(o *options) { o.referrer = referrer }
}

// WithScreen sets the screen size.
func WithScreen(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.screen = Screen{Width: width, Height: height}
		}
	}
}

// WithLanguage sets navigator.language. The tag is canonicalized; an
// unparsable tag is kept verbatim.
func WithLanguage(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.language = tag
		}
	}
}

// WithReadyState sets the initial document ready state. Default complete.
func WithReadyState(state string) Option {
	return func(o *options) {
		if state != "" {
			o.readyState = state
		}
	}
}

// WithScriptSrc selects the current script as the first <script> whose src
// contains substr. Without it the first script carrying data-website-id is
// used.
func WithScriptSrc(substr string) Option {
	return func(o *options) { o.scriptSrc = substr }
}

// WithLocalStorage seeds local storage.
func WithLocalStorage(items map[string]string) Option {
	return func(o *options) { o.storage = items }
}

// NewWindow returns a window showing an empty document at pageURL.
func NewWindow(pageURL string, opts ...Option) (*Window, error) {
	return Parse(strings.NewReader(""), pageURL, opts...)
}

func canonicalLanguage(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return t.String()
}

func newWindow(root *html.Node, pageURL string, o options) (*Window, error) {
	loc, err := newLocation(pageURL)
	if err != nil {
		return nil, err
	}
	w := &Window{
		Screen:    o.screen,
		Navigator: Navigator{Language: canonicalLanguage(o.language)},
		location:  loc,
		history:   newHistory(loc),
		storage:   newStorage(o.storage),
		globals:   &Globals{},
	}
	w.document = &Document{
		win:        w,
		root:       root,
		readyState: o.readyState,
		referrer:   o.referrer,
	}
	if head := findElement(root, "head"); head != nil {
		for c := head.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "title" {
				w.document.title = c
				break
			}
		}
	}
	w.document.currentScript = findScript(root, o.scriptSrc)
	return w, nil
}
