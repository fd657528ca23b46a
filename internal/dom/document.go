package dom

import (
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document ready states.
const (
	ReadyStateLoading     = "loading"
	ReadyStateInteractive = "interactive"
	ReadyStateComplete    = "complete"
)

// ClickOptions describe how an element is activated.
type ClickOptions struct {
	// Button is the mouse button: 0 primary, 1 middle (auxiliary), 2 secondary.
	Button int
	Ctrl   bool
	Shift  bool
	Meta   bool
	Alt    bool
}

// ClickEvent is dispatched to click listeners.
type ClickEvent struct {
	ClickOptions

	// Target is the element the click landed on.
	Target *Element

	mu        sync.Mutex
	prevented bool
}

// PreventDefault cancels the default action of the click.
func (e *ClickEvent) PreventDefault() {
	e.mu.Lock()
	e.prevented = true
	e.mu.Unlock()
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *ClickEvent) DefaultPrevented() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevented
}

// ClickListener receives click events.
type ClickListener func(*ClickEvent)

type clickListener struct {
	fn      ClickListener
	capture bool
}

// Document is the parsed page.
type Document struct {
	win  *Window
	root *html.Node

	mu             sync.RWMutex
	title          *html.Node
	titleObservers []func(string)
	readyState     string
	readyListeners []func()
	clickListeners []clickListener
	currentScript  *html.Node
	referrer       string
}

// CurrentScript returns the element that embeds the beacon, or nil.
func (d *Document) CurrentScript() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.element(d.currentScript)
}

// Referrer returns the URL of the page that linked here.
func (d *Document) Referrer() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.referrer
}

// Title returns the text of the <title> element, whitespace trimmed.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.title == nil {
		return ""
	}
	return strings.TrimSpace(textOf(d.title))
}

// TitleElement returns the <title> element inside <head>, or nil.
func (d *Document) TitleElement() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.element(d.title)
}

// SetTitle replaces the title text and notifies observers registered
// through ObserveTitle. A document without a title element gets one appended
// to <head>; it starts unobserved.
func (d *Document) SetTitle(text string) {
	d.mu.Lock()
	if d.title == nil {
		d.title = &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
		if head := findElement(d.root, "head"); head != nil {
			head.AppendChild(d.title)
		}
	}
	for c := d.title.FirstChild; c != nil; {
		next := c.NextSibling
		d.title.RemoveChild(c)
		c = next
	}
	d.title.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	observers := append([]func(string){}, d.titleObservers...)
	d.mu.Unlock()

	for _, fn := range observers {
		fn(text)
	}
}

// ObserveTitle registers fn for mutations of the <title> element that exists
// now. It returns false, registering nothing, when there is no such element.
func (d *Document) ObserveTitle(fn func(string)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.title == nil {
		return false
	}
	d.titleObservers = append(d.titleObservers, fn)
	return true
}

// ReadyState returns loading, interactive or complete.
func (d *Document) ReadyState() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readyState
}

// SetReadyState moves the document to state and notifies ready listeners
// when the state changes.
func (d *Document) SetReadyState(state string) {
	d.mu.Lock()
	if d.readyState == state {
		d.mu.Unlock()
		return
	}
	d.readyState = state
	listeners := append([]func(){}, d.readyListeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnReadyStateChange registers fn for every ready state change.
func (d *Document) OnReadyStateChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readyListeners = append(d.readyListeners, fn)
}

// AddClickListener registers a document-level click listener. Capturing
// listeners run before non-capturing ones.
func (d *Document) AddClickListener(fn ClickListener, capture bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clickListeners = append(d.clickListeners, clickListener{fn: fn, capture: capture})
}

// Click dispatches a click on target and, unless a listener prevented it,
// runs the default action: the closest anchor with an href navigates the
// tab, or opens a new browsing context when the activation is external.
func (d *Document) Click(target *Element, opts ClickOptions) *ClickEvent {
	ev := &ClickEvent{ClickOptions: opts, Target: target}

	d.mu.RLock()
	listeners := append([]clickListener(nil), d.clickListeners...)
	d.mu.RUnlock()

	for _, phase := range []bool{true, false} {
		for _, l := range listeners {
			if l.capture == phase {
				l.fn(ev)
			}
		}
	}

	if ev.DefaultPrevented() || target == nil {
		return ev
	}
	for el := target; el != nil; el = el.Parent() {
		if el.TagName() != "A" {
			continue
		}
		href := el.Href()
		if href == "" {
			break
		}
		if IsExternalActivation(el, opts) {
			d.win.open(href)
		} else {
			_ = d.win.location.Assign(href) //nolint:errcheck // href already resolved
		}
		break
	}
	return ev
}

// ElementByID returns the first element with the given id, or nil.
func (d *Document) ElementByID(id string) *Element {
	if id == "" {
		return nil
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == id {
					found = n
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return d.element(found)
}

// IsExternalActivation reports whether activating el with opts opens a new
// browsing context instead of navigating the current one.
func IsExternalActivation(el *Element, opts ClickOptions) bool {
	return el.Target() == "_blank" || opts.Ctrl || opts.Shift || opts.Meta || opts.Button == 1
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
