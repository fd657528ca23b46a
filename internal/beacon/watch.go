package beacon

import (
	"github.com/nao1215/pagebeacon/internal/dom"
)

// maxAncestorDepth bounds the search for an interactive ancestor.
const maxAncestorDepth = 10

// watchHistory wraps pushState and replaceState.
func (b *Beacon) watchHistory() {
	h := b.win.History()
	for _, m := range []dom.Method{dom.PushState, dom.ReplaceState} {
		h.SetMethod(m, Wrap(h.Method(m), b.handleHistoryChange).Call)
	}
}

func (b *Beacon) handleHistoryChange(_ any, _ string, url string) {
	if url == "" {
		return
	}
	if !b.session.navigate(b.normalizer.Normalize(url)) {
		return
	}
	b.inflight.Add(1)
	b.scheduler.AfterFunc(b.delay, func() {
		defer b.inflight.Done()
		b.Track(PageView{})
	})
}

// watchTitle follows the <title> element, if there is one.
func (b *Beacon) watchTitle() {
	if !b.win.Document().ObserveTitle(b.session.setTitle) {
		b.logger.Debug("no title element to observe")
	}
}

// watchClicks installs the capturing click listener.
func (b *Beacon) watchClicks() {
	b.win.Document().AddClickListener(b.handleClick, true)
}

func (b *Beacon) handleClick(ev *dom.ClickEvent) {
	target := ev.Target
	if target == nil {
		return
	}

	el := target
	if !isInteractive(el) {
		el = findInteractive(target, maxAncestorDepth)
	}
	if el == nil {
		b.trackElement(target)
		return
	}
	if b.attrs.eventName(el) == "" {
		return
	}

	switch el.TagName() {
	case "A":
		href := el.Href()
		if href == "" {
			return
		}
		external := dom.IsExternalActivation(el, ev.ClickOptions)
		if !external {
			ev.PreventDefault()
		}
		p := b.trackElement(el)
		if external {
			return
		}
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			<-p.Done()
			if err := b.win.Location().Assign(href); err != nil {
				b.logger.Debug("navigation after tracked click failed", "href", href, "error", err)
			}
		}()
	case "BUTTON":
		b.trackElement(el)
	}
}

// trackElement sends the named event of el. Elements without the event
// attribute send nothing.
func (b *Beacon) trackElement(el *dom.Element) *Pending {
	name := b.attrs.eventName(el)
	if name == "" {
		return settled()
	}
	return b.Track(Named{Name: name, Data: b.attrs.eventData(el)})
}

func isInteractive(el *dom.Element) bool {
	switch el.TagName() {
	case "A", "BUTTON":
		return true
	default:
		return false
	}
}

// findInteractive returns the closest anchor or button starting at el,
// looking at no more than depth elements.
func findInteractive(el *dom.Element, depth int) *dom.Element {
	for i := 0; i < depth && el != nil; i++ {
		if isInteractive(el) {
			return el
		}
		el = el.Parent()
	}
	return nil
}
