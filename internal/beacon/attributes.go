package beacon

import (
	"regexp"
	"strings"

	"github.com/nao1215/pagebeacon/internal/dom"
)

// DefaultEventAttribute marks an element as tracked; its value is the
// event name. Event data comes from DefaultEventAttribute + "-<key>".
const DefaultEventAttribute = "data-track-event"

// eventKeyPattern restricts event data keys to wire-safe characters.
var eventKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// eventAttributes names the attributes an element opts in with.
type eventAttributes struct {
	name       string
	dataPrefix string
}

func newEventAttributes(name string) eventAttributes {
	return eventAttributes{name: name, dataPrefix: name + "-"}
}

// eventName returns the event name of el, or "" when el is not opted in.
func (a eventAttributes) eventName(el *dom.Element) string {
	return el.Attr(a.name)
}

// dataAttributes maps each event data key of el to the attribute holding
// its value. Keys outside the wire-safe character set are skipped.
func (a eventAttributes) dataAttributes(el *dom.Element) map[string]string {
	mapping := make(map[string]string)
	for _, attr := range el.AttrNames() {
		key, ok := strings.CutPrefix(attr, a.dataPrefix)
		if !ok || !eventKeyPattern.MatchString(key) {
			continue
		}
		mapping[key] = attr
	}
	return mapping
}

// eventData reads the event data of el.
func (a eventAttributes) eventData(el *dom.Element) map[string]string {
	data := make(map[string]string)
	for key, attr := range a.dataAttributes(el) {
		data[key] = el.Attr(attr)
	}
	return data
}
