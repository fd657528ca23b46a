package beacon

// Kind is the wire message kind.
type Kind string

const (
	// KindEvent carries page views and named events.
	KindEvent Kind = "event"
	// KindIdentify attaches data to the visitor.
	KindIdentify Kind = "identify"
)

// Envelope is the request body sent to the collection endpoint.
type Envelope struct {
	Type    Kind `json:"type"`
	Payload any  `json:"payload"`
}

// Payload is the default body of a tracked event.
type Payload struct {
	Website  string         `json:"website"`
	Hostname string         `json:"hostname"`
	Screen   string         `json:"screen"`
	Language string         `json:"language"`
	Title    string         `json:"title,omitempty"`
	URL      string         `json:"url,omitempty"`
	Referrer string         `json:"referrer,omitempty"`
	Tag      string         `json:"tag,omitempty"`
	Name     string         `json:"name,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Event selects what Track sends. The implementations are PageView, Named,
// Raw and Transform.
type Event interface {
	resolve(base Payload) any
}

// PageView sends the default payload.
type PageView struct{}

func (PageView) resolve(base Payload) any { return base }

// Named sends the default payload with an event name and optional data.
type Named struct {
	Name string
	Data map[string]string
}

func (n Named) resolve(base Payload) any {
	base.Name = n.Name
	if len(n.Data) > 0 {
		base.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			base.Data[k] = v
		}
	}
	return base
}

// Raw is sent verbatim in place of the default payload.
type Raw map[string]any

func (r Raw) resolve(Payload) any { return map[string]any(r) }

// Transform receives the default payload and returns what is sent.
type Transform func(Payload) any

func (t Transform) resolve(base Payload) any { return t(base) }
