package beacon

import (
	"net/url"
	"strings"
)

// Normalizer turns URLs into the path[?query][#fragment] form that is
// tracked.
type Normalizer struct {
	origin        *url.URL
	excludeSearch bool
	excludeHash   bool
}

// NewNormalizer returns a Normalizer resolving relative URLs against origin.
func NewNormalizer(origin string, excludeSearch, excludeHash bool) Normalizer {
	u, err := url.Parse(origin)
	if err != nil || !u.IsAbs() {
		u = nil
	}
	return Normalizer{origin: u, excludeSearch: excludeSearch, excludeHash: excludeHash}
}

// Normalize returns the tracked form of raw, or "" when raw cannot be
// parsed.
func (n Normalizer) Normalize(raw string) string {
	out := n.resolve(raw)
	if n.excludeSearch {
		out, _, _ = strings.Cut(out, "?")
	}
	if n.excludeHash {
		out, _, _ = strings.Cut(out, "#")
	}
	return out
}

func (n Normalizer) resolve(raw string) string {
	if n.origin == nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	u := n.origin.ResolveReference(ref)

	var b strings.Builder
	path := u.EscapedPath()
	switch {
	case u.Opaque != "":
		// javascript:, mailto: and the like keep their opaque part as path.
		path = u.Opaque
	case path == "":
		path = "/"
	}
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if frag := u.EscapedFragment(); frag != "" {
		b.WriteByte('#')
		b.WriteString(frag)
	}
	return b.String()
}

// Encode percent-encodes s the way encodeURI does, unless s already carries
// percent escapes, in which case it is returned as is. Encode never encodes
// twice: Encode(Encode(s)) == Encode(s).
func Encode(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return encodeURI(s)
	}
	if decoded != s {
		return s
	}
	return encodeURI(s)
}

// uriSafe lists the bytes encodeURI leaves alone besides ASCII letters and
// digits.
const uriSafe = ";,/?:@&=+$-_.!~*'()#"

func encodeURI(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnescaped(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isURIUnescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	default:
		return strings.IndexByte(uriSafe, c) >= 0
	}
}
