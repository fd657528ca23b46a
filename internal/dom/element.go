package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is an element node of a document.
type Element struct {
	node *html.Node
	doc  *Document
}

func (d *Document) element(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return &Element{node: n, doc: d}
}

// TagName returns the upper-case tag name, as the DOM reports it for HTML.
func (e *Element) TagName() string {
	return strings.ToUpper(e.node.Data)
}

// ID returns the id attribute.
func (e *Element) ID() string {
	return e.Attr("id")
}

// Attr returns the value of the named attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	v, _ := e.LookupAttr(name)
	return v
}

// LookupAttr returns the value of the named attribute and whether it exists.
func (e *Element) LookupAttr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AttrNames lists attribute names in document order.
func (e *Element) AttrNames() []string {
	names := make([]string, 0, len(e.node.Attr))
	for _, a := range e.node.Attr {
		names = append(names, a.Key)
	}
	return names
}

// Parent returns the parent element, or nil at the root.
func (e *Element) Parent() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return e.doc.element(p)
		}
		if p.Type == html.DocumentNode {
			return nil
		}
	}
	return nil
}

// Href returns the absolute destination of an anchor, or "" for elements
// that are not anchors or carry no href.
func (e *Element) Href() string {
	if e.node.Data != "a" {
		return ""
	}
	raw, ok := e.LookupAttr("href")
	if !ok {
		return ""
	}
	u, err := e.doc.win.location.Resolve(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.String()
}

// Target returns the target attribute.
func (e *Element) Target() string {
	return e.Attr("target")
}

// Text returns the concatenated text of all descendant text nodes.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return textOf(e.node)
}

// Is reports whether e and other refer to the same node.
func (e *Element) Is(other *Element) bool {
	return e != nil && other != nil && e.node == other.node
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
