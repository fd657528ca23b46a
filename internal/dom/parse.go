package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// scriptMarker identifies the embedding script when no src filter is given.
const scriptMarker = "data-website-id"

// Parse builds a window showing the HTML read from r at pageURL.
func Parse(r io.Reader, pageURL string, opts ...Option) (*Window, error) {
	o := options{
		screen:     Screen{Width: DefaultScreenWidth, Height: DefaultScreenHeight},
		language:   DefaultLanguage,
		readyState: ReadyStateComplete,
	}
	for _, opt := range opts {
		opt(&o)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return newWindow(root, pageURL, o)
}

func findScript(root *html.Node, srcSubstr string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "script" && isEmbedding(n, srcSubstr) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func isEmbedding(n *html.Node, srcSubstr string) bool {
	for _, a := range n.Attr {
		if srcSubstr != "" {
			if a.Key == "src" && strings.Contains(a.Val, srcSubstr) {
				return true
			}
			continue
		}
		if a.Key == scriptMarker {
			return true
		}
	}
	return false
}
