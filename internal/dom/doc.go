// Package dom is an in-memory model of a browser tab: window, location,
// history, document and elements.
//
// It gives the beacon something real to observe outside a browser. Pages are
// built from HTML with golang.org/x/net/html, navigation goes through
// replaceable history methods, title changes notify observers, and clicks are
// dispatched to document-level listeners before the default anchor action
// runs.
//
// # Usage
//
//	win, err := dom.Parse(strings.NewReader(page), "https://example.com/",
//		dom.WithReferrer("https://search.example/"),
//		dom.WithScreen(1920, 1080),
//	)
//	el := win.Document().ElementByID("buy")
//	ev := win.Document().Click(el, dom.ClickOptions{})
//
// All types are safe for concurrent use.
package dom
