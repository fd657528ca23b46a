package dom

import "errors"

var (
	// ErrInvalidPageURL is returned when a window is created for a URL that
	// is not absolute.
	ErrInvalidPageURL = errors.New("invalid page URL: must be absolute")

	// ErrCrossOrigin is returned when a history entry would change origin.
	ErrCrossOrigin = errors.New("history URL must share the page origin")
)
