package replay

import "errors"

var (
	// ErrNoPageURL is returned for a scenario without page.url.
	ErrNoPageURL = errors.New("scenario has no page url")

	// ErrNoPageSource is returned when a scenario sets neither page.html nor
	// page.source, or sets both.
	ErrNoPageSource = errors.New("scenario page needs exactly one of html or source")

	// ErrInvalidStep is returned for a step that sets no action or more
	// than one.
	ErrInvalidStep = errors.New("step must set exactly one action")

	// ErrElementNotFound is returned when a click step names an id that is
	// not in the page.
	ErrElementNotFound = errors.New("element not found")
)
