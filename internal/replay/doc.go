// Package replay drives beacons through scripted page sessions.
//
// A scenario names a page (URL plus HTML) and a list of steps a visitor
// performs on it: history navigation, title changes, clicks, manual
// tracking calls. Runner builds the page model, starts a beacon on it,
// plays the steps in order and waits for every send to settle. BatchRunner
// replays many scenarios concurrently.
package replay
