// Package beacon observes a tab's navigation and interaction and forwards
// analytics payloads to a collection endpoint.
//
// # Lifecycle
//
// New reads the tracking configuration from the embedding script element
// once. Start installs the global API and, when auto tracking is on, waits
// for the document to be complete before sending the first page view and
// attaching watchers:
//
//   - history: pushState/replaceState are wrapped; a changed URL schedules a
//     page view after a short delay so the app can finish rendering
//   - title: mutations of <head><title> update the tracked title
//   - clicks: anchors and buttons carrying the event attribute are tracked;
//     same-tab anchor navigation waits for the send to settle
//
// # Failure model
//
// Telemetry is best effort. Sends run on their own goroutine, errors are
// logged at debug level and dropped, and nothing the beacon does can fail or
// block the page. Every send returns a *Pending that callers may ignore.
//
//	b := beacon.New(win, sender, beacon.WithLogger(logger))
//	b.Start()
//	b.Track(beacon.Named{Name: "signup", Data: map[string]string{"plan": "pro"}})
//	_ = b.Wait(ctx)
package beacon
