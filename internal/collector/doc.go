// Package collector implements the collection endpoint beacons post to.
//
// It is a development sink: requests are validated, tagged with a session
// id and stored in the event database. The session id travels back to the
// beacon as the raw response body and returns on the next request in the
// correlation header, so every event of a tab shares one session.
package collector
