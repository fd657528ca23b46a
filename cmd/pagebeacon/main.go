// Package main provides the entry point for the pagebeacon CLI.
//
// pagebeacon replays scripted visits against pages that embed the activity
// beacon, and runs a local collector that stores what the beacon sends.
//
// Usage:
//
//	pagebeacon collect
//	pagebeacon replay <scenario.yaml>...
//	pagebeacon report
//
// See --help for all available options.
package main

// main is the entry point for pagebeacon.
func main() {
	Execute()
}
