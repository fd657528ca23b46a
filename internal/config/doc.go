// Package config provides configuration structures and utilities for
// pagebeacon. It defines the options shared by the replay, collect and
// report commands, the optional .pagebeacon profile file, and the XDG
// directories used for local state.
package config
