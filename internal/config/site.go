package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Profile describes how pages of one host are replayed and where their
// beacons report to.
type Profile struct {
	// Endpoint overrides the collection URL.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Headers are added to every beacon request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Screen is the simulated screen size, e.g. "1280x720".
	Screen string `yaml:"screen,omitempty"`

	// Language is the simulated navigator language, e.g. "de-DE".
	Language string `yaml:"language,omitempty"`

	// UserAgent overrides the User-Agent of beacon requests.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File represents the structure of the .pagebeacon profile file.
type File struct {
	// Sites maps page hostnames (e.g. "shop.example.com") to profiles.
	Sites map[string]Profile `yaml:"sites,omitempty"`

	// Defaults applies to every host unless a site profile overrides it.
	Defaults Profile `yaml:"defaults,omitempty"`
}

// Validate checks endpoints and screen sizes of every profile.
func (cf *File) Validate() error {
	check := func(p Profile) error {
		if p.Endpoint != "" {
			if err := ValidateEndpoint(p.Endpoint); err != nil {
				return err
			}
		}
		if p.Screen != "" {
			if _, _, err := ParseScreen(p.Screen); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(cf.Defaults); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for host, p := range cf.Sites {
		if err := check(p); err != nil {
			return fmt.Errorf("site %s: %w", host, err)
		}
	}
	return nil
}

// GetProfile returns the profile for host, merging the site entry over the
// defaults. A nil File yields the zero profile.
func (cf *File) GetProfile(host string) Profile {
	if cf == nil {
		return Profile{}
	}
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Endpoint != "" {
		result.Endpoint = site.Endpoint
	}
	if site.Screen != "" {
		result.Screen = site.Screen
	}
	if site.Language != "" {
		result.Language = site.Language
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

// ParseScreen parses "WIDTHxHEIGHT".
func ParseScreen(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScreen, s)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidScreen, s)
	}
	return width, height, nil
}
