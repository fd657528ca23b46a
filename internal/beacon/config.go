package beacon

import (
	"slices"
	"strings"

	"github.com/nao1215/pagebeacon/internal/dom"
)

// Attributes read from the embedding script element.
const (
	AttrWebsiteID     = "data-website-id"
	AttrTag           = "data-tag"
	AttrAutoTrack     = "data-auto-track"
	AttrExcludeSearch = "data-exclude-search"
	AttrExcludeHash   = "data-exclude-hash"
	AttrDomains       = "data-domains"
)

// TrackingConfig is the embedding configuration. It does not change after
// the beacon is created.
type TrackingConfig struct {
	// SiteID is the collection tenant. Empty disables tracking.
	SiteID string
	// Tag is attached to every payload when set.
	Tag string
	// AutoTrack attaches the watchers on start. Defaults to true.
	AutoTrack bool
	// ExcludeSearch strips the query from tracked URLs.
	ExcludeSearch bool
	// ExcludeHash strips the fragment from tracked URLs.
	ExcludeHash bool
	// AllowedDomains, when non-empty, restricts tracking to these hostnames.
	AllowedDomains []string
}

// ReadConfig reads the tracking configuration from script. A nil script
// yields a configuration with tracking disabled.
func ReadConfig(script *dom.Element) TrackingConfig {
	if script == nil {
		return TrackingConfig{AutoTrack: true}
	}
	return TrackingConfig{
		SiteID:         script.Attr(AttrWebsiteID),
		Tag:            script.Attr(AttrTag),
		AutoTrack:      script.Attr(AttrAutoTrack) != "false",
		ExcludeSearch:  script.Attr(AttrExcludeSearch) == "true",
		ExcludeHash:    script.Attr(AttrExcludeHash) == "true",
		AllowedDomains: splitDomains(script.Attr(AttrDomains)),
	}
}

// AllowsHost reports whether hostname passes the domain allowlist.
func (c TrackingConfig) AllowsHost(hostname string) bool {
	return len(c.AllowedDomains) == 0 || slices.Contains(c.AllowedDomains, hostname)
}

func splitDomains(raw string) []string {
	var domains []string
	for _, d := range strings.Split(raw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}
