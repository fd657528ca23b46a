package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted page session.
type Scenario struct {
	// Name labels the scenario in results. Defaults to the file name.
	Name  string `yaml:"name,omitempty"`
	Page  Page   `yaml:"page"`
	Steps []Step `yaml:"steps,omitempty"`
}

// Page describes the host page a scenario runs on.
type Page struct {
	// URL is the address the page is loaded from.
	URL string `yaml:"url"`
	// HTML is a file holding the markup, relative to the scenario file.
	HTML string `yaml:"html,omitempty"`
	// Source is inline markup, used instead of HTML.
	Source string `yaml:"source,omitempty"`
	// Script selects the embedding script by a substring of its src.
	Script   string `yaml:"script,omitempty"`
	Referrer string `yaml:"referrer,omitempty"`
	// Screen is "WIDTHxHEIGHT". Empty uses the profile or the default.
	Screen   string `yaml:"screen,omitempty"`
	Language string `yaml:"language,omitempty"`
	// Storage seeds local storage.
	Storage map[string]string `yaml:"storage,omitempty"`
	// Ready is the ready state the page starts in. Defaults to complete.
	Ready string `yaml:"ready,omitempty"`
}

// Step is one visitor action. Exactly one field is set.
type Step struct {
	Push     string         `yaml:"push,omitempty"`
	Replace  string         `yaml:"replace,omitempty"`
	Title    *string        `yaml:"title,omitempty"`
	Click    *Click         `yaml:"click,omitempty"`
	Track    *Track         `yaml:"track,omitempty"`
	Identify map[string]any `yaml:"identify,omitempty"`
	Ready    string         `yaml:"ready,omitempty"`
	Wait     time.Duration  `yaml:"wait,omitempty"`
}

// Click clicks the element with the given id.
type Click struct {
	ID     string `yaml:"id"`
	Ctrl   bool   `yaml:"ctrl,omitempty"`
	Shift  bool   `yaml:"shift,omitempty"`
	Meta   bool   `yaml:"meta,omitempty"`
	Button int    `yaml:"button,omitempty"`
}

// Track is a manual tracking call.
type Track struct {
	Name string            `yaml:"name"`
	Data map[string]string `yaml:"data,omitempty"`
}

// LoadScenario reads and validates a scenario file. A relative page.html
// is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // scenario paths come from the user
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// ParseScenario decodes and validates YAML scenario data.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if sc.Page.HTML != "" && !filepath.IsAbs(sc.Page.HTML) && baseDir != "" {
		sc.Page.HTML = filepath.Join(baseDir, sc.Page.HTML)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the page and that every step sets exactly one action.
func (s *Scenario) Validate() error {
	if s.Page.URL == "" {
		return ErrNoPageURL
	}
	if (s.Page.HTML == "") == (s.Page.Source == "") {
		return ErrNoPageSource
	}
	for i, step := range s.Steps {
		if _, err := step.action(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// source returns the page markup.
func (p Page) source() (string, error) {
	if p.Source != "" {
		return p.Source, nil
	}
	data, err := os.ReadFile(p.HTML)
	if err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return string(data), nil
}

// action turns the step into the Action it describes.
func (s Step) action() (Action, error) {
	var actions []Action
	if s.Push != "" {
		actions = append(actions, historyAction{replace: false, url: s.Push})
	}
	if s.Replace != "" {
		actions = append(actions, historyAction{replace: true, url: s.Replace})
	}
	if s.Title != nil {
		actions = append(actions, titleAction{title: *s.Title})
	}
	if s.Click != nil {
		if s.Click.ID == "" {
			return nil, fmt.Errorf("%w: click needs an id", ErrInvalidStep)
		}
		actions = append(actions, clickAction(*s.Click))
	}
	if s.Track != nil {
		actions = append(actions, trackAction{t: *s.Track})
	}
	if s.Identify != nil {
		actions = append(actions, identifyAction{data: s.Identify})
	}
	if s.Ready != "" {
		actions = append(actions, readyAction{state: s.Ready})
	}
	if s.Wait > 0 {
		actions = append(actions, waitAction{d: s.Wait})
	}
	if len(actions) != 1 {
		return nil, ErrInvalidStep
	}
	return actions[0], nil
}
