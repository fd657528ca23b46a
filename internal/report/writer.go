package report

import (
	"io"
	"net/url"
	"time"

	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/replay"
)

// Report is what the report command renders: a summary of stored events
// and the most recent of them.
type Report struct {
	Generated time.Time         `json:"generated"`
	Summary   *database.Summary `json:"summary"`
	Recent    []database.Event  `json:"recent,omitempty"`
}

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a collector report.
	Write(report *Report) (int, error)

	// WriteReplay outputs the results of replayed scenarios.
	WriteReplay(results []replay.Result) (int, error)
}

// MultiWriter writes to multiple Writers, for example the terminal and a
// file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written. Stops on first error encountered.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteReplay outputs replay results to all configured Writers.
func (m *MultiWriter) WriteReplay(results []replay.Result) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteReplay(results)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// display undoes the percent-encoding beacons apply to titles and URLs.
// Values that do not decode are shown as stored.
func display(s string) string {
	if s == "" {
		return "-"
	}
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}

// formatTime renders t, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// eventLabel describes an event in one word: its name, "pageview" or
// "identify".
func eventLabel(ev database.Event) string {
	switch {
	case ev.Type == "identify":
		return "identify"
	case ev.Name != "":
		return ev.Name
	default:
		return "pageview"
	}
}
