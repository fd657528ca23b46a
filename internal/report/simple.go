package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/replay"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// Plain ASCII keeps the output pipeable into files and other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no rows are shown.
	showEmpty bool

	// verbose adds navigations and opened tabs to replay output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the collector report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder
	s := report.Summary
	if s == nil {
		s = &database.Summary{}
	}

	w.writeBanner(&sb, "PAGEBEACON REPORT")
	website := s.Website
	if website == "" {
		website = "all websites"
	}
	fmt.Fprintf(&sb, "Website:     %s\n", website)
	fmt.Fprintf(&sb, "Generated:   %s\n", formatTime(report.Generated))
	fmt.Fprintf(&sb, "First event: %s\n", formatTime(s.First))
	fmt.Fprintf(&sb, "Last event:  %s\n\n", formatTime(s.Last))

	w.writeSection(&sb, "TOTALS")
	fmt.Fprintf(&sb, "  EVENTS:     %d\n", s.Total)
	fmt.Fprintf(&sb, "  PAGE VIEWS: %d\n", s.PageViews)
	fmt.Fprintf(&sb, "  IDENTIFY:   %d\n", s.Identifies)
	fmt.Fprintf(&sb, "  SESSIONS:   %d\n", s.Sessions)
	fmt.Fprintf(&sb, "  WEBSITES:   %d\n\n", s.Websites)

	w.writeCounts(&sb, "TOP PAGES", s.TopPages)
	w.writeCounts(&sb, "TOP EVENTS", s.TopEvents)
	w.writeCounts(&sb, "REFERRERS", s.Referrers)

	if len(report.Recent) > 0 || w.showEmpty {
		w.writeSection(&sb, "RECENT EVENTS")
		if len(report.Recent) == 0 {
			sb.WriteString("  No events\n")
		}
		for _, ev := range report.Recent {
			fmt.Fprintf(&sb, "  %s  %-16s %s\n", formatTime(ev.ReceivedAt), truncateString(eventLabel(ev), 16), display(ev.URL))
		}
		sb.WriteString("\n")
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteReplay outputs replay results in human-readable format.
func (w *SimpleWriter) WriteReplay(results []replay.Result) (int, error) {
	var sb strings.Builder
	w.writeBanner(&sb, "PAGEBEACON REPLAY")

	var failed int
	for _, r := range results {
		status := "OK"
		switch {
		case r.Error != "":
			status = "FAILED"
			failed++
		case r.Disabled:
			status = "DISABLED"
		}
		fmt.Fprintf(&sb, "[%s] %s\n", status, r.Scenario)
		fmt.Fprintf(&sb, "    steps: %d  sent: %d  failed: %d  skipped: %d  (%s)\n",
			r.Steps, r.Sent, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
		if r.Error != "" {
			fmt.Fprintf(&sb, "    error: %s\n", r.Error)
		}
		if w.verbose {
			fmt.Fprintf(&sb, "    final url: %s\n", r.FinalURL)
			for _, n := range r.Navigations {
				fmt.Fprintf(&sb, "    navigated: %s\n", n)
			}
			for _, o := range r.Opened {
				fmt.Fprintf(&sb, "    opened:    %s\n", o)
			}
		}
	}
	fmt.Fprintf(&sb, "\n%d scenario(s), %d failed\n\n", len(results), failed)

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, title string, counts []database.Count) {
	if len(counts) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, title)
	if len(counts) == 0 {
		sb.WriteString("  None\n")
	}
	for _, c := range counts {
		fmt.Fprintf(sb, "  %6d  %s\n", c.Count, display(c.Key))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (70-len(title))/2) + title + "\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pagebeacon\n")
	sb.WriteString("https://github.com/nao1215/pagebeacon\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
