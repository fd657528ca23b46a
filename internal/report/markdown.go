package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/replay"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown, built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the collector report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := report.Summary
	if s == nil {
		s = &database.Summary{}
	}

	md.H1("pagebeacon Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Website", websiteLabel(s.Website)},
			{"Generated", formatTime(report.Generated)},
			{"First Event", formatTime(s.First)},
			{"Last Event", formatTime(s.Last)},
		},
	})
	md.PlainText("")

	md.H2("Totals")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Events", strconv.Itoa(s.Total)},
			{"Page Views", strconv.Itoa(s.PageViews)},
			{"Identify Calls", strconv.Itoa(s.Identifies)},
			{"Sessions", strconv.Itoa(s.Sessions)},
			{"Websites", strconv.Itoa(s.Websites)},
		},
	})
	md.PlainText("")

	if s.Total == 0 {
		md.Note("No events collected yet. Start the collector and replay a scenario.")
		md.PlainText("")
	}

	w.writeCounts(md, "Top Pages", "URL", s.TopPages)
	w.writeCounts(md, "Top Events", "Event", s.TopEvents)
	if len(s.TopEvents) > 1 {
		w.writePieChart(md, s.TopEvents)
	}
	w.writeCounts(md, "Referrers", "Referrer", s.Referrers)
	w.writeRecent(md, report.Recent)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, title, column string, counts []database.Count) {
	md.H2(title)
	md.PlainText("")
	if len(counts) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{truncateString(display(c.Key), 60), strconv.Itoa(c.Count)}
	}
	md.Table(markdown.TableSet{Header: []string{column, "Count"}, Rows: rows})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of event names.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts []database.Count) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Event Distribution"),
		piechart.WithShowData(true),
	)
	for _, c := range counts {
		chart.LabelAndIntValue(c.Key, uint64(c.Count)) //nolint:gosec // counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecent(md *markdown.Markdown, events []database.Event) {
	if len(events) == 0 {
		return
	}
	md.H2("Recent Events")
	md.PlainText("")
	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = []string{
			formatTime(ev.ReceivedAt),
			eventLabel(ev),
			truncateString(display(ev.URL), 40),
			truncateString(display(ev.Title), 30),
			truncateString(ev.SessionID, 8),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Received", "Event", "URL", "Title", "Session"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteReplay outputs replay results in Markdown format.
func (w *MarkdownWriter) WriteReplay(results []replay.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("pagebeacon Replay")
	md.PlainText("")

	var failed int
	rows := make([][]string, len(results))
	for i, r := range results {
		status := "✅ OK"
		switch {
		case r.Error != "":
			status = "❌ " + truncateString(r.Error, 50)
			failed++
		case r.Disabled:
			status = "⚪ Tracking disabled"
		}
		rows[i] = []string{
			r.Scenario,
			strconv.Itoa(r.Steps),
			strconv.FormatInt(r.Sent, 10),
			strconv.FormatInt(r.Failed, 10),
			strconv.FormatInt(r.Skipped, 10),
			r.Duration.Round(time.Millisecond).String(),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Scenario", "Steps", "Sent", "Failed", "Skipped", "Duration", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if failed > 0 {
		md.Warningf("%d of %d scenario(s) failed.", failed, len(results))
	} else {
		md.Tip("All scenarios replayed.")
	}
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pagebeacon](https://github.com/nao1215/pagebeacon)*")
}

func websiteLabel(website string) string {
	if website == "" {
		return "all websites"
	}
	return "`" + website + "`"
}
