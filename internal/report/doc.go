// Package report renders collected events and replay results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text output for terminal display
//   - MarkdownWriter: GitHub-flavored Markdown with tables and charts
//   - JSONWriter: structured JSON output for tool integration
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter.
package report
