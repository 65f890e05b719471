// Package export produces downloadable retrospective summaries in JSON and PDF.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	RetroID int64
	Format  Format
}

// Document is the exported summary of one retrospective.
type Document struct {
	Retrospective string    `json:"retrospective"`
	Date          string    `json:"date"`
	Sections      []Section `json:"sections"`
}

// Section is one named bucket in the export, holding either plain
// item entries or action-item entries depending on the category.
type Section struct {
	Name  string `json:"name"`
	Items []any  `json:"items"`
}

// ItemEntry is a free-text contribution in the export.
type ItemEntry struct {
	Content string `json:"content"`
	Date    string `json:"date"`
}

// ActionEntry is a structured follow-up task in the export.
// Due dates are not part of the persisted record and never appear here.
type ActionEntry struct {
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Priority    string `json:"priority"`
	Date        string `json:"date"`
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
