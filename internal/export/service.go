package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"retroboard/api/internal/store"
)

// DataStore defines the data access the exporter needs. The store's
// viewer-specific item flags are irrelevant here, so viewerName is
// always passed empty.
type DataStore interface {
	GetRetro(ctx context.Context, retroID int64) (store.Retro, error)
	ListSections(ctx context.Context, retroID int64) ([]store.Section, error)
	ListItems(ctx context.Context, sectionID int64, viewerName string) ([]store.Item, error)
	ListActionItems(ctx context.Context, sectionID int64) ([]store.ActionItem, error)
}

// Service provides retrospective export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(st DataStore) *Service {
	return &Service{store: st}
}

const (
	exportDateLayout = "January 2, 2006 3:04 PM"
	entryDateLayout  = "January 2, 2006"
)

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	retro, err := s.store.GetRetro(ctx, req.RetroID)
	if err != nil {
		return nil, fmt.Errorf("get retro: %w", err)
	}

	sections, err := s.store.ListSections(ctx, retro.ID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	bySec := make(map[string]store.Section, len(sections))
	for _, sec := range sections {
		bySec[sec.Name] = sec
	}

	// The document is dated by the retrospective itself, not by when
	// the export was generated.
	doc := Document{
		Retrospective: retro.Name,
		Date:          retro.CreatedAt.Format(exportDateLayout),
		Sections:      []Section{},
	}
	tpl := TemplateData{
		Name: retro.Name,
		Date: doc.Date,
	}

	// Canonical category order; sections with no entries are omitted
	// from the JSON document but still rendered (empty) in the PDF.
	for _, category := range store.SectionCategories() {
		sec, ok := bySec[category]
		if !ok {
			continue
		}
		title := store.SectionTitle(category)

		if category == store.SectionActionItems {
			actions, err := s.store.ListActionItems(ctx, sec.ID)
			if err != nil {
				return nil, fmt.Errorf("list action items: %w", err)
			}
			tplSec := TemplateSection{Title: title}
			entries := make([]any, 0, len(actions))
			for _, a := range actions {
				date := a.CreatedAt.Format(entryDateLayout)
				entries = append(entries, ActionEntry{
					Description: a.Description,
					Owner:       a.AssignedOwner,
					Priority:    a.Priority,
					Date:        date,
				})
				tplSec.Actions = append(tplSec.Actions, TemplateAction{
					Description: a.Description,
					Owner:       a.AssignedOwner,
					Priority:    a.Priority,
					Date:        date,
				})
			}
			if len(entries) > 0 {
				doc.Sections = append(doc.Sections, Section{Name: title, Items: entries})
			}
			tpl.Sections = append(tpl.Sections, tplSec)
			continue
		}

		items, err := s.store.ListItems(ctx, sec.ID, "")
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		tplSec := TemplateSection{Title: title}
		entries := make([]any, 0, len(items))
		for _, it := range items {
			date := it.CreatedAt.Format(entryDateLayout)
			entries = append(entries, ItemEntry{Content: it.Content, Date: date})
			tplSec.Items = append(tplSec.Items, TemplateItem{
				Content: it.Content,
				Upvotes: it.Upvotes,
				Date:    date,
			})
		}
		if len(entries) > 0 {
			doc.Sections = append(doc.Sections, Section{Name: title, Items: entries})
		}
		tpl.Sections = append(tpl.Sections, tplSec)
	}

	base := "retro-results-" + Slugify(retro.Name)

	switch req.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal export: %w", err)
		}
		return &Result{
			Data:     data,
			Filename: base + ".json",
			MimeType: "application/json",
		}, nil
	case FormatPDF:
		html, err := RenderRetroHTML(tpl)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, base+".pdf")
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// Slugify lower-cases a retrospective name and replaces whitespace runs
// with single hyphens, dropping anything else that is unsafe in a filename.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.TrimSpace(strings.ToLower(name)) {
		switch {
		case unicode.IsSpace(r):
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
			lastHyphen = false
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "retrospective"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug
}
