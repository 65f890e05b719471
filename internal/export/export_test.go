package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"retroboard/api/internal/store"
)

type fakeData struct {
	retro    store.Retro
	sections []store.Section
	items    map[int64][]store.Item
	actions  map[int64][]store.ActionItem
}

func (f *fakeData) GetRetro(_ context.Context, retroID int64) (store.Retro, error) {
	if f.retro.ID != retroID {
		return store.Retro{}, sql.ErrNoRows
	}
	return f.retro, nil
}

func (f *fakeData) ListSections(context.Context, int64) ([]store.Section, error) {
	return f.sections, nil
}

func (f *fakeData) ListItems(_ context.Context, sectionID int64, _ string) ([]store.Item, error) {
	return f.items[sectionID], nil
}

func (f *fakeData) ListActionItems(_ context.Context, sectionID int64) ([]store.ActionItem, error) {
	return f.actions[sectionID], nil
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Sprint 23 Retrospective", "sprint-23-retrospective"},
		{"  Weekly   Sync  ", "weekly-sync"},
		{"Q3/Q4 Planning!", "q3q4-planning"},
		{"", "retrospective"},
		{"???", "retrospective"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExportJSONShape(t *testing.T) {
	created := time.Date(2026, time.August, 20, 9, 30, 0, 0, time.UTC)
	data := &fakeData{
		retro: store.Retro{ID: 1, Name: "Sprint 23 Retrospective", CreatedAt: created},
		sections: []store.Section{
			{ID: 10, RetroID: 1, Name: store.SectionWentWell},
			{ID: 11, RetroID: 1, Name: store.SectionImprove},
			{ID: 12, RetroID: 1, Name: store.SectionKudos},
			{ID: 13, RetroID: 1, Name: store.SectionActionItems},
			{ID: 14, RetroID: 1, Name: store.SectionProductDesign},
		},
		items: map[int64][]store.Item{
			10: {{ID: 100, SectionID: 10, Content: "Release went smoothly", CreatedAt: created}},
		},
		actions: map[int64][]store.ActionItem{
			13: {{ID: 200, SectionID: 13, Description: "Fix CI flake", AssignedOwner: "Alice", Priority: "High", CreatedAt: created}},
		},
	}
	svc := NewService(data)

	result, err := svc.Export(context.Background(), Request{RetroID: 1, Format: FormatJSON})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "retro-results-sprint-23-retrospective.json" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if result.MimeType != "application/json" {
		t.Fatalf("unexpected mime type %q", result.MimeType)
	}

	var doc Document
	if err := json.Unmarshal(result.Data, &doc); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if doc.Retrospective != "Sprint 23 Retrospective" {
		t.Fatalf("unexpected retrospective %q", doc.Retrospective)
	}
	// The document date is the retrospective's creation time.
	if doc.Date != "August 20, 2026 9:30 AM" {
		t.Fatalf("unexpected export date %q", doc.Date)
	}

	// Empty sections are omitted: one item section plus action items.
	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(doc.Sections))
	}
	if doc.Sections[0].Name != "What Went Well" {
		t.Fatalf("unexpected first section %q", doc.Sections[0].Name)
	}
	if doc.Sections[1].Name != "Action Items" {
		t.Fatalf("unexpected second section %q", doc.Sections[1].Name)
	}

	raw, _ := json.Marshal(doc.Sections[0].Items[0])
	var itemEntry map[string]any
	_ = json.Unmarshal(raw, &itemEntry)
	if itemEntry["content"] != "Release went smoothly" || itemEntry["date"] != "August 20, 2026" {
		t.Fatalf("unexpected item entry: %v", itemEntry)
	}
	if len(itemEntry) != 2 {
		t.Fatalf("item entry should carry content and date only, got %v", itemEntry)
	}

	raw, _ = json.Marshal(doc.Sections[1].Items[0])
	var actionEntry map[string]any
	_ = json.Unmarshal(raw, &actionEntry)
	if actionEntry["description"] != "Fix CI flake" || actionEntry["owner"] != "Alice" || actionEntry["priority"] != "High" {
		t.Fatalf("unexpected action entry: %v", actionEntry)
	}
	if _, ok := actionEntry["dueDate"]; ok {
		t.Fatal("action entry must not carry a due date")
	}
}

func TestExportUnknownRetro(t *testing.T) {
	svc := NewService(&fakeData{retro: store.Retro{ID: 1}})
	if _, err := svc.Export(context.Background(), Request{RetroID: 99, Format: FormatJSON}); err == nil {
		t.Fatal("expected error for unknown retro")
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	data := &fakeData{retro: store.Retro{ID: 1, Name: "Weekly Sync"}}
	svc := NewService(data)
	if _, err := svc.Export(context.Background(), Request{RetroID: 1, Format: "docx"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestRenderRetroHTML(t *testing.T) {
	html, err := RenderRetroHTML(TemplateData{
		Name: "Sprint 23 Retrospective",
		Date: "August 28, 2026 2:30 PM",
		Sections: []TemplateSection{
			{
				Title: "What Went Well",
				Items: []TemplateItem{{Content: "Release went smoothly", Upvotes: 2, Date: "August 20, 2026"}},
			},
			{
				Title:   "Action Items",
				Actions: []TemplateAction{{Description: "Fix CI flake", Owner: "Alice", Priority: "High", Date: "August 20, 2026"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("RenderRetroHTML() error = %v", err)
	}
	for _, want := range []string{"Sprint 23 Retrospective", "Release went smoothly", "Fix CI flake", "Alice", "High"} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered HTML missing %q", want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b&c")
	if got != "a%20b%26c" {
		t.Fatalf("percentEncodeForDataURL = %q", got)
	}
}
