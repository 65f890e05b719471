package search

import (
	"context"
	"errors"
	"testing"
)

type fakePrimary struct {
	healthy        bool
	searchFn       func(Query) ([]Result, int, error)
	indexItemsFn   func([]ItemRecord) error
	indexActionsFn func([]ActionRecord) error
}

func (f *fakePrimary) Healthy() bool { return f.healthy }

func (f *fakePrimary) Search(q Query) ([]Result, int, error) {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return nil, 0, nil
}

func (f *fakePrimary) IndexItem(ItemRecord) error     { return nil }
func (f *fakePrimary) IndexAction(ActionRecord) error { return nil }
func (f *fakePrimary) DeleteItem(string) error        { return nil }
func (f *fakePrimary) DeleteAction(string) error      { return nil }

func (f *fakePrimary) IndexItems(items []ItemRecord) error {
	if f.indexItemsFn != nil {
		return f.indexItemsFn(items)
	}
	return nil
}

func (f *fakePrimary) IndexActions(actions []ActionRecord) error {
	if f.indexActionsFn != nil {
		return f.indexActionsFn(actions)
	}
	return nil
}

type fakeFallback struct {
	searchFn func(Query) ([]Result, int, error)
	loadFn   func(context.Context) ([]ItemRecord, []ActionRecord, error)
}

func (f *fakeFallback) Healthy() bool { return true }

func (f *fakeFallback) Search(q Query) ([]Result, int, error) {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return nil, 0, nil
}

func (f *fakeFallback) LoadAllRecords(ctx context.Context) ([]ItemRecord, []ActionRecord, error) {
	if f.loadFn != nil {
		return f.loadFn(ctx)
	}
	return nil, nil, nil
}

func TestSearchUsesMeilisearchWhenHealthy(t *testing.T) {
	primary := &fakePrimary{
		healthy: true,
		searchFn: func(q Query) ([]Result, int, error) {
			return []Result{{Type: ResultItem, ID: "1", Snippet: "Release went smoothly"}}, 1, nil
		},
	}
	fallback := &fakeFallback{
		searchFn: func(Query) ([]Result, int, error) {
			t.Fatal("fallback should not be consulted while Meilisearch is healthy")
			return nil, 0, nil
		},
	}
	svc := &Service{meili: primary, pgfts: fallback}

	resp := svc.Search(Query{Text: "release"})
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Query != "release" {
		t.Fatalf("expected query echoed back, got %q", resp.Query)
	}
}

func TestSearchFallsBackWhenMeilisearchUnhealthy(t *testing.T) {
	primary := &fakePrimary{
		healthy: false,
		searchFn: func(Query) ([]Result, int, error) {
			t.Fatal("unhealthy Meilisearch should not be queried")
			return nil, 0, nil
		},
	}
	fallback := &fakeFallback{
		searchFn: func(q Query) ([]Result, int, error) {
			return []Result{{Type: ResultAction, ID: "20", Snippet: "Fix CI flake"}}, 1, nil
		},
	}
	svc := &Service{meili: primary, pgfts: fallback}

	resp := svc.Search(Query{Text: "flake"})
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "20" {
		t.Fatalf("expected the fallback result, got %+v", resp)
	}
}

func TestSearchFallsBackWhenMeilisearchErrors(t *testing.T) {
	primary := &fakePrimary{
		healthy: true,
		searchFn: func(Query) ([]Result, int, error) {
			return nil, 0, errors.New("connection reset")
		},
	}
	fallbackHit := false
	fallback := &fakeFallback{
		searchFn: func(q Query) ([]Result, int, error) {
			fallbackHit = true
			return []Result{{Type: ResultItem, ID: "3"}}, 1, nil
		},
	}
	svc := &Service{meili: primary, pgfts: fallback}

	resp := svc.Search(Query{Text: "deploy"})
	if !fallbackHit {
		t.Fatal("a Meilisearch error should fall through to Postgres")
	}
	if resp.Total != 1 || resp.Results[0].ID != "3" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSearchFallsBackWhenMeilisearchAbsent(t *testing.T) {
	fallback := &fakeFallback{
		searchFn: func(q Query) ([]Result, int, error) {
			return []Result{{Type: ResultItem, ID: "7", Snippet: "Deploy pipeline was flaky"}}, 1, nil
		},
	}
	svc := &Service{pgfts: fallback}

	resp := svc.Search(Query{Text: "pipeline"})
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "7" {
		t.Fatalf("expected Postgres to serve the search, got %+v", resp)
	}
}

func TestSearchReturnsEmptyWhenBothUnavailable(t *testing.T) {
	primary := &fakePrimary{healthy: false}
	fallback := &fakeFallback{
		searchFn: func(Query) ([]Result, int, error) {
			return nil, 0, errors.New("relation does not exist")
		},
	}
	svc := &Service{meili: primary, pgfts: fallback}

	resp := svc.Search(Query{Text: "anything"})
	if resp.Results == nil || len(resp.Results) != 0 || resp.Total != 0 {
		t.Fatalf("expected an empty response, got %+v", resp)
	}
	if resp.Query != "anything" {
		t.Fatalf("expected query echoed back, got %q", resp.Query)
	}
}

func TestReindexSkipsWhenMeilisearchUnhealthy(t *testing.T) {
	primary := &fakePrimary{healthy: false}
	fallback := &fakeFallback{
		loadFn: func(context.Context) ([]ItemRecord, []ActionRecord, error) {
			t.Fatal("reindex should not load records while Meilisearch is down")
			return nil, nil, nil
		},
	}
	svc := &Service{meili: primary, pgfts: fallback}

	svc.ReindexAllFromPG(context.Background())
}

func TestReindexPushesAllRecords(t *testing.T) {
	var gotItems []ItemRecord
	var gotActions []ActionRecord
	primary := &fakePrimary{
		healthy: true,
		indexItemsFn: func(items []ItemRecord) error {
			gotItems = items
			return nil
		},
		indexActionsFn: func(actions []ActionRecord) error {
			gotActions = actions
			return nil
		},
	}
	fallback := &fakeFallback{
		loadFn: func(context.Context) ([]ItemRecord, []ActionRecord, error) {
			return []ItemRecord{{ID: "1", Content: "Release went smoothly"}},
				[]ActionRecord{{ID: "2", Description: "Fix CI flake"}}, nil
		},
	}
	svc := &Service{meili: primary, pgfts: fallback}

	svc.ReindexAllFromPG(context.Background())

	if len(gotItems) != 1 || gotItems[0].ID != "1" {
		t.Fatalf("unexpected items pushed: %+v", gotItems)
	}
	if len(gotActions) != 1 || gotActions[0].ID != "2" {
		t.Fatalf("unexpected actions pushed: %+v", gotActions)
	}
}
