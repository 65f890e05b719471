package search

import (
	"context"
	"log"
)

// primaryIndex is the surface the Meilisearch client provides.
type primaryIndex interface {
	Searcher
	Indexer
	IndexItems(items []ItemRecord) error
	IndexActions(actions []ActionRecord) error
}

// fallbackIndex is the surface the Postgres FTS layer provides.
type fallbackIndex interface {
	Searcher
	LoadAllRecords(ctx context.Context) ([]ItemRecord, []ActionRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili primaryIndex
	pgfts fallbackIndex
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{}
	if meili != nil {
		s.meili = meili
	}
	if pgfts != nil {
		s.pgfts = pgfts
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexItem indexes a retro item (fire-and-forget to Meilisearch).
func (s *Service) IndexItem(rec ItemRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexItem(rec); err != nil {
			log.Printf("search: index item %s: %v", rec.ID, err)
		}
	}()
}

// IndexAction indexes an action item (fire-and-forget to Meilisearch).
func (s *Service) IndexAction(rec ActionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexAction(rec); err != nil {
			log.Printf("search: index action %s: %v", rec.ID, err)
		}
	}()
}

// DeleteItem removes a retro item from the search index (fire-and-forget).
func (s *Service) DeleteItem(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteItem(id); err != nil {
			log.Printf("search: delete item %s: %v", id, err)
		}
	}()
}

// DeleteAction removes an action item from the search index (fire-and-forget).
func (s *Service) DeleteAction(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteAction(id); err != nil {
			log.Printf("search: delete action %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	items, actions, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexItems(items); err != nil {
		log.Printf("search: reindex items: %v", err)
	}
	if err := s.meili.IndexActions(actions); err != nil {
		log.Printf("search: reindex actions: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
