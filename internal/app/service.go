package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"retroboard/api/internal/auth"
	"retroboard/api/internal/config"
	"retroboard/api/internal/export"
	"retroboard/api/internal/search"
	"retroboard/api/internal/store"
	"retroboard/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

var allowedPriorities = map[string]struct{}{
	"High":   {},
	"Medium": {},
	"Low":    {},
}

type dataStore interface {
	ListRetros(context.Context) ([]store.Retro, error)
	CreateRetro(context.Context, string) (store.Retro, error)
	GetRetro(context.Context, int64) (store.Retro, error)
	EnsureSection(context.Context, int64, string) (store.Section, error)
	GetSection(context.Context, int64) (store.Section, error)
	ListSections(context.Context, int64) ([]store.Section, error)
	InsertItem(context.Context, int64, string) (store.Item, error)
	ListItems(context.Context, int64, string) ([]store.Item, error)
	GetItem(context.Context, int64) (store.Item, error)
	DeleteItem(context.Context, int64) (bool, error)
	ToggleUpvote(context.Context, int64, string) (int, bool, error)
	UpvoteCount(context.Context, int64) (int, error)
	InsertActionItem(context.Context, int64, string, string, string) (store.ActionItem, error)
	ListActionItems(context.Context, int64) ([]store.ActionItem, error)
	DeleteActionItem(context.Context, int64) (bool, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens. Redis when configured, the
// Postgres store otherwise.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userName string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type archiveStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   *search.Service
	export   *export.Service
	archive  archiveStore
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service, exportService *export.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		search:   searchService,
		export:   exportService,
	}
}

// NewWithSessionStore uses a dedicated refresh-token store (Redis)
// instead of the Postgres fallback.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchService *search.Service, exportService *export.Service) *Service {
	svc := New(cfg, dataStore, searchService, exportService)
	svc.sessions = sessions
	return svc
}

// SetArchive wires object storage for the archive endpoint.
func (s *Service) SetArchive(a archiveStore) {
	s.archive = a
}

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}
	return s.issueSession(ctx, userName)
}

// Refresh rotates a refresh token: the old token is revoked and a new
// session is issued. An unknown or expired token is an authorization
// failure; store errors past the lookup surface as server errors.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userName, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, userName)
}

func (s *Service) issueSession(ctx context.Context, userName string) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Name: userName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), userName, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserName:     userName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserName:  claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) ListRetros(ctx context.Context) ([]map[string]any, error) {
	retros, err := s.store.ListRetros(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(retros))
	for _, retro := range retros {
		items = append(items, retroPayload(retro))
	}
	return items, nil
}

func (s *Service) CreateRetro(ctx context.Context, name string) (map[string]any, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	retro, err := s.store.CreateRetro(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	return retroPayload(retro), nil
}

// GetRetroDetail provisions the five canonical sections on first load
// and returns each with its contents. Provisioning is an idempotent
// upsert, so concurrent first loads resolve to the same section rows.
func (s *Service) GetRetroDetail(ctx context.Context, retroID int64, viewerName string) (map[string]any, error) {
	retro, err := s.store.GetRetro(ctx, retroID)
	if err != nil {
		return nil, err
	}

	sections := make([]map[string]any, 0, len(store.SectionCategories()))
	for _, category := range store.SectionCategories() {
		section, err := s.store.EnsureSection(ctx, retro.ID, category)
		if err != nil {
			return nil, err
		}

		payload := map[string]any{
			"id":    section.ID,
			"name":  section.Name,
			"title": store.SectionTitle(section.Name),
		}

		if category == store.SectionActionItems {
			actions, err := s.store.ListActionItems(ctx, section.ID)
			if err != nil {
				return nil, err
			}
			payload["actionItems"] = actionPayloads(actions)
		} else {
			items, err := s.store.ListItems(ctx, section.ID, viewerName)
			if err != nil {
				return nil, err
			}
			payload["items"] = itemPayloads(items)
		}

		sections = append(sections, payload)
	}

	result := retroPayload(retro)
	result["sections"] = sections
	return result, nil
}

func (s *Service) AddItem(ctx context.Context, sectionID int64, content, viewerName string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}

	section, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	item, err := s.store.InsertItem(ctx, section.ID, trimmed)
	if err != nil {
		return nil, err
	}

	s.indexItem(ctx, item, section)

	return itemPayload(item), nil
}

func (s *Service) RemoveItem(ctx context.Context, itemID int64) error {
	deleted, err := s.store.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !deleted {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
	}
	if s.search != nil {
		s.search.DeleteItem(strconv.FormatInt(itemID, 10))
	}
	return nil
}

// ToggleUpvote flips the viewer's vote on an item and returns the
// recomputed state from the store, never from caller-supplied counts.
func (s *Service) ToggleUpvote(ctx context.Context, itemID int64, voterName string) (map[string]any, error) {
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	count, voted, err := s.store.ToggleUpvote(ctx, itemID, voterName)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"upvotes":    count,
		"hasUpvoted": voted,
	}, nil
}

func (s *Service) AddActionItem(ctx context.Context, sectionID int64, description, owner, priority string) (map[string]any, error) {
	trimmedDescription := strings.TrimSpace(description)
	trimmedOwner := strings.TrimSpace(owner)
	if trimmedDescription == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "description is required", nil)
	}
	if trimmedOwner == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "owner is required", nil)
	}

	trimmedPriority := strings.TrimSpace(priority)
	if trimmedPriority == "" {
		trimmedPriority = "Medium"
	}
	if _, ok := allowedPriorities[trimmedPriority]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "priority must be High, Medium or Low", nil)
	}

	section, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	action, err := s.store.InsertActionItem(ctx, section.ID, trimmedDescription, trimmedOwner, trimmedPriority)
	if err != nil {
		return nil, err
	}

	s.indexAction(ctx, action, section)

	return actionPayload(action), nil
}

func (s *Service) RemoveActionItem(ctx context.Context, actionItemID int64) error {
	deleted, err := s.store.DeleteActionItem(ctx, actionItemID)
	if err != nil {
		return err
	}
	if !deleted {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Action item not found", nil)
	}
	if s.search != nil {
		s.search.DeleteAction(strconv.FormatInt(actionItemID, 10))
	}
	return nil
}

// Results assembles the aggregated summary for one retrospective:
// every section in canonical order, action items under their own
// heading, items with their upvote counts.
func (s *Service) Results(ctx context.Context, retroID int64, viewerName string) (map[string]any, error) {
	retro, err := s.store.GetRetro(ctx, retroID)
	if err != nil {
		return nil, err
	}

	sections, err := s.store.ListSections(ctx, retro.ID)
	if err != nil {
		return nil, err
	}

	bySection := make(map[string]store.Section, len(sections))
	for _, section := range sections {
		bySection[section.Name] = section
	}

	payloads := make([]map[string]any, 0, len(sections))
	for _, category := range store.SectionCategories() {
		section, ok := bySection[category]
		if !ok {
			continue
		}

		payload := map[string]any{
			"id":    section.ID,
			"name":  section.Name,
			"title": store.SectionTitle(section.Name),
		}

		if category == store.SectionActionItems {
			actions, err := s.store.ListActionItems(ctx, section.ID)
			if err != nil {
				return nil, err
			}
			payload["actionItems"] = actionPayloads(actions)
		} else {
			items, err := s.store.ListItems(ctx, section.ID, viewerName)
			if err != nil {
				return nil, err
			}
			payload["items"] = itemPayloads(items)
		}

		payloads = append(payloads, payload)
	}

	return map[string]any{
		"retro":    retroPayload(retro),
		"sections": payloads,
	}, nil
}

func (s *Service) Export(ctx context.Context, retroID int64, format export.Format) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	return s.export.Export(ctx, export.Request{RetroID: retroID, Format: format})
}

// Archive uploads the JSON export to object storage and returns the
// object key with a presigned download URL.
func (s *Service) Archive(ctx context.Context, retroID int64) (map[string]any, error) {
	if s.archive == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archive storage not configured", nil)
	}

	result, err := s.Export(ctx, retroID, export.FormatJSON)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d/%s-%s", retroID, time.Now().UTC().Format("20060102T150405Z"), result.Filename)
	url, err := s.archive.Put(ctx, key, result.Data, result.MimeType)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"key": key,
		"url": url,
	}, nil
}

func (s *Service) Search(ctx context.Context, q, filterType, retroID string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}, nil
	}
	return s.search.Search(search.Query{
		Text:          q,
		FilterType:    search.ResultType(filterType),
		FilterRetroID: retroID,
		Limit:         limit,
		Offset:        offset,
	}), nil
}

// ReindexSearch pushes all current rows into the search index.
func (s *Service) ReindexSearch(ctx context.Context) {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) indexItem(ctx context.Context, item store.Item, section store.Section) {
	if s.search == nil {
		return
	}
	retro, err := s.store.GetRetro(ctx, section.RetroID)
	if err != nil {
		return
	}
	s.search.IndexItem(search.ItemRecord{
		ID:        strconv.FormatInt(item.ID, 10),
		Content:   item.Content,
		Section:   section.Name,
		RetroID:   strconv.FormatInt(retro.ID, 10),
		RetroName: retro.Name,
	})
}

func (s *Service) indexAction(ctx context.Context, action store.ActionItem, section store.Section) {
	if s.search == nil {
		return
	}
	retro, err := s.store.GetRetro(ctx, section.RetroID)
	if err != nil {
		return
	}
	s.search.IndexAction(search.ActionRecord{
		ID:          strconv.FormatInt(action.ID, 10),
		Description: action.Description,
		Owner:       action.AssignedOwner,
		Priority:    action.Priority,
		RetroID:     strconv.FormatInt(retro.ID, 10),
		RetroName:   retro.Name,
	})
}

func retroPayload(retro store.Retro) map[string]any {
	return map[string]any{
		"id":        retro.ID,
		"name":      retro.Name,
		"createdAt": retro.CreatedAt,
	}
}

func itemPayload(item store.Item) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"sectionId":  item.SectionID,
		"content":    item.Content,
		"createdAt":  item.CreatedAt,
		"upvotes":    item.Upvotes,
		"hasUpvoted": item.ViewerVoted,
	}
}

func itemPayloads(items []store.Item) []map[string]any {
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, itemPayload(item))
	}
	return payloads
}

func actionPayload(action store.ActionItem) map[string]any {
	return map[string]any{
		"id":          action.ID,
		"sectionId":   action.SectionID,
		"description": action.Description,
		"owner":       action.AssignedOwner,
		"priority":    action.Priority,
		"createdAt":   action.CreatedAt,
	}
}

func actionPayloads(actions []store.ActionItem) []map[string]any {
	payloads := make([]map[string]any, 0, len(actions))
	for _, action := range actions {
		payloads = append(payloads, actionPayload(action))
	}
	return payloads
}
