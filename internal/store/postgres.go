package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ListRetros(ctx context.Context) ([]Retro, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM retro
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list retros: %w", err)
	}
	defer rows.Close()

	items := make([]Retro, 0)
	for rows.Next() {
		var item Retro
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan retro: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retros: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateRetro(ctx context.Context, name string) (Retro, error) {
	var item Retro
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO retro (name)
		VALUES ($1)
		RETURNING id, name, created_at
	`, name).Scan(&item.ID, &item.Name, &item.CreatedAt)
	if err != nil {
		return Retro{}, fmt.Errorf("create retro: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetRetro(ctx context.Context, retroID int64) (Retro, error) {
	var item Retro
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM retro
		WHERE id=$1
	`, retroID).Scan(&item.ID, &item.Name, &item.CreatedAt)
	if err != nil {
		return Retro{}, err
	}
	return item, nil
}

// EnsureSection resolves (retro_id, name) to exactly one section row. The
// ON CONFLICT clause makes concurrent first loads converge on the same row
// instead of racing a lookup against an insert.
func (s *PostgresStore) EnsureSection(ctx context.Context, retroID int64, name string) (Section, error) {
	var item Section
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sections (retro_id, name)
		VALUES ($1, $2)
		ON CONFLICT (retro_id, name) DO UPDATE SET name=EXCLUDED.name
		RETURNING id, retro_id, name
	`, retroID, name).Scan(&item.ID, &item.RetroID, &item.Name)
	if err != nil {
		return Section{}, fmt.Errorf("ensure section: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetSection(ctx context.Context, sectionID int64) (Section, error) {
	var item Section
	err := s.db.QueryRowContext(ctx, `
		SELECT id, retro_id, name
		FROM sections
		WHERE id=$1
	`, sectionID).Scan(&item.ID, &item.RetroID, &item.Name)
	if err != nil {
		return Section{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListSections(ctx context.Context, retroID int64) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, retro_id, name
		FROM sections
		WHERE retro_id=$1
		ORDER BY id ASC
	`, retroID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	items := make([]Section, 0)
	for rows.Next() {
		var item Section
		if err := rows.Scan(&item.ID, &item.RetroID, &item.Name); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertItem(ctx context.Context, sectionID int64, content string) (Item, error) {
	var item Item
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO items (section_id, content)
		VALUES ($1, $2)
		RETURNING id, section_id, content, created_at
	`, sectionID, content).Scan(&item.ID, &item.SectionID, &item.Content, &item.CreatedAt)
	if err != nil {
		return Item{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

// ListItems returns a section's items in creation order with their upvote
// totals and whether viewerName has voted on each.
func (s *PostgresStore) ListItems(ctx context.Context, sectionID int64, viewerName string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.section_id, i.content, i.created_at,
			(SELECT COUNT(*) FROM upvotes u WHERE u.item_id=i.id) AS upvotes,
			EXISTS(SELECT 1 FROM upvotes u WHERE u.item_id=i.id AND u.voter_name=$2) AS viewer_voted
		FROM items i
		WHERE i.section_id=$1
		ORDER BY i.created_at ASC, i.id ASC
	`, sectionID, viewerName)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.SectionID, &item.Content, &item.CreatedAt, &item.Upvotes, &item.ViewerVoted); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, itemID int64) (Item, error) {
	var item Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, section_id, content, created_at
		FROM items
		WHERE id=$1
	`, itemID).Scan(&item.ID, &item.SectionID, &item.Content, &item.CreatedAt)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeleteItem removes an item; its upvotes go with it via the FK cascade.
func (s *PostgresStore) DeleteItem(ctx context.Context, itemID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id=$1`, itemID)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete item rows: %w", err)
	}
	return affected > 0, nil
}

// ToggleUpvote removes the voter's upvote if present, otherwise records one,
// and returns the resulting total plus the voter's new state.
func (s *PostgresStore) ToggleUpvote(ctx context.Context, itemID int64, voterName string) (int, bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM upvotes
		WHERE item_id=$1 AND voter_name=$2
	`, itemID, voterName)
	if err != nil {
		return 0, false, fmt.Errorf("delete upvote: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("delete upvote rows: %w", err)
	}

	voted := false
	if affected == 0 {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO upvotes (item_id, voter_name)
			VALUES ($1, $2)
			ON CONFLICT (item_id, voter_name) DO NOTHING
		`, itemID, voterName); err != nil {
			return 0, false, fmt.Errorf("insert upvote: %w", err)
		}
		voted = true
	}

	count, err := s.UpvoteCount(ctx, itemID)
	if err != nil {
		return 0, false, err
	}
	return count, voted, nil
}

func (s *PostgresStore) UpvoteCount(ctx context.Context, itemID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM upvotes WHERE item_id=$1
	`, itemID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count upvotes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) InsertActionItem(ctx context.Context, sectionID int64, description, owner, priority string) (ActionItem, error) {
	var item ActionItem
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO action_items (section_id, description, assigned_owner, priority)
		VALUES ($1, $2, $3, $4)
		RETURNING id, section_id, description, assigned_owner, priority, created_at
	`, sectionID, description, owner, priority).Scan(
		&item.ID,
		&item.SectionID,
		&item.Description,
		&item.AssignedOwner,
		&item.Priority,
		&item.CreatedAt,
	)
	if err != nil {
		return ActionItem{}, fmt.Errorf("insert action item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListActionItems(ctx context.Context, sectionID int64) ([]ActionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section_id, description, assigned_owner, priority, created_at
		FROM action_items
		WHERE section_id=$1
		ORDER BY created_at ASC, id ASC
	`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list action items: %w", err)
	}
	defer rows.Close()

	items := make([]ActionItem, 0)
	for rows.Next() {
		var item ActionItem
		if err := rows.Scan(&item.ID, &item.SectionID, &item.Description, &item.AssignedOwner, &item.Priority, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteActionItem(ctx context.Context, actionItemID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM action_items WHERE id=$1`, actionItemID)
	if err != nil {
		return false, fmt.Errorf("delete action item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete action item rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userName string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_name, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_name=EXCLUDED.user_name, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userName, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userName string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_name
		FROM refresh_sessions
		WHERE token_hash=$1
			AND revoked_at IS NULL
			AND expires_at > NOW()
	`, tokenHash).Scan(&userName)
	if err != nil {
		return "", err
	}
	return userName, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
