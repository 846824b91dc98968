package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rankpilothq/rankpilot/autopilot/internal/scoring"
)

const articleColumns = `id, site_id, primary_keyword, title, slug, category,
	created_at, updated_at`

// InsertArticle records an article produced by the generation stage.
func (s *Store) InsertArticle(ctx context.Context, a *Article) error {
	now := time.Now().UnixMilli()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	if a.UpdatedAt == 0 {
		a.UpdatedAt = now
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO articles (id, site_id, primary_keyword, title, slug, category,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SiteID, a.PrimaryKeyword, a.Title, a.Slug, a.Category,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// GetArticle retrieves an article by ID, or nil.
func (s *Store) GetArticle(ctx context.Context, id string) (*Article, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	return scanArticle(row.Scan)
}

// ListArticles returns a site's articles, newest first.
func (s *Store) ListArticles(ctx context.Context, siteID string) ([]*Article, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE site_id = ?
		ORDER BY created_at DESC`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*Article
	for rows.Next() {
		a, err := scanArticle(rows.Scan)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// CoveredTerms returns the normalized primary keywords of a site's existing
// articles. The scoring engine consults this set to penalize content-gap
// candidates the site already wrote about.
func (s *Store) CoveredTerms(ctx context.Context, siteID string) (scoring.Covered, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT primary_keyword FROM articles WHERE site_id = ? AND primary_keyword != ''`,
		siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	covered := make(scoring.Covered)
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		covered[scoring.NormalizeTerm(term)] = true
	}
	return covered, rows.Err()
}

func scanArticle(scan func(dest ...any) error) (*Article, error) {
	var a Article
	err := scan(
		&a.ID, &a.SiteID, &a.PrimaryKeyword, &a.Title, &a.Slug, &a.Category,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return &a, nil
}
