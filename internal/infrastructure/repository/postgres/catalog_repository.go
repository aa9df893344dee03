package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
)

// CatalogRepository reads the category tree and document records managed by
// the external admin panel, and appends committed documents. Connectivity
// problems are wrapped as domain.ErrTemporary so the transport layer can
// redeliver the triggering event.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across bot and admin-panel startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS categories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	parent_id BIGINT REFERENCES categories(id) ON DELETE SET NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_parent_name
	ON categories (COALESCE(parent_id, 0), name);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	file_id TEXT NOT NULL,
	caption TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_category_created
	ON documents (category_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ChildrenOf(ctx context.Context, parentID *int64) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, parent_id
FROM categories
WHERE parent_id IS NOT DISTINCT FROM $1
ORDER BY name
`, parentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "query children", err)
	}
	defer rows.Close()

	var children []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "iterate children", err)
	}
	return children, nil
}

func (r *CatalogRepository) FindByNameAndParent(ctx context.Context, name string, parentID *int64) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, parent_id
FROM categories
WHERE name = $1 AND parent_id IS NOT DISTINCT FROM $2
`, name, parentID)

	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCategoryNotFound, "find category", err)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "find category", err)
	}
	return &c, nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, parent_id
FROM categories
WHERE id = $1
`, id)

	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCategoryNotFound, "get category", err)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "get category", err)
	}
	return &c, nil
}

func (r *CatalogRepository) DocumentsOf(ctx context.Context, categoryID int64) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, category_id, file_id, caption, created_at
FROM documents
WHERE category_id = $1
ORDER BY created_at DESC, id DESC
`, categoryID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "query documents", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.CategoryID, &d.FileID, &d.Caption, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "iterate documents", err)
	}
	return docs, nil
}

func (r *CatalogRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, category_id, file_id, caption, created_at)
VALUES ($1, $2, $3, $4, $5)
`, doc.ID, doc.CategoryID, doc.FileID, doc.Caption, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}
