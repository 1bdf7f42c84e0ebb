package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

// DocumentRepository serves document metadata, the title-lookup cascade and
// pgvector nearest-neighbor search. All stored vectors share one declared
// dimension; callers reconcile query vectors before SearchNearest.
type DocumentRepository struct {
	db        *sql.DB
	dimension int
}

func NewDocumentRepository(db *sql.DB, dimension int) *DocumentRepository {
	return &DocumentRepository{db: db, dimension: dimension}
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

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS legal_documents (
	uuid TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	title TEXT,
	short_title TEXT,
	doc_date DATE,
	category TEXT
);

CREATE TABLE IF NOT EXISTS legal_embeddings (
	document_uuid TEXT PRIMARY KEY REFERENCES legal_documents(uuid),
	embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_legal_documents_title ON legal_documents(title);
CREATE INDEX IF NOT EXISTS idx_legal_documents_category ON legal_documents(category);
`, r.dimension)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `uuid, filename, relative_path, title, short_title, doc_date, category`

func (r *DocumentRepository) GetByUUID(ctx context.Context, uuid string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM legal_documents
WHERE uuid = $1
`, uuid)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("uuid %s", uuid))
		}
		return nil, domain.WrapError(domain.ErrStoreQuery, "get document", err)
	}
	return doc, nil
}

// FindByExactTitle matches variants verbatim against title and short title.
// Variants are tried independently; rows are aggregated and deduplicated.
func (r *DocumentRepository) FindByExactTitle(ctx context.Context, variants []string) ([]domain.Document, error) {
	return r.collectByVariants(ctx, "exact title lookup", variants, `
SELECT `+documentColumns+`
FROM legal_documents
WHERE title = $1 OR short_title = $1
`)
}

// FindByNormalizedIdentifier compares after stripping dots and whitespace from
// the stored side; callers pass variants already normalized the same way.
func (r *DocumentRepository) FindByNormalizedIdentifier(ctx context.Context, variants []string) ([]domain.Document, error) {
	return r.collectByVariants(ctx, "normalized identifier lookup", variants, `
SELECT `+documentColumns+`
FROM legal_documents
WHERE lower(replace(replace(title, '.', ''), ' ', '')) = $1
   OR lower(replace(replace(short_title, '.', ''), ' ', '')) = $1
`)
}

// FindByTypeEvidence matches the instrument type loosely against category or
// title prefix, and the trailing identifier against filename or title.
func (r *DocumentRepository) FindByTypeEvidence(ctx context.Context, instrumentType, evidence string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM legal_documents
WHERE (category ILIKE $1 OR title ILIKE $1 || '%')
  AND (filename ILIKE '%' || $2 || '%' OR title ILIKE '%' || $2 || '%')
`, instrumentType, evidence)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreQuery, "type evidence lookup", err)
	}
	defer rows.Close()
	return collectDocuments(rows, "type evidence lookup")
}

func (r *DocumentRepository) collectByVariants(ctx context.Context, operation string, variants []string, query string) ([]domain.Document, error) {
	out := []domain.Document{}
	seen := map[string]struct{}{}
	for _, variant := range variants {
		if variant == "" {
			continue
		}
		rows, err := r.db.QueryContext(ctx, query, variant)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStoreQuery, operation, err)
		}
		docs, err := collectDocuments(rows, operation)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, dup := seen[doc.UUID]; dup {
				continue
			}
			seen[doc.UUID] = struct{}{}
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *DocumentRepository) DeclaredDimension() int {
	return r.dimension
}

// SearchNearest orders by ascending cosine distance, optionally constrained by
// a case-insensitive title substring, limited to k rows.
func (r *DocumentRepository) SearchNearest(ctx context.Context, queryVector []float32, k int, titleFilter string) ([]domain.Candidate, error) {
	query := `
SELECT d.uuid, d.filename, d.relative_path, d.title, d.doc_date, e.embedding <=> $1 AS distance
FROM legal_embeddings e
JOIN legal_documents d ON d.uuid = e.document_uuid
`
	args := []any{pgvector.NewVector(queryVector)}
	if titleFilter != "" {
		query += `WHERE d.title ILIKE '%' || $2 || '%'
ORDER BY e.embedding <=> $1
LIMIT $3`
		args = append(args, titleFilter, k)
	} else {
		query += `ORDER BY e.embedding <=> $1
LIMIT $2`
		args = append(args, k)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreQuery, "vector search", err)
	}
	defer rows.Close()

	out := []domain.Candidate{}
	for rows.Next() {
		var c domain.Candidate
		var title sql.NullString
		var docDate sql.NullTime
		var distance float64
		if err := rows.Scan(&c.UUID, &c.Filename, &c.RelativePath, &title, &docDate, &distance); err != nil {
			return nil, domain.WrapError(domain.ErrStoreQuery, "vector search scan", err)
		}
		c.Title = title.String
		if docDate.Valid {
			d := docDate.Time
			c.Date = &d
		}
		c.Distance = &distance
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStoreQuery, "vector search rows", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var title, shortTitle, category sql.NullString
	var docDate sql.NullTime

	err := row.Scan(&doc.UUID, &doc.Filename, &doc.RelativePath, &title, &shortTitle, &docDate, &category)
	if err != nil {
		return nil, err
	}
	doc.Title = title.String
	doc.ShortTitle = shortTitle.String
	doc.Category = category.String
	if docDate.Valid {
		d := docDate.Time
		doc.Date = &d
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows, operation string) ([]domain.Document, error) {
	out := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStoreQuery, operation+" scan", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStoreQuery, operation+" rows", err)
	}
	return out, nil
}
