package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/internal/shared/infrastructure/database"
)

// SQLiteDocumentStore implements domain.DocumentStore on the documents table
// using SQLite's JSON1 functions.
type SQLiteDocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDocumentStore creates a new document store.
func NewSQLiteDocumentStore(db *sql.DB) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: db, now: time.Now}
}

// ReadDocument loads a single document.
func (s *SQLiteDocumentStore) ReadDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&body)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// WriteDocument merges patch into the stored document using RFC 7396 merge
// semantics. Null values in patch remove the field.
func (s *SQLiteDocumentStore) WriteDocument(ctx context.Context, collection, id string, patch domain.Document) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidArgument)
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	now := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES (?, ?, json_patch('{}', ?), ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			body = json_patch(documents.body, excluded.body),
			updated_at = excluded.updated_at
	`, collection, id, string(body), now, now)
	return err
}

// CountWhere counts documents matching filter.
func (s *SQLiteDocumentStore) CountWhere(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	where, args, err := sqliteWhere(collection, filter)
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&count)
	return count, err
}

// SumWhere sums a numeric field over documents matching filter. Documents
// without the field contribute zero.
func (s *SQLiteDocumentStore) SumWhere(ctx context.Context, collection string, filter domain.Filter, field string) (float64, error) {
	if err := validateField(field); err != nil {
		return 0, err
	}
	where, args, err := sqliteWhere(collection, filter)
	if err != nil {
		return 0, err
	}

	query := `SELECT TOTAL(CAST(json_extract(body, ?) AS REAL)) FROM documents WHERE ` + where
	args = append([]any{"$." + field}, args...)

	var total float64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&total)
	return total, err
}

// ListIDs returns every document id in a collection.
func (s *SQLiteDocumentStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func sqliteWhere(collection string, filter domain.Filter) (string, []any, error) {
	if err := validateCollection(collection); err != nil {
		return "", nil, err
	}

	clauses := []string{"collection = ?"}
	args := []any{collection}

	for _, cond := range filter {
		if err := validateField(cond.Field); err != nil {
			return "", nil, err
		}
		value, err := normalizeValue(cond.Value)
		if err != nil {
			return "", nil, err
		}

		switch cond.Op {
		case domain.OpEq:
			// json_extract yields 1/0 for JSON booleans.
			if b, ok := value.(bool); ok {
				value = 0
				if b {
					value = 1
				}
			}
			clauses = append(clauses, "json_extract(body, ?) = ?")
		case domain.OpGte:
			if !isNumeric(value) {
				return "", nil, fmt.Errorf("%w: gte requires a numeric value", domain.ErrInvalidArgument)
			}
			clauses = append(clauses, "CAST(json_extract(body, ?) AS REAL) >= ?")
		default:
			return "", nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidArgument, cond.Op)
		}
		args = append(args, "$."+cond.Field, value)
	}

	return strings.Join(clauses, " AND "), args, nil
}
