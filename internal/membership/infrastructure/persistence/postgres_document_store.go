package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/internal/shared/infrastructure/database"
)

// PostgresDocumentStore implements domain.DocumentStore on a JSONB documents table.
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentStore creates a new document store.
func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

// ReadDocument loads a single document.
func (s *PostgresDocumentStore) ReadDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&body)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// WriteDocument merges the top-level fields of patch into the stored document.
func (s *PostgresDocumentStore) WriteDocument(ctx context.Context, collection, id string, patch domain.Document) error {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW(), NOW())
		ON CONFLICT (collection, id) DO UPDATE SET
			body = documents.body || EXCLUDED.body,
			updated_at = NOW()
	`, collection, id, string(body))
	return err
}

// CountWhere counts documents matching filter.
func (s *PostgresDocumentStore) CountWhere(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	where, args, err := postgresWhere(collection, filter)
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&count)
	return count, err
}

// SumWhere sums a numeric field over documents matching filter.
func (s *PostgresDocumentStore) SumWhere(ctx context.Context, collection string, filter domain.Filter, field string) (float64, error) {
	if err := validateField(field); err != nil {
		return 0, err
	}
	where, args, err := postgresWhere(collection, filter)
	if err != nil {
		return 0, err
	}

	args = append(args, strings.Split(field, "."))
	query := fmt.Sprintf(
		`SELECT COALESCE(SUM((body #>> $%d)::numeric), 0)::float8 FROM documents WHERE %s`,
		len(args), where,
	)

	var total float64
	err = s.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

// ListIDs returns every document id in a collection.
func (s *PostgresDocumentStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM documents WHERE collection = $1 ORDER BY id`, collection)
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

func postgresWhere(collection string, filter domain.Filter) (string, []any, error) {
	if err := validateCollection(collection); err != nil {
		return "", nil, err
	}

	clauses := []string{"collection = $1"}
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
			contains, err := json.Marshal(nestField(cond.Field, value))
			if err != nil {
				return "", nil, err
			}
			args = append(args, string(contains))
			clauses = append(clauses, fmt.Sprintf("body @> $%d::jsonb", len(args)))
		case domain.OpGte:
			if !isNumeric(value) {
				return "", nil, fmt.Errorf("%w: gte requires a numeric value", domain.ErrInvalidArgument)
			}
			args = append(args, strings.Split(cond.Field, "."), value)
			clauses = append(clauses, fmt.Sprintf("(body #>> $%d)::numeric >= $%d", len(args)-1, len(args)))
		default:
			return "", nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidArgument, cond.Op)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

// nestField turns "a.b" and v into {"a": {"b": v}} for JSONB containment.
func nestField(field string, value any) map[string]any {
	parts := strings.Split(field, ".")
	out := map[string]any{parts[len(parts)-1]: value}
	for i := len(parts) - 2; i >= 0; i-- {
		out = map[string]any{parts[i]: out}
	}
	return out
}
