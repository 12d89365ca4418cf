// Package pg stores documents in a single Postgres table with a jsonb body.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"centavo.app/internal/docstore"
	"centavo.app/internal/ids"
)

type Store struct {
	db *sql.DB
}

var _ docstore.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Put(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	if doc.ID == "" {
		doc.ID = ids.New()
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encode fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into documents(collection, id, owner_id, body, created_at)
		values ($1,$2,$3,$4,$5)
	`, doc.Collection, doc.ID, doc.Owner, body, doc.CreatedAt)
	if err != nil {
		return docstore.Document{}, err
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		select owner_id, body, created_at, updated_at
		from documents where collection=$1 and id=$2
	`, collection, id)
	return scanDocument(row, collection, id)
}

func (s *Store) Query(ctx context.Context, collection, owner string, filters []docstore.Filter, order *docstore.Order) ([]docstore.Document, error) {
	query := `select id, owner_id, body, created_at, updated_at from documents where collection=$1`
	args := []any{collection}
	if owner != "" {
		query += ` and owner_id=$2`
		args = append(args, owner)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []docstore.Document
	for rows.Next() {
		var (
			doc     docstore.Document
			body    []byte
			updated sql.NullTime
		)
		doc.Collection = collection
		if err := rows.Scan(&doc.ID, &doc.Owner, &body, &doc.CreatedAt, &updated); err != nil {
			return nil, err
		}
		if updated.Valid {
			doc.UpdatedAt = updated.Time
		}
		if err := json.Unmarshal(body, &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, doc.ID, err)
		}
		// Field filters are equality-only, so applying them here rather than
		// in SQL keeps the two backends behaviorally identical.
		ok, err := docstore.MatchesFilters(doc, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	docstore.SortDocuments(res, order)
	return res, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any, updatedAt time.Time) (docstore.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return docstore.Document{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		select owner_id, body, created_at, updated_at
		from documents where collection=$1 and id=$2 for update
	`, collection, id)
	doc, err := scanDocument(row, collection, id)
	if err != nil {
		return docstore.Document{}, err
	}

	if doc.Fields == nil {
		doc.Fields = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		doc.Fields[k] = v
	}
	doc.UpdatedAt = updatedAt

	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encode fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		update documents set body=$3, updated_at=$4
		where collection=$1 and id=$2
	`, collection, id, body, updatedAt); err != nil {
		return docstore.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return docstore.Document{}, err
	}
	return doc, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from documents where collection=$1 and id=$2
	`, collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func scanDocument(row *sql.Row, collection, id string) (docstore.Document, error) {
	var (
		doc     docstore.Document
		body    []byte
		updated sql.NullTime
	)
	doc.Collection = collection
	doc.ID = id
	err := row.Scan(&doc.Owner, &body, &doc.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, err
	}
	if updated.Valid {
		doc.UpdatedAt = updated.Time
	}
	if err := json.Unmarshal(body, &doc.Fields); err != nil {
		return docstore.Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}
