package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"sanjeevika-api/internal/fhir"
	"sanjeevika-api/internal/model"
)

func (s *Store) InsertResource(ctx context.Context, r *model.Resource) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resources (collection, id, body) VALUES ($1,$2,$3)`,
		r.Collection, r.ID, r.Body,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) GetResource(ctx context.Context, collection, id string) (*model.Resource, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM resources WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&raw)
	if err != nil {
		return nil, notFound(err)
	}
	r := &model.Resource{Collection: collection, ID: id}
	if err := json.Unmarshal(raw, &r.Body); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListResources(ctx context.Context, collection string) ([]model.Resource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body FROM resources WHERE collection = $1 ORDER BY created_at, id`, collection)
	if err != nil {
		return nil, err
	}
	return collectResources(collection, rows)
}

// FilterResources matches a top-level field of the document by its text value.
func (s *Store) FilterResources(ctx context.Context, collection, field, value string) ([]model.Resource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body FROM resources
		 WHERE collection = $1 AND body ->> $2 = $3
		 ORDER BY created_at, id`, collection, field, value)
	if err != nil {
		return nil, err
	}
	return collectResources(collection, rows)
}

func collectResources(collection string, rows pgx.Rows) ([]model.Resource, error) {
	defer rows.Close()
	var out []model.Resource
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		r := model.Resource{Collection: collection, ID: id}
		if err := json.Unmarshal(raw, &r.Body); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Practitioner resolves a provider id against stored Practitioner resources.
func (s *Store) Practitioner(ctx context.Context, id string) (*model.Practitioner, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM resources WHERE collection = $1 AND id = $2`, fhir.Collection(fhir.Practitioner), id,
	).Scan(&raw)
	if err != nil {
		return nil, notFound(err)
	}
	p, err := model.PractitionerFromDocument(raw)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return p, nil
}
