package store

import (
	"context"
	"encoding/json"

	"sanjeevika-api/internal/model"
)

func (s *Store) CreatePatient(ctx context.Context, p *model.Patient) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO patients (user_id, name, email) VALUES ($1,$2,$3)`,
		p.UserID, p.Name, p.Email,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) HealthRecords(ctx context.Context, userID string) ([]map[string]any, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT health_records FROM patients WHERE user_id = $1`, userID,
	).Scan(&raw)
	if err != nil {
		return nil, notFound(err)
	}
	var recs []map[string]any
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// PushHealthRecord appends rec to the patient's record list.
func (s *Store) PushHealthRecord(ctx context.Context, userID string, rec map[string]any) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients SET health_records = health_records || jsonb_build_array($2::jsonb)
		 WHERE user_id = $1`, userID, rec)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceHealthRecord swaps the element whose id is recordID for rec, keeping
// its position in the list.
func (s *Store) ReplaceHealthRecord(ctx context.Context, userID, recordID string, rec map[string]any) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients SET health_records = (
			SELECT jsonb_agg(CASE WHEN e ->> 'id' = $2 THEN $3::jsonb ELSE e END ORDER BY ord)
			FROM jsonb_array_elements(health_records) WITH ORDINALITY AS t(e, ord)
		 )
		 WHERE user_id = $1
		   AND health_records @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		userID, recordID, rec)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PullHealthRecord removes the element whose id is recordID.
func (s *Store) PullHealthRecord(ctx context.Context, userID, recordID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients SET health_records = COALESCE((
			SELECT jsonb_agg(e ORDER BY ord)
			FROM jsonb_array_elements(health_records) WITH ORDINALITY AS t(e, ord)
			WHERE e ->> 'id' IS DISTINCT FROM $2
		 ), '[]'::jsonb)
		 WHERE user_id = $1
		   AND health_records @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		userID, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
