package store

import (
	"context"

	"sanjeevika-api/internal/model"
)

func (s *Store) InsertHospital(ctx context.Context, h *model.Hospital) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hospitals (uuid, name, lat, long) VALUES ($1,$2,$3,$4)`,
		h.UUID, h.Name, h.Lat, h.Long,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) ListHospitals(ctx context.Context) ([]model.Hospital, error) {
	rows, err := s.pool.Query(ctx, `SELECT uuid, name, lat, long FROM hospitals ORDER BY name, uuid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Hospital
	for rows.Next() {
		var h model.Hospital
		if err := rows.Scan(&h.UUID, &h.Name, &h.Lat, &h.Long); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
