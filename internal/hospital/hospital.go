// Package hospital is the hospital directory and its proximity search.
package hospital

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sanjeevika-api/internal/apperr"
	"sanjeevika-api/internal/geo"
	"sanjeevika-api/internal/model"
)

// NearbyLimit is how many hospitals Nearby returns.
const NearbyLimit = 3

var ErrLocationUnavailable = apperr.New(apperr.KindValidation, "LocationUnavailable", "unable to determine current location")

type Directory interface {
	InsertHospital(ctx context.Context, h *model.Hospital) error
	ListHospitals(ctx context.Context) ([]model.Hospital, error)
}

type Service struct {
	dir     Directory
	locator geo.Locator
	log     zerolog.Logger
}

func New(dir Directory, locator geo.Locator, log zerolog.Logger) *Service {
	return &Service{dir: dir, locator: locator, log: log}
}

// Register adds a hospital. Coordinates that are not supplied are taken from
// the current location.
func (s *Service) Register(ctx context.Context, name string, lat, long *float64) (*model.Hospital, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is missing")
	}

	if lat == nil || long == nil {
		p, err := s.locate(ctx)
		if err != nil {
			return nil, err
		}
		if lat == nil {
			lat = &p.Lat
		}
		if long == nil {
			long = &p.Long
		}
	}

	h := &model.Hospital{UUID: uuid.New().String(), Name: name, Lat: *lat, Long: *long}
	if err := s.dir.InsertHospital(ctx, h); err != nil {
		return nil, apperr.Internal(err)
	}
	return h, nil
}

func (s *Service) List(ctx context.Context) ([]model.Hospital, error) {
	out, err := s.dir.ListHospitals(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []model.Hospital{}
	}
	return out, nil
}

// Nearby returns up to NearbyLimit hospitals closest to the current location.
// Ties keep directory order.
func (s *Service) Nearby(ctx context.Context) ([]model.Hospital, error) {
	here, err := s.locate(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.dir.ListHospitals(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return geo.Distance(here, point(all[i])) < geo.Distance(here, point(all[j]))
	})
	if len(all) > NearbyLimit {
		all = all[:NearbyLimit]
	}
	if all == nil {
		all = []model.Hospital{}
	}
	return all, nil
}

func (s *Service) locate(ctx context.Context) (geo.Point, error) {
	p, err := s.locator.Locate(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("location lookup failed")
		return geo.Point{}, ErrLocationUnavailable.Wrap(err)
	}
	return p, nil
}

func point(h model.Hospital) geo.Point {
	return geo.Point{Lat: h.Lat, Long: h.Long}
}
