// Package booking is the appointment workflow over the slot ledger.
//
// An appointment moves booked -> rescheduled (any number of times) and from
// either of those to canceled, which is terminal. The ledger enforces that at
// most one non-canceled appointment occupies a (provider, date, time) slot;
// this package never checks occupancy with a separate read.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sanjeevika-api/internal/apperr"
	"sanjeevika-api/internal/events"
	"sanjeevika-api/internal/model"
	"sanjeevika-api/internal/store"
)

var (
	ErrUnknownProvider    = apperr.NotFound("UnknownProvider", "invalid provider_id")
	ErrUnknownAppointment = apperr.NotFound("UnknownAppointment", "invalid appointment_id")
	ErrSlotTaken          = apperr.Conflict("SlotTaken", "slot already booked")
	ErrCanceled           = apperr.Conflict("AppointmentCanceled", "appointment is canceled")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Ledger is the appointment collection. InsertAppointment and
// RescheduleAppointment must fail with store.ErrDuplicate when another active
// appointment holds the target slot, as a single atomic operation.
type Ledger interface {
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	ListAppointmentsByRequester(ctx context.Context, email string) ([]model.Appointment, error)
	RescheduleAppointment(ctx context.Context, id, date, tm string) (*model.Appointment, error)
	// CancelAppointment reports whether this call made the transition.
	CancelAppointment(ctx context.Context, id string) (*model.Appointment, bool, error)
}

type Providers interface {
	Practitioner(ctx context.Context, id string) (*model.Practitioner, error)
}

type Service struct {
	ledger    Ledger
	providers Providers
	events    events.Publisher
	log       zerolog.Logger
}

func New(ledger Ledger, providers Providers, pub events.Publisher, log zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Service{ledger: ledger, providers: providers, events: pub, log: log}
}

// NormalizeSlot validates a date and time and returns them in the canonical
// YYYY-MM-DD / HH:MM form used as the slot key.
func NormalizeSlot(date, tm string) (string, string, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", "", apperr.Validation("date must be YYYY-MM-DD")
	}
	t, err := time.Parse(timeLayout, strings.TrimSpace(tm))
	if err != nil {
		return "", "", apperr.Validation("time must be HH:MM")
	}
	return d.Format(dateLayout), t.Format(timeLayout), nil
}

func (s *Service) Book(ctx context.Context, providerID, date, tm string, who model.Requester) (*model.Appointment, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" || date == "" || tm == "" {
		return nil, apperr.Validation("missing provider_id, date, or time")
	}
	date, tm, err := NormalizeSlot(date, tm)
	if err != nil {
		return nil, err
	}

	if _, err := s.providers.Practitioner(ctx, providerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownProvider
		}
		return nil, apperr.Internal(err)
	}

	a := &model.Appointment{
		ID:         uuid.New().String(),
		ProviderID: providerID,
		Date:       date,
		Time:       tm,
		Requester:  who,
		Status:     model.StatusBooked,
	}
	if err := s.ledger.InsertAppointment(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSlotTaken
		}
		return nil, apperr.Internal(err)
	}

	s.publish(ctx, *a)
	return a, nil
}

// Reschedule moves an active appointment. Moving to the slot it already
// holds is accepted and still marks it rescheduled.
func (s *Service) Reschedule(ctx context.Context, id, date, tm string) (*model.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" || date == "" || tm == "" {
		return nil, apperr.Validation("missing appointment_id, new_date, or new_time")
	}
	date, tm, err := NormalizeSlot(date, tm)
	if err != nil {
		return nil, err
	}

	a, err := s.ledger.RescheduleAppointment(ctx, id, date, tm)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUnknownAppointment
	case errors.Is(err, store.ErrDuplicate):
		return nil, ErrSlotTaken
	case errors.Is(err, store.ErrCanceled):
		return nil, ErrCanceled
	default:
		return nil, apperr.Internal(err)
	}

	s.publish(ctx, *a)
	return a, nil
}

// Cancel is idempotent: canceling a canceled appointment succeeds without
// another state change or event.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("missing appointment_id")
	}

	a, changed, err := s.ledger.CancelAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownAppointment
		}
		return nil, apperr.Internal(err)
	}

	if changed {
		s.publish(ctx, *a)
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := s.ledger.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownAppointment
		}
		return nil, apperr.Internal(err)
	}
	return a, nil
}

func (s *Service) ListMine(ctx context.Context, email string) ([]model.Appointment, error) {
	out, err := s.ledger.ListAppointmentsByRequester(ctx, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []model.Appointment{}
	}
	return out, nil
}

// ListAvailable returns the slots the provider record marks available. An
// empty result is not an error.
func (s *Service) ListAvailable(ctx context.Context, providerID string) ([]model.Slot, error) {
	p, err := s.providers.Practitioner(ctx, providerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownProvider
		}
		return nil, apperr.Internal(err)
	}

	out := make([]model.Slot, 0, len(p.Slots))
	for _, sl := range p.Slots {
		if sl.IsAvailable {
			out = append(out, model.Slot{ID: sl.ID, Date: sl.Date, Time: sl.Time})
		}
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, a model.Appointment) {
	e := events.ForAppointment(a)
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", a.ID).Str("event_type", e.Type).Msg("publish appointment event")
	}
}
