package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"sanjeevika-api/internal/booking"
	"sanjeevika-api/internal/events"
	"sanjeevika-api/internal/fhir"
	"sanjeevika-api/internal/model"
	"sanjeevika-api/internal/store/memory"
)

type recorder struct {
	mu    sync.Mutex
	types []string
	fail  bool
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	if r.fail {
		return errors.New("broker down")
	}
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func setup(t *testing.T) (*booking.Service, *recorder) {
	t.Helper()
	st := memory.New()
	err := st.InsertResource(context.Background(), &model.Resource{
		Collection: fhir.Collection(fhir.Practitioner),
		ID:         "p1",
		Body: map[string]any{
			"resourceType": "Practitioner",
			"id":           "p1",
			"slots": []any{
				map[string]any{"id": "s1", "date": "2025-06-01", "time": "09:00", "is_available": true},
				map[string]any{"id": "s2", "date": "2025-06-01", "time": "10:00", "is_available": false},
				map[string]any{"id": "s3", "date": "2025-06-02", "time": "11:30", "is_available": true},
			},
		},
	})
	if err != nil {
		t.Fatalf("seed practitioner: %v", err)
	}
	err = st.InsertResource(context.Background(), &model.Resource{
		Collection: fhir.Collection(fhir.Practitioner),
		ID:         "p2",
		Body:       map[string]any{"resourceType": "Practitioner", "id": "p2"},
	})
	if err != nil {
		t.Fatalf("seed practitioner: %v", err)
	}
	rec := &recorder{}
	return booking.New(st, st, rec, zerolog.Nop()), rec
}

var alice = model.Requester{Email: "alice@x.com", Name: "Alice"}

func TestBook(t *testing.T) {
	svc, rec := setup(t)
	ctx := context.Background()

	a, err := svc.Book(ctx, "p1", "2025-06-01", "9:00", alice)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.ID == "" || a.Status != model.StatusBooked || a.Time != "09:00" {
		t.Errorf("unexpected appointment %+v", a)
	}

	if _, err := svc.Book(ctx, "p1", "2025-06-01", "09:00", model.Requester{Email: "bob@x.com"}); !errors.Is(err, booking.ErrSlotTaken) {
		t.Errorf("expected SlotTaken, got %v", err)
	}

	// same time, different provider
	if _, err := svc.Book(ctx, "p2", "2025-06-01", "09:00", alice); err != nil {
		t.Errorf("other provider: %v", err)
	}

	got := rec.seen()
	if len(got) != 2 || got[0] != "appointment.booked" {
		t.Errorf("events: %v", got)
	}
}

func TestBookValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name, provider, date, tm string
		want                     error
	}{
		{"missing provider", "", "2025-06-01", "09:00", nil},
		{"bad date", "p1", "01/06/2025", "09:00", nil},
		{"bad time", "p1", "2025-06-01", "9am", nil},
		{"unknown provider", "ghost", "2025-06-01", "09:00", booking.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(ctx, tt.provider, tt.date, tt.tm, alice)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBookConcurrent(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	const n = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		taken int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(ctx, "p1", "2025-06-01", "09:00", alice)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, booking.ErrSlotTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || taken != n-1 {
		t.Errorf("ok=%d taken=%d", ok, taken)
	}
}

func TestReschedule(t *testing.T) {
	svc, rec := setup(t)
	ctx := context.Background()

	a, _ := svc.Book(ctx, "p1", "2025-06-01", "09:00", alice)
	b, _ := svc.Book(ctx, "p1", "2025-06-01", "10:00", alice)

	if _, err := svc.Reschedule(ctx, a.ID, "2025-06-01", "10:00"); !errors.Is(err, booking.ErrSlotTaken) {
		t.Fatalf("expected SlotTaken, got %v", err)
	}

	moved, err := svc.Reschedule(ctx, a.ID, "2025-06-03", "14:00")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != model.StatusRescheduled || moved.Date != "2025-06-03" {
		t.Errorf("unexpected %+v", moved)
	}

	// the vacated slot is free again
	if _, err := svc.Book(ctx, "p1", "2025-06-01", "09:00", alice); err != nil {
		t.Errorf("rebook vacated slot: %v", err)
	}

	// own slot
	same, err := svc.Reschedule(ctx, b.ID, "2025-06-01", "10:00")
	if err != nil {
		t.Fatalf("reschedule to own slot: %v", err)
	}
	if same.Status != model.StatusRescheduled {
		t.Errorf("status %s", same.Status)
	}

	if _, err := svc.Reschedule(ctx, "missing", "2025-06-01", "10:00"); !errors.Is(err, booking.ErrUnknownAppointment) {
		t.Errorf("expected UnknownAppointment, got %v", err)
	}

	if n := len(rec.seen()); n != 5 {
		t.Errorf("expected 5 events, got %d", n)
	}
}

func TestCancel(t *testing.T) {
	svc, rec := setup(t)
	ctx := context.Background()

	a, _ := svc.Book(ctx, "p1", "2025-06-01", "09:00", alice)

	c, err := svc.Cancel(ctx, a.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.Status != model.StatusCanceled {
		t.Errorf("status %s", c.Status)
	}

	if _, err := svc.Cancel(ctx, a.ID); err != nil {
		t.Errorf("second cancel: %v", err)
	}

	if _, err := svc.Reschedule(ctx, a.ID, "2025-06-05", "09:00"); !errors.Is(err, booking.ErrCanceled) {
		t.Errorf("expected AppointmentCanceled, got %v", err)
	}

	// canceled slot can be booked again
	if _, err := svc.Book(ctx, "p1", "2025-06-01", "09:00", alice); err != nil {
		t.Errorf("rebook: %v", err)
	}

	if _, err := svc.Cancel(ctx, "missing"); !errors.Is(err, booking.ErrUnknownAppointment) {
		t.Errorf("expected UnknownAppointment, got %v", err)
	}

	got := rec.seen()
	want := []string{"appointment.booked", "appointment.canceled", "appointment.booked"}
	if len(got) != len(want) {
		t.Fatalf("events: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCancelConcurrentPublishesOnce(t *testing.T) {
	svc, rec := setup(t)
	ctx := context.Background()
	a, err := svc.Book(ctx, "p1", "2025-06-01", "09:00", alice)
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Cancel(ctx, a.ID); err != nil {
				t.Errorf("cancel: %v", err)
			}
		}()
	}
	wg.Wait()

	canceled := 0
	for _, typ := range rec.seen() {
		if typ == "appointment.canceled" {
			canceled++
		}
	}
	if canceled != 1 {
		t.Errorf("expected one canceled event, got %d", canceled)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	svc, rec := setup(t)
	rec.fail = true

	if _, err := svc.Book(context.Background(), "p1", "2025-06-01", "09:00", alice); err != nil {
		t.Fatalf("book: %v", err)
	}
}

func TestListMine(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	svc.Book(ctx, "p1", "2025-06-02", "09:00", alice)
	svc.Book(ctx, "p1", "2025-06-01", "09:00", alice)
	svc.Book(ctx, "p1", "2025-06-01", "11:00", model.Requester{Email: "bob@x.com"})

	got, err := svc.ListMine(ctx, alice.Email)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Date != "2025-06-01" {
		t.Errorf("unexpected %+v", got)
	}

	none, err := svc.ListMine(ctx, "nobody@x.com")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil list, got %v %v", none, err)
	}
}

func TestListAvailable(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	slots, err := svc.ListAvailable(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 2 || slots[0].ID != "s1" || slots[1].ID != "s3" {
		t.Errorf("unexpected %+v", slots)
	}

	empty, err := svc.ListAvailable(ctx, "p2")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty list, got %v %v", empty, err)
	}

	if _, err := svc.ListAvailable(ctx, "ghost"); !errors.Is(err, booking.ErrUnknownProvider) {
		t.Errorf("expected UnknownProvider, got %v", err)
	}
}
