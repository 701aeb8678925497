// Package memory is an in-process implementation of the document store, used
// by tests and by the server when STORE_DRIVER=memory. A single mutex plays
// the part of the database's per-statement atomicity.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"sanjeevika-api/internal/fhir"
	"sanjeevika-api/internal/model"
	"sanjeevika-api/internal/store"
)

type slotKey struct {
	provider, date, time string
}

type Store struct {
	mu sync.Mutex

	users        map[string]model.User // by email
	appointments map[string]*model.Appointment
	activeSlots  map[slotKey]string // slot -> appointment id
	resources    map[string]map[string]resourceDoc
	patients     map[string]*model.Patient
	hospitals    []model.Hospital

	seq int64
}

type resourceDoc struct {
	body []byte
	seq  int64
}

func New() *Store {
	return &Store{
		users:        make(map[string]model.User),
		appointments: make(map[string]*model.Appointment),
		activeSlots:  make(map[slotKey]string),
		resources:    make(map[string]map[string]resourceDoc),
		patients:     make(map[string]*model.Patient),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return store.ErrDuplicate
	}
	cp := *u
	cp.CreatedAt = time.Now().UTC()
	s.users[u.Email] = cp
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func keyOf(a *model.Appointment) slotKey {
	return slotKey{a.ProviderID, a.Date, a.Time}
}

func (s *Store) InsertAppointment(_ context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(a)
	if _, taken := s.activeSlots[k]; taken {
		return store.ErrDuplicate
	}
	if _, ok := s.appointments[a.ID]; ok {
		return store.ErrDuplicate
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.appointments[a.ID] = &cp
	if a.Status.Active() {
		s.activeSlots[k] = a.ID
	}
	return nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAppointmentsByRequester(_ context.Context, email string) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.Requester.Email == email {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *Store) RescheduleAppointment(_ context.Context, id, date, tm string) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !a.Status.Active() {
		return nil, store.ErrCanceled
	}
	next := slotKey{a.ProviderID, date, tm}
	if holder, taken := s.activeSlots[next]; taken && holder != id {
		return nil, store.ErrDuplicate
	}
	delete(s.activeSlots, keyOf(a))
	a.Date, a.Time = date, tm
	a.Status = model.StatusRescheduled
	a.UpdatedAt = time.Now().UTC()
	s.activeSlots[next] = id
	cp := *a
	return &cp, nil
}

func (s *Store) CancelAppointment(_ context.Context, id string) (*model.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	changed := a.Status.Active()
	if changed {
		delete(s.activeSlots, keyOf(a))
		a.Status = model.StatusCanceled
		a.UpdatedAt = time.Now().UTC()
	}
	cp := *a
	return &cp, changed, nil
}

func (s *Store) InsertResource(_ context.Context, r *model.Resource) error {
	raw, err := json.Marshal(r.Body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.resources[r.Collection]
	if coll == nil {
		coll = make(map[string]resourceDoc)
		s.resources[r.Collection] = coll
	}
	if _, ok := coll[r.ID]; ok {
		return store.ErrDuplicate
	}
	s.seq++
	coll[r.ID] = resourceDoc{body: raw, seq: s.seq}
	return nil
}

func (s *Store) GetResource(_ context.Context, collection, id string) (*model.Resource, error) {
	s.mu.Lock()
	doc, ok := s.resources[collection][id]
	s.mu.Unlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	r := &model.Resource{Collection: collection, ID: id}
	if err := json.Unmarshal(doc.body, &r.Body); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListResources(ctx context.Context, collection string) ([]model.Resource, error) {
	return s.FilterResources(ctx, collection, "", "")
}

// FilterResources with an empty field returns the whole collection.
func (s *Store) FilterResources(_ context.Context, collection, field, value string) ([]model.Resource, error) {
	type entry struct {
		id  string
		doc resourceDoc
	}
	s.mu.Lock()
	entries := make([]entry, 0, len(s.resources[collection]))
	for id, doc := range s.resources[collection] {
		entries = append(entries, entry{id, doc})
	}
	s.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].doc.seq < entries[j].doc.seq })

	var out []model.Resource
	for _, e := range entries {
		r := model.Resource{Collection: collection, ID: e.id}
		if err := json.Unmarshal(e.doc.body, &r.Body); err != nil {
			return nil, err
		}
		if field != "" && !textEquals(r.Body[field], value) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// textEquals follows Postgres ->> semantics: strings compare raw, other
// scalars by their JSON text.
func textEquals(v any, want string) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t == want
	default:
		raw, err := json.Marshal(t)
		return err == nil && string(raw) == want
	}
}

func (s *Store) Practitioner(_ context.Context, id string) (*model.Practitioner, error) {
	s.mu.Lock()
	doc, ok := s.resources[fhir.Collection(fhir.Practitioner)][id]
	s.mu.Unlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	p, err := model.PractitionerFromDocument(doc.body)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return p, nil
}

func (s *Store) CreatePatient(_ context.Context, p *model.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[p.UserID]; ok {
		return store.ErrDuplicate
	}
	cp := *p
	cp.HealthRecords = nil
	s.patients[p.UserID] = &cp
	return nil
}

func (s *Store) HealthRecords(_ context.Context, userID string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]map[string]any, len(p.HealthRecords))
	for i, r := range p.HealthRecords {
		out[i] = clone(r)
	}
	return out, nil
}

func (s *Store) PushHealthRecord(_ context.Context, userID string, rec map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.HealthRecords = append(p.HealthRecords, clone(rec))
	return nil
}

func (s *Store) ReplaceHealthRecord(_ context.Context, userID, recordID string, rec map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[userID]
	if !ok {
		return store.ErrNotFound
	}
	for i, r := range p.HealthRecords {
		if r["id"] == recordID {
			p.HealthRecords[i] = clone(rec)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) PullHealthRecord(_ context.Context, userID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[userID]
	if !ok {
		return store.ErrNotFound
	}
	kept := p.HealthRecords[:0]
	removed := false
	for _, r := range p.HealthRecords {
		if r["id"] == recordID {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		return store.ErrNotFound
	}
	p.HealthRecords = kept
	return nil
}

func (s *Store) InsertHospital(_ context.Context, h *model.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.hospitals {
		if existing.UUID == h.UUID {
			return store.ErrDuplicate
		}
	}
	s.hospitals = append(s.hospitals, *h)
	return nil
}

func (s *Store) ListHospitals(context.Context) ([]model.Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.Hospital(nil), s.hospitals...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// clone deep-copies a JSON document so callers never share maps with the store.
func clone(m map[string]any) map[string]any {
	raw, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
