// Package clinical stores FHIR documents: the per-patient health record list
// and the generic per-type resource collections. Documents are kept opaquely;
// only resourceType and id are interpreted.
package clinical

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"sanjeevika-api/internal/apperr"
	"sanjeevika-api/internal/fhir"
	"sanjeevika-api/internal/model"
	"sanjeevika-api/internal/store"
)

var (
	ErrPatientExists   = apperr.Conflict("PatientExists", "user already exists")
	ErrUnknownPatient  = apperr.NotFound("UnknownPatient", "user not found")
	ErrNoRecords       = apperr.NotFound("NoRecords", "no records found for this user")
	ErrUnknownRecord   = apperr.NotFound("UnknownRecord", "no matching health record found")
	ErrResourceExists  = apperr.Conflict("ResourceExists", "resource id already in use")
	ErrUnknownResource = apperr.NotFound("UnknownResource", "resource not found")
	ErrNoResources     = apperr.NotFound("NoResources", "no resources found")
)

var resourceTypeRe = regexp.MustCompile(`^[A-Za-z]{1,64}$`)

type RecordStore interface {
	CreatePatient(ctx context.Context, p *model.Patient) error
	HealthRecords(ctx context.Context, userID string) ([]map[string]any, error)
	PushHealthRecord(ctx context.Context, userID string, rec map[string]any) error
	ReplaceHealthRecord(ctx context.Context, userID, recordID string, rec map[string]any) error
	PullHealthRecord(ctx context.Context, userID, recordID string) error
}

type ResourceStore interface {
	InsertResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, collection, id string) (*model.Resource, error)
	ListResources(ctx context.Context, collection string) ([]model.Resource, error)
	FilterResources(ctx context.Context, collection, field, value string) ([]model.Resource, error)
}

type Service struct {
	records   RecordStore
	resources ResourceStore
}

func New(records RecordStore, resources ResourceStore) *Service {
	return &Service{records: records, resources: resources}
}

func (s *Service) AddPatient(ctx context.Context, userID, name, email string) error {
	userID, name, email = strings.TrimSpace(userID), strings.TrimSpace(name), strings.TrimSpace(email)
	if userID == "" || name == "" || email == "" {
		return apperr.Validation("missing user_id, name, or email")
	}
	err := s.records.CreatePatient(ctx, &model.Patient{UserID: userID, Name: name, Email: email})
	if errors.Is(err, store.ErrDuplicate) {
		return ErrPatientExists
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// AddHealthRecord stores rec under a fresh record id and returns the id.
func (s *Service) AddHealthRecord(ctx context.Context, userID string, rec map[string]any) (string, error) {
	if strings.TrimSpace(userID) == "" || len(rec) == 0 {
		return "", apperr.Validation("missing user_id or record_data")
	}
	id := uuid.New().String()
	doc := withID(rec, id)
	if err := s.records.PushHealthRecord(ctx, userID, doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownPatient
		}
		return "", apperr.Internal(err)
	}
	return id, nil
}

// HealthRecords returns one summary line per record, optionally restricted
// to a single resource type. Bundles are searched by their entries.
func (s *Service) HealthRecords(ctx context.Context, userID, recordType string) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("missing user_id")
	}
	if recordType != "" && !fhir.IsRecordType(recordType) {
		return nil, apperr.Validation(fmt.Sprintf("invalid record type: %s. valid types are: %s",
			recordType, strings.Join(fhir.RecordTypes, ", ")))
	}

	recs, err := s.records.HealthRecords(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}

	if recordType != "" {
		recs = fhir.FilterByType(recs, recordType)
		if len(recs) == 0 {
			return nil, apperr.NotFound("NoRecords", "no records found for type: "+recordType)
		}
	}
	return fhir.Summarize(recs), nil
}

// UpdateHealthRecord replaces a record in place. The replacement keeps the
// original record id.
func (s *Service) UpdateHealthRecord(ctx context.Context, userID, recordID string, rec map[string]any) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(recordID) == "" || len(rec) == 0 {
		return apperr.Validation("missing required fields")
	}
	err := s.records.ReplaceHealthRecord(ctx, userID, recordID, withID(rec, recordID))
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownRecord
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) DeleteHealthRecord(ctx context.Context, userID, recordID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(recordID) == "" {
		return apperr.Validation("missing user_id or record_id")
	}
	err := s.records.PullHealthRecord(ctx, userID, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownRecord
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// AddResource stores body in its type's collection. A valid FHIR id in the
// body is kept; otherwise a uuid is assigned.
func (s *Service) AddResource(ctx context.Context, body map[string]any) (*model.Resource, error) {
	rt := fhir.ResourceType(body)
	if rt == "" {
		return nil, apperr.Validation("missing resourceType")
	}
	if !resourceTypeRe.MatchString(rt) {
		return nil, apperr.Validation("invalid resourceType")
	}

	id, _ := body["id"].(string)
	if !fhir.IDRe.MatchString(id) {
		id = uuid.New().String()
	}

	r := &model.Resource{Collection: fhir.Collection(rt), ID: id, Body: withID(body, id)}
	if err := s.resources.InsertResource(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrResourceExists
		}
		return nil, apperr.Internal(err)
	}
	return r, nil
}

func (s *Service) Resource(ctx context.Context, resourceType, id string) (*model.Resource, error) {
	r, err := s.resources.GetResource(ctx, fhir.Collection(resourceType), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(ErrUnknownResource.Code, resourceType+" not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return r, nil
}

func (s *Service) Resources(ctx context.Context, resourceType string) ([]model.Resource, error) {
	out, err := s.resources.ListResources(ctx, fhir.Collection(resourceType))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(out) == 0 {
		return nil, apperr.NotFound(ErrNoResources.Code, "no "+resourceType+" records found")
	}
	return out, nil
}

// FilterResources matches documents whose top-level field equals value.
func (s *Service) FilterResources(ctx context.Context, resourceType, field, value string) ([]model.Resource, error) {
	if field == "" || value == "" {
		return nil, apperr.Validation("missing field or value for filtering")
	}
	out, err := s.resources.FilterResources(ctx, fhir.Collection(resourceType), field, value)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(out) == 0 {
		return nil, apperr.NotFound(ErrNoResources.Code, "no "+resourceType+" records match the query")
	}
	return out, nil
}

func withID(doc map[string]any, id string) map[string]any {
	out := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["id"] = id
	return out
}
