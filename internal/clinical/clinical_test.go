package clinical_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sanjeevika-api/internal/apperr"
	"sanjeevika-api/internal/clinical"
	"sanjeevika-api/internal/store/memory"
)

func newService() *clinical.Service {
	st := memory.New()
	return clinical.New(st, st)
}

func observation(code string, value float64) map[string]any {
	return map[string]any{
		"resourceType": "Observation",
		"code": map[string]any{
			"coding": []any{map[string]any{"display": code}},
		},
		"valueQuantity":     map[string]any{"value": value, "unit": "bpm"},
		"effectiveDateTime": "2024-01-02",
	}
}

func TestHealthRecordLifecycle(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if err := svc.AddPatient(ctx, "u1", "Ravi", "ravi@x.com"); err != nil {
		t.Fatalf("add patient: %v", err)
	}
	if err := svc.AddPatient(ctx, "u1", "Ravi", "ravi@x.com"); !errors.Is(err, clinical.ErrPatientExists) {
		t.Fatalf("expected PatientExists, got %v", err)
	}

	if _, err := svc.HealthRecords(ctx, "u1", ""); !errors.Is(err, clinical.ErrNoRecords) {
		t.Fatalf("expected NoRecords, got %v", err)
	}

	id, err := svc.AddHealthRecord(ctx, "u1", observation("Heart rate", 72))
	if err != nil {
		t.Fatalf("add record: %v", err)
	}

	lines, err := svc.HealthRecords(ctx, "u1", "Observation")
	if err != nil {
		t.Fatalf("get records: %v", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "Heart rate") {
		t.Errorf("unexpected summaries %v", lines)
	}

	if err := svc.UpdateHealthRecord(ctx, "u1", id, observation("Pulse", 80)); err != nil {
		t.Fatalf("update: %v", err)
	}
	lines, _ = svc.HealthRecords(ctx, "u1", "")
	if len(lines) != 1 || !strings.Contains(lines[0], "Pulse") {
		t.Errorf("after update %v", lines)
	}

	if err := svc.UpdateHealthRecord(ctx, "u1", "nope", observation("x", 1)); !errors.Is(err, clinical.ErrUnknownRecord) {
		t.Errorf("expected UnknownRecord, got %v", err)
	}

	if err := svc.DeleteHealthRecord(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteHealthRecord(ctx, "u1", id); !errors.Is(err, clinical.ErrUnknownRecord) {
		t.Errorf("second delete: expected UnknownRecord, got %v", err)
	}
}

func TestAddHealthRecordUnknownPatient(t *testing.T) {
	svc := newService()
	_, err := svc.AddHealthRecord(context.Background(), "ghost", observation("x", 1))
	if !errors.Is(err, clinical.ErrUnknownPatient) {
		t.Errorf("expected UnknownPatient, got %v", err)
	}
}

func TestHealthRecordsTypeFilter(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	svc.AddPatient(ctx, "u1", "Ravi", "ravi@x.com")

	bundle := map[string]any{
		"resourceType": "Bundle",
		"entry": []any{
			map[string]any{"resource": map[string]any{"resourceType": "Condition", "code": map[string]any{"text": "Asthma"}}},
			map[string]any{"resource": observation("SpO2", 97)},
		},
	}
	if _, err := svc.AddHealthRecord(ctx, "u1", bundle); err != nil {
		t.Fatalf("add bundle: %v", err)
	}

	tests := []struct {
		name     string
		typ      string
		wantKind apperr.Kind
		wantN    int
	}{
		{"all records expand the bundle", "", 0, 2},
		{"bundle entries by type", "Condition", 0, 1},
		{"no match", "Medication", apperr.KindNotFound, 0},
		{"invalid type", "Device", apperr.KindValidation, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := svc.HealthRecords(ctx, "u1", tt.typ)
			if tt.wantKind != 0 {
				if apperr.KindOf(err) != tt.wantKind {
					t.Fatalf("expected kind %v, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(lines) != tt.wantN {
				t.Errorf("got %d lines: %v", len(lines), lines)
			}
		})
	}
}

func TestResources(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	r, err := svc.AddResource(ctx, map[string]any{"resourceType": "Practitioner", "id": "dr-1", "gender": "female"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if r.ID != "dr-1" || r.Collection != "practitioners" {
		t.Errorf("unexpected %+v", r)
	}

	if _, err := svc.AddResource(ctx, map[string]any{"resourceType": "Practitioner", "id": "dr-1"}); !errors.Is(err, clinical.ErrResourceExists) {
		t.Errorf("expected ResourceExists, got %v", err)
	}

	gen, err := svc.AddResource(ctx, map[string]any{"resourceType": "Practitioner", "id": "not valid!", "gender": "male"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if gen.ID == "not valid!" || gen.Body["id"] != gen.ID {
		t.Errorf("expected generated id, got %+v", gen)
	}

	if _, err := svc.AddResource(ctx, map[string]any{"gender": "male"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}

	got, err := svc.Resource(ctx, "Practitioner", "dr-1")
	if err != nil || got.Body["gender"] != "female" {
		t.Errorf("get: %+v %v", got, err)
	}
	if _, err := svc.Resource(ctx, "Practitioner", "missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}

	all, err := svc.Resources(ctx, "practitioner")
	if err != nil || len(all) != 2 {
		t.Errorf("list: %d %v", len(all), err)
	}
	if _, err := svc.Resources(ctx, "Encounter"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found for empty collection, got %v", err)
	}

	matched, err := svc.FilterResources(ctx, "Practitioner", "gender", "male")
	if err != nil || len(matched) != 1 || matched[0].ID != gen.ID {
		t.Errorf("filter: %+v %v", matched, err)
	}
	if _, err := svc.FilterResources(ctx, "Practitioner", "gender", ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.FilterResources(ctx, "Practitioner", "gender", "other"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}
