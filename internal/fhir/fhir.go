package fhir

import (
	"regexp"
	"strings"
)

// FHIR id: [A-Za-z0-9\-\.]{1,64}
var IDRe = regexp.MustCompile(`^[A-Za-z0-9\-\.]{1,64}$`)

const (
	Bundle       = "Bundle"
	Patient      = "Patient"
	Observation  = "Observation"
	Condition    = "Condition"
	Medication   = "Medication"
	Encounter    = "Encounter"
	Practitioner = "Practitioner"
)

// RecordTypes are the resource types a health record listing can be filtered by.
var RecordTypes = []string{Patient, Observation, Condition, Medication, Encounter}

func IsRecordType(t string) bool {
	for _, rt := range RecordTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// Collection names the document collection that stores resources of type rt.
func Collection(rt string) string {
	return strings.ToLower(strings.TrimSpace(rt)) + "s"
}

func ResourceType(r map[string]any) string {
	rt, _ := r["resourceType"].(string)
	return rt
}

// Entries returns the resources carried by a Bundle's entry list.
func Entries(bundle map[string]any) []map[string]any {
	raw, _ := bundle["entry"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		em, ok := e.(map[string]any)
		if !ok {
			continue
		}
		res, ok := em["resource"].(map[string]any)
		if !ok {
			res = map[string]any{}
		}
		out = append(out, res)
	}
	return out
}

// FilterByType keeps records of type rt, looking inside Bundles.
func FilterByType(records []map[string]any, rt string) []map[string]any {
	var out []map[string]any
	for _, r := range records {
		if ResourceType(r) == Bundle {
			for _, res := range Entries(r) {
				if ResourceType(res) == rt {
					out = append(out, res)
				}
			}
			continue
		}
		if ResourceType(r) == rt {
			out = append(out, r)
		}
	}
	return out
}
