package fhir

import (
	"fmt"
	"strings"
)

const unknown = "Unknown"

// Summarize renders one line per resource. Bundles contribute one line per
// entry.
func Summarize(records []map[string]any) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if ResourceType(r) == Bundle {
			for _, res := range Entries(r) {
				out = append(out, SummarizeResource(res))
			}
			continue
		}
		out = append(out, SummarizeResource(r))
	}
	return out
}

func SummarizeResource(r map[string]any) string {
	switch rt := ResourceType(r); rt {
	case Patient:
		name := firstMap(r["name"])
		given := ""
		if g, ok := name["given"].([]any); ok && len(g) > 0 {
			given, _ = g[0].(string)
		}
		return fmt.Sprintf("Patient Name: %s %s, Gender: %s, Birth Date: %s",
			given, str(name, "family", ""), str(r, "gender", unknown), str(r, "birthDate", unknown))

	case Observation:
		q := obj(r, "valueQuantity")
		value := unknownOr(q["value"], "N/A")
		return fmt.Sprintf("Observations: %s, Value: %s %s, Effective Date: %s",
			codings(obj(r, "code"), ""), value, str(q, "unit", ""), str(r, "effectiveDateTime", unknown))

	case Condition:
		status := str(firstMap(obj(r, "clinicalStatus")["coding"]), "code", unknown)
		return fmt.Sprintf("Conditions: %s, Status: %s, Onset Date: %s",
			codings(obj(r, "code"), ""), status, str(r, "onsetDateTime", unknown))

	case Medication:
		return fmt.Sprintf("Medications: %s, Status: %s",
			codings(obj(r, "code"), ""), str(r, "status", unknown))

	case Encounter:
		period := obj(r, "period")
		return fmt.Sprintf("Encounters: %s, Start Date: %s, End Date: %s",
			codings(obj(r, "class"), "terminology.hl7.org/CodeSystem/encounter-class"),
			str(period, "start", unknown), str(period, "end", unknown))

	default:
		if rt == "" {
			rt = unknown
		}
		return "Unknown Resource Type: " + rt
	}
}

// codings formats a CodeableConcept's coding list. When system is set it
// overrides each coding's own system in the link.
func codings(concept map[string]any, system string) string {
	list, _ := concept["coding"].([]any)
	parts := make([]string, 0, len(list))
	for _, c := range list {
		cm, _ := c.(map[string]any)
		code := str(cm, "code", unknown)
		sys := system
		if sys == "" {
			sys = str(cm, "system", unknown)
		}
		link := ""
		if code != unknown {
			link = "http://" + sys + "/" + code
		}
		parts = append(parts, fmt.Sprintf("%s (Code: %s, Link: %s)", str(cm, "display", unknown), code, link))
	}
	return strings.Join(parts, ", ")
}

func obj(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	if v == nil {
		return map[string]any{}
	}
	return v
}

func firstMap(v any) map[string]any {
	list, _ := v.([]any)
	if len(list) == 0 {
		return map[string]any{}
	}
	m, _ := list[0].(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

func str(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

func unknownOr(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}
