package model

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
}

type Status string

const (
	StatusBooked      Status = "booked"
	StatusRescheduled Status = "rescheduled"
	StatusCanceled    Status = "canceled"
)

// Active reports whether the appointment still holds its slot.
func (s Status) Active() bool { return s != StatusCanceled }

type Requester struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Appointment struct {
	ID         string    `json:"appointment_id"`
	ProviderID string    `json:"provider_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Requester  Requester `json:"user_details"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Slot struct {
	ID   string `json:"slot_id"`
	Date string `json:"date,omitempty"`
	Time string `json:"time"`
}

// Practitioner is the slice of a Practitioner resource that booking needs.
type Practitioner struct {
	ID    string
	Slots []PractitionerSlot
}

type PractitionerSlot struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	IsAvailable bool   `json:"is_available"`
}

// PractitionerFromDocument decodes the fields booking cares about from a
// stored Practitioner resource body.
func PractitionerFromDocument(body []byte) (*Practitioner, error) {
	var doc struct {
		ID    string             `json:"id"`
		Slots []PractitionerSlot `json:"slots"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &Practitioner{ID: doc.ID, Slots: doc.Slots}, nil
}

type Hospital struct {
	UUID string  `json:"uuid"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Resource is an opaque clinical document stored in a per-type collection.
type Resource struct {
	Collection string
	ID         string
	Body       map[string]any
}

// Patient holds the nested health record list for one person.
type Patient struct {
	UserID        string
	Name          string
	Email         string
	HealthRecords []map[string]any
}
