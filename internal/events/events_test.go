package events

import (
	"encoding/json"
	"testing"

	"sanjeevika-api/internal/model"
)

func TestMessage(t *testing.T) {
	a := model.Appointment{ID: "appt-1", ProviderID: "p1", Date: "2025-06-01", Time: "09:00", Status: model.StatusCanceled}
	e := ForAppointment(a)
	if e.Type != "appointment.canceled" {
		t.Fatalf("type: %s", e.Type)
	}

	msg, err := Message(e)
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if string(msg.Key) != "appt-1" {
		t.Errorf("key: %s", msg.Key)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_type"] != "appointment.canceled" || headers["event_id"] != e.ID {
		t.Errorf("headers: %v", headers)
	}

	var got Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Appointment.ProviderID != "p1" || got.Appointment.Status != model.StatusCanceled {
		t.Errorf("payload: %+v", got.Appointment)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("got %v", got)
	}
	if SplitBrokers("") != nil {
		t.Error("expected nil for empty input")
	}
}
