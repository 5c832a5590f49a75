package chat

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"bookingchat/internal/models"
)

// fakeGateway records calendar calls and plays back scripted results.
type fakeGateway struct {
	slots     []string
	slotsErr  error
	slotsTZ   string
	slotsFrom time.Time
	slotsTo   time.Time

	booked  []models.BookingRequest
	bookErr error

	appts    []models.Appointment
	apptsErr error

	rescheduled  []string
	rescheduleTZ string

	cancelled []string
	cancelErr error
}

func (g *fakeGateway) AvailableSlots(ctx context.Context, start, end time.Time, timezone string) ([]string, error) {
	if g.slotsErr != nil {
		return nil, g.slotsErr
	}
	g.slotsFrom, g.slotsTo, g.slotsTZ = start, end, timezone
	return g.slots, nil
}

func (g *fakeGateway) Book(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	if g.bookErr != nil {
		return nil, g.bookErr
	}
	g.booked = append(g.booked, req)
	return &models.Appointment{ID: "appt_new", StartTime: req.Slot}, nil
}

func (g *fakeGateway) AppointmentsByEmail(ctx context.Context, email string) ([]models.Appointment, error) {
	if g.apptsErr != nil {
		return nil, g.apptsErr
	}
	return g.appts, nil
}

func (g *fakeGateway) Reschedule(ctx context.Context, appointmentID, newSlot, timezone string) (*models.Appointment, error) {
	g.rescheduled = append(g.rescheduled, appointmentID)
	g.rescheduleTZ = timezone
	return &models.Appointment{ID: appointmentID, StartTime: newSlot}, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, appointmentID string) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, appointmentID)
	return nil
}

func decodePayload(t *testing.T, out models.ToolOutput) map[string]json.RawMessage {
	t.Helper()
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out.Output), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v (%s)", err, out.Output)
	}
	return payload
}

func TestDispatchAvailableSlots(t *testing.T) {
	gateway := &fakeGateway{slots: []string{"2026-09-01T10:00:00-04:00", "2026-09-01T11:00:00-04:00"}}
	d := NewToolDispatcher(gateway)

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "get_available_slots",
		Arguments: `{"start_date":"2026-09-01","end_date":"2026-09-05","timezone":"America/Chicago"}`,
	})
	if out.ToolCallID != "call_1" {
		t.Fatalf("output bound to wrong call: %q", out.ToolCallID)
	}
	payload := decodePayload(t, out)
	var slots []string
	if err := json.Unmarshal(payload["slots"], &slots); err != nil || len(slots) != 2 {
		t.Fatalf("unexpected slots payload: %s", out.Output)
	}
	if gateway.slotsTZ != "America/Chicago" {
		t.Fatalf("timezone not forwarded: %q", gateway.slotsTZ)
	}
	if !gateway.slotsFrom.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start date parsed wrong: %v", gateway.slotsFrom)
	}
}

func TestDispatchBookAppointment(t *testing.T) {
	gateway := &fakeGateway{}
	d := NewToolDispatcher(gateway)

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "book_appointment",
		Arguments: `{"slot":"2026-09-01T10:00:00-04:00","name":"Jane Doe","email":"jane@example.com","phone":"+15550100"}`,
	})
	if strings.Contains(out.Output, `"error"`) {
		t.Fatalf("unexpected error payload: %s", out.Output)
	}
	if len(gateway.booked) != 1 {
		t.Fatalf("expected one booking, got %d", len(gateway.booked))
	}
	req := gateway.booked[0]
	if req.Email != "jane@example.com" || req.Slot != "2026-09-01T10:00:00-04:00" {
		t.Fatalf("booking request mangled: %+v", req)
	}
	if !strings.Contains(out.Output, "appt_new") {
		t.Fatalf("payload missing created appointment: %s", out.Output)
	}
}

func TestDispatchBookAppointmentMissingArgs(t *testing.T) {
	gateway := &fakeGateway{}
	d := NewToolDispatcher(gateway)

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "book_appointment",
		Arguments: `{"slot":"2026-09-01T10:00:00-04:00"}`,
	})
	payload := decodePayload(t, out)
	if _, ok := payload["error"]; !ok {
		t.Fatalf("expected error payload, got %s", out.Output)
	}
	if len(gateway.booked) != 0 {
		t.Fatalf("gateway called despite missing arguments")
	}
}

func TestDispatchUserAppointments(t *testing.T) {
	gateway := &fakeGateway{appts: []models.Appointment{{ID: "appt_1"}, {ID: "appt_2"}}}
	d := NewToolDispatcher(gateway)

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "get_user_appointments",
		Arguments: `{"email":"jane@example.com"}`,
	})
	payload := decodePayload(t, out)
	var appts []models.Appointment
	if err := json.Unmarshal(payload["appointments"], &appts); err != nil || len(appts) != 2 {
		t.Fatalf("unexpected appointments payload: %s", out.Output)
	}
}

func TestDispatchUpdateAppointment(t *testing.T) {
	gateway := &fakeGateway{}
	d := NewToolDispatcher(gateway)

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "update_appointment",
		Arguments: `{"appointment_id":"appt_7","new_slot":"2026-09-02T15:00:00-04:00"}`,
	})
	if strings.Contains(out.Output, `"error"`) {
		t.Fatalf("unexpected error payload: %s", out.Output)
	}
	if len(gateway.rescheduled) != 1 || gateway.rescheduled[0] != "appt_7" {
		t.Fatalf("reschedule not forwarded: %v", gateway.rescheduled)
	}
}

func TestDispatchGatewayErrorBecomesPayload(t *testing.T) {
	gateway := &fakeGateway{slotsErr: errTest("calendar service returned 502")}
	d := NewToolDispatcher(gateway)

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "get_available_slots",
		Arguments: `{"start_date":"2026-09-01","end_date":"2026-09-05"}`,
	})
	payload := decodePayload(t, out)
	var msg string
	if err := json.Unmarshal(payload["error"], &msg); err != nil {
		t.Fatalf("expected error payload, got %s", out.Output)
	}
	if !strings.Contains(msg, "502") {
		t.Fatalf("error payload lost cause: %q", msg)
	}
}

func TestDispatchUnknownFunction(t *testing.T) {
	d := NewToolDispatcher(&fakeGateway{})

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "send_rocket",
		Arguments: `{}`,
	})
	if out.ToolCallID != "call_1" {
		t.Fatalf("output bound to wrong call: %q", out.ToolCallID)
	}
	if !strings.Contains(out.Output, "Unknown function") {
		t.Fatalf("expected unknown-function payload, got %s", out.Output)
	}
}

func TestDispatchMalformedArguments(t *testing.T) {
	d := NewToolDispatcher(&fakeGateway{})

	out := d.Dispatch(context.Background(), models.ToolCall{
		ID:        "call_1",
		Name:      "cancel_appointment",
		Arguments: `{"appointment_id":`,
	})
	payload := decodePayload(t, out)
	if _, ok := payload["error"]; !ok {
		t.Fatalf("expected error payload, got %s", out.Output)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
