package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookingchat/internal/models"
)

// BookingGateway is the calendar surface the tool dispatcher executes against.
// *booking.Gateway satisfies it.
type BookingGateway interface {
	AvailableSlots(ctx context.Context, start, end time.Time, timezone string) ([]string, error)
	Book(ctx context.Context, req models.BookingRequest) (*models.Appointment, error)
	AppointmentsByEmail(ctx context.Context, email string) ([]models.Appointment, error)
	Reschedule(ctx context.Context, appointmentID, newSlot, timezone string) (*models.Appointment, error)
	Cancel(ctx context.Context, appointmentID string) error
}

// Names of the functions the assistant is configured with. The dispatch set is
// closed; anything else is answered with an error payload.
const (
	toolAvailableSlots    = "get_available_slots"
	toolBookAppointment   = "book_appointment"
	toolUserAppointments  = "get_user_appointments"
	toolUpdateAppointment = "update_appointment"
	toolCancelAppointment = "cancel_appointment"
)

// ToolDispatcher maps assistant tool calls onto calendar operations. Dispatch
// never fails the surrounding run: malformed arguments, unknown functions and
// gateway errors all become JSON error payloads the assistant can read.
type ToolDispatcher struct {
	gateway BookingGateway
}

// NewToolDispatcher builds a dispatcher over the calendar gateway.
func NewToolDispatcher(gateway BookingGateway) *ToolDispatcher {
	return &ToolDispatcher{gateway: gateway}
}

// Dispatch executes one tool call and returns its output payload.
func (d *ToolDispatcher) Dispatch(ctx context.Context, call models.ToolCall) models.ToolOutput {
	payload, err := d.execute(ctx, call)
	if err != nil {
		return errorOutput(call.ID, err)
	}
	return models.ToolOutput{ToolCallID: call.ID, Output: payload}
}

func (d *ToolDispatcher) execute(ctx context.Context, call models.ToolCall) (string, error) {
	switch call.Name {
	case toolAvailableSlots:
		return d.availableSlots(ctx, call.Arguments)
	case toolBookAppointment:
		return d.bookAppointment(ctx, call.Arguments)
	case toolUserAppointments:
		return d.userAppointments(ctx, call.Arguments)
	case toolUpdateAppointment:
		return d.updateAppointment(ctx, call.Arguments)
	case toolCancelAppointment:
		return d.cancelAppointment(ctx, call.Arguments)
	default:
		return "", fmt.Errorf("Unknown function: %s", call.Name)
	}
}

func (d *ToolDispatcher) availableSlots(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Timezone  string `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.StartDate == "" || args.EndDate == "" {
		return "", errors.New("start_date and end_date are required")
	}
	start, err := parseToolDate(args.StartDate)
	if err != nil {
		return "", fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := parseToolDate(args.EndDate)
	if err != nil {
		return "", fmt.Errorf("invalid end_date: %w", err)
	}
	slots, err := d.gateway.AvailableSlots(ctx, start, end, args.Timezone)
	if err != nil {
		return "", err
	}
	return marshalPayload(map[string][]string{"slots": slots})
}

func (d *ToolDispatcher) bookAppointment(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		Slot     string `json:"slot"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Slot == "" || args.Name == "" || args.Email == "" || args.Phone == "" {
		return "", errors.New("slot, name, email and phone are required")
	}
	appt, err := d.gateway.Book(ctx, models.BookingRequest{
		Slot:     args.Slot,
		Timezone: args.Timezone,
		Name:     args.Name,
		Email:    args.Email,
		Phone:    args.Phone,
	})
	if err != nil {
		return "", err
	}
	return marshalPayload(appt)
}

func (d *ToolDispatcher) userAppointments(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Email == "" {
		return "", errors.New("email is required")
	}
	appts, err := d.gateway.AppointmentsByEmail(ctx, args.Email)
	if err != nil {
		return "", err
	}
	return marshalPayload(map[string][]models.Appointment{"appointments": appts})
}

func (d *ToolDispatcher) updateAppointment(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		AppointmentID string `json:"appointment_id"`
		NewSlot       string `json:"new_slot"`
		Timezone      string `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.AppointmentID == "" || args.NewSlot == "" {
		return "", errors.New("appointment_id and new_slot are required")
	}
	appt, err := d.gateway.Reschedule(ctx, args.AppointmentID, args.NewSlot, args.Timezone)
	if err != nil {
		return "", err
	}
	return marshalPayload(appt)
}

func (d *ToolDispatcher) cancelAppointment(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.AppointmentID == "" {
		return "", errors.New("appointment_id is required")
	}
	if err := d.gateway.Cancel(ctx, args.AppointmentID); err != nil {
		return "", err
	}
	return marshalPayload(map[string]bool{"success": true})
}

// parseToolDate accepts the formats assistants produce in practice: a bare ISO
// date or a full RFC 3339 timestamp.
func parseToolDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func marshalPayload(v interface{}) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(encoded), nil
}

func errorOutput(callID string, err error) models.ToolOutput {
	encoded, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		encoded = []byte(`{"error":"internal error"}`)
	}
	return models.ToolOutput{ToolCallID: callID, Output: string(encoded)}
}
