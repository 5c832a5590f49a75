package models

// Appointment mirrors the booking provider's record. The provider owns these;
// nothing here is cached beyond a request/response cycle.
type Appointment struct {
	ID                string              `json:"id"`
	CalendarID        string              `json:"calendarId,omitempty"`
	Status            string              `json:"status,omitempty"`
	Title             string              `json:"title,omitempty"`
	StartTime         string              `json:"startTime,omitempty"`
	EndTime           string              `json:"endTime,omitempty"`
	Timezone          string              `json:"selectedTimezone,omitempty"`
	AppointmentStatus string              `json:"appointmentStatus,omitempty"`
	Contact           *AppointmentContact `json:"contact,omitempty"`
}

type AppointmentContact struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// BookingRequest carries the fields required to create an appointment.
type BookingRequest struct {
	Slot     string
	Timezone string
	Name     string
	Email    string
	Phone    string
}
