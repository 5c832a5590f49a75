package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"bookingchat/internal/config"
	"bookingchat/internal/models"
)

const httpTimeout = 15 * time.Second

// Gateway is a thin synchronous wrapper over the external calendar service.
// Each operation issues one outbound call and maps the provider response into
// the shapes in internal/models; nothing is cached between calls.
type Gateway struct {
	cfg        config.CalendarConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewGateway builds a gateway from the calendar section of the app config.
func NewGateway(cfg config.CalendarConfig) *Gateway {
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: httpTimeout},
		now:        time.Now,
	}
}

// DefaultTimezone reports the configured fallback timezone.
func (g *Gateway) DefaultTimezone() string {
	return g.cfg.DefaultTimezone
}

// AvailableSlots lists free slots in [start, end) for the timezone. The
// provider answers either with a flat slot list or with a per-date grouping
// keyed by ISO dates; both are normalized into one flat ordered sequence of
// ISO-8601 slot strings.
func (g *Gateway) AvailableSlots(ctx context.Context, start, end time.Time, timezone string) ([]string, error) {
	if timezone == "" {
		timezone = g.cfg.DefaultTimezone
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/free-slots", g.cfg.SlotsBaseURL, g.cfg.CalendarID)
	params := url.Values{}
	params.Set("startDate", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endDate", strconv.FormatInt(end.UnixMilli(), 10))
	params.Set("timezone", timezone)
	params.Set("enableLookBusy", "false")

	body, err := g.doRequest(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil, true)
	if err != nil {
		return nil, err
	}
	slots, err := normalizeSlots(body)
	if err != nil {
		return nil, fmt.Errorf("decode slots response: %w", err)
	}
	return slots, nil
}

// Book creates an appointment at the given slot.
func (g *Gateway) Book(ctx context.Context, req models.BookingRequest) (*models.Appointment, error) {
	if req.Timezone == "" {
		req.Timezone = g.cfg.DefaultTimezone
	}
	payload := map[string]string{
		"calendarId":       g.cfg.CalendarID,
		"selectedTimezone": req.Timezone,
		"selectedSlot":     req.Slot,
		"name":             req.Name,
		"email":            req.Email,
		"phone":            req.Phone,
	}
	body, err := g.doRequest(ctx, http.MethodPost, g.cfg.BookingBaseURL+"/appointments/", payload, false)
	if err != nil {
		return nil, err
	}
	var appt models.Appointment
	if err := json.Unmarshal(body, &appt); err != nil {
		return nil, fmt.Errorf("decode booking response: %w", err)
	}
	return &appt, nil
}

// AppointmentsByEmail lists the contact's appointments in a now to +3 months
// window. The provider cannot filter by email server-side in this integration,
// so the result set is filtered here.
func (g *Gateway) AppointmentsByEmail(ctx context.Context, email string) ([]models.Appointment, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}
	start := g.now()
	end := start.AddDate(0, 3, 0)
	params := url.Values{}
	params.Set("startDate", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endDate", strconv.FormatInt(end.UnixMilli(), 10))
	params.Set("calendarId", g.cfg.CalendarID)
	params.Set("includeAll", "true")

	body, err := g.doRequest(ctx, http.MethodGet, g.cfg.BookingBaseURL+"/appointments/?"+params.Encode(), nil, false)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Appointments []models.Appointment `json:"appointments"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode appointments response: %w", err)
	}
	matched := make([]models.Appointment, 0)
	for _, appt := range decoded.Appointments {
		if appt.Contact != nil && appt.Contact.Email == email {
			matched = append(matched, appt)
		}
	}
	return matched, nil
}

// Reschedule moves an existing appointment to a new slot.
func (g *Gateway) Reschedule(ctx context.Context, appointmentID, newSlot, timezone string) (*models.Appointment, error) {
	if appointmentID == "" {
		return nil, errors.New("appointment id is required")
	}
	if timezone == "" {
		timezone = g.cfg.DefaultTimezone
	}
	payload := map[string]string{
		"selectedTimezone": timezone,
		"selectedSlot":     newSlot,
	}
	body, err := g.doRequest(ctx, http.MethodPut, g.cfg.BookingBaseURL+"/appointments/"+appointmentID, payload, false)
	if err != nil {
		return nil, err
	}
	var appt models.Appointment
	if err := json.Unmarshal(body, &appt); err != nil {
		return nil, fmt.Errorf("decode reschedule response: %w", err)
	}
	return &appt, nil
}

// Cancel deletes an appointment by id.
func (g *Gateway) Cancel(ctx context.Context, appointmentID string) error {
	if appointmentID == "" {
		return errors.New("appointment id is required")
	}
	_, err := g.doRequest(ctx, http.MethodDelete, g.cfg.BookingBaseURL+"/appointments/"+appointmentID, nil, false)
	return err
}

func (g *Gateway) doRequest(ctx context.Context, method, rawURL string, payload interface{}, versioned bool) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if versioned {
		req.Header.Set("Version", g.cfg.APIVersion)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("calendar service returned %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

// normalizeSlots accepts every slot response shape the provider has been seen
// to produce: a bare array, {"slots": [...]}, {"_dates": {"slots": [...]}}, or
// a per-date grouping {"2025-06-01": {"slots": [...]}, ...}.
func normalizeSlots(body []byte) ([]string, error) {
	var flat []string
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}

	if raw, ok := top["slots"]; ok {
		var slots []string
		if err := json.Unmarshal(raw, &slots); err != nil {
			return nil, err
		}
		return slots, nil
	}

	if raw, ok := top["_dates"]; ok {
		var dates struct {
			Slots []string `json:"slots"`
		}
		if err := json.Unmarshal(raw, &dates); err != nil {
			return nil, err
		}
		return dates.Slots, nil
	}

	// Per-date grouping: collect keys that parse as ISO dates, ascending.
	var dateKeys []string
	for key := range top {
		if _, err := time.Parse("2006-01-02", key); err == nil {
			dateKeys = append(dateKeys, key)
		}
	}
	sort.Strings(dateKeys)

	slots := make([]string, 0)
	for _, key := range dateKeys {
		var day struct {
			Slots []string `json:"slots"`
		}
		if err := json.Unmarshal(top[key], &day); err != nil {
			return nil, err
		}
		slots = append(slots, day.Slots...)
	}
	return slots, nil
}

func truncate(body []byte, limit int) string {
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
