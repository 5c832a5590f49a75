package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookingchat/internal/config"
	"bookingchat/internal/models"
)

func testGateway(serverURL string) *Gateway {
	return NewGateway(config.CalendarConfig{
		APIToken:        "test-token",
		CalendarID:      "cal_123",
		BookingBaseURL:  serverURL + "/v1",
		SlotsBaseURL:    serverURL + "/slots",
		APIVersion:      "2021-04-15",
		DefaultTimezone: "America/New_York",
	})
}

func TestAvailableSlotsFlatShape(t *testing.T) {
	var gotReq *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		json.NewEncoder(w).Encode(map[string][]string{
			"slots": {"2026-09-01T10:00:00-04:00", "2026-09-01T11:00:00-04:00"},
		})
	}))
	defer server.Close()

	g := testGateway(server.URL)
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)
	slots, err := g.AvailableSlots(context.Background(), start, end, "")
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", slots)
	}
	if !strings.HasPrefix(gotReq.URL.Path, "/slots/calendars/cal_123/free-slots") {
		t.Fatalf("unexpected path %s", gotReq.URL.Path)
	}
	q := gotReq.URL.Query()
	if q.Get("timezone") != "America/New_York" {
		t.Fatalf("default timezone not applied: %q", q.Get("timezone"))
	}
	if q.Get("startDate") == "" || q.Get("endDate") == "" {
		t.Fatalf("millisecond range missing: %v", q)
	}
	if gotReq.Header.Get("Version") != "2021-04-15" {
		t.Fatalf("version header missing")
	}
	if gotReq.Header.Get("Authorization") != "Bearer test-token" {
		t.Fatalf("authorization header missing")
	}
}

func TestAvailableSlotsPerDateShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Keys intentionally out of order; normalization sorts them.
		w.Write([]byte(`{
			"2026-09-02": {"slots": ["2026-09-02T09:00:00-04:00"]},
			"2026-09-01": {"slots": ["2026-09-01T10:00:00-04:00", "2026-09-01T11:00:00-04:00"]},
			"traceId": "abc"
		}`))
	}))
	defer server.Close()

	g := testGateway(server.URL)
	slots, err := g.AvailableSlots(context.Background(), time.Now(), time.Now().AddDate(0, 0, 2), "UTC")
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	want := []string{
		"2026-09-01T10:00:00-04:00",
		"2026-09-01T11:00:00-04:00",
		"2026-09-02T09:00:00-04:00",
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d out of order: %q vs %q", i, slots[i], want[i])
		}
	}
}

func TestBookSendsProviderPayload(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/appointments/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"id": "appt_1", "status": "booked"})
	}))
	defer server.Close()

	g := testGateway(server.URL)
	appt, err := g.Book(context.Background(), models.BookingRequest{
		Slot:  "2026-09-01T10:00:00-04:00",
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "+15550100",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if appt.ID != "appt_1" {
		t.Fatalf("unexpected appointment %+v", appt)
	}
	if gotBody["calendarId"] != "cal_123" {
		t.Fatalf("calendar id not injected: %v", gotBody)
	}
	if gotBody["selectedSlot"] != "2026-09-01T10:00:00-04:00" {
		t.Fatalf("slot not forwarded: %v", gotBody)
	}
	if gotBody["selectedTimezone"] != "America/New_York" {
		t.Fatalf("default timezone not applied: %v", gotBody)
	}
}

func TestAppointmentsByEmailFiltersContact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"appointments": []map[string]interface{}{
				{"id": "appt_1", "contact": map[string]string{"email": "jane@example.com"}},
				{"id": "appt_2", "contact": map[string]string{"email": "other@example.com"}},
				{"id": "appt_3"},
			},
		})
	}))
	defer server.Close()

	g := testGateway(server.URL)
	g.now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }

	appts, err := g.AppointmentsByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("AppointmentsByEmail error: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != "appt_1" {
		t.Fatalf("filter wrong: %+v", appts)
	}

	if _, err := g.AppointmentsByEmail(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty email")
	}
}

func TestRescheduleAndCancel(t *testing.T) {
	var methods []string
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"id": "appt_5"})
	}))
	defer server.Close()

	g := testGateway(server.URL)
	if _, err := g.Reschedule(context.Background(), "appt_5", "2026-09-02T15:00:00-04:00", ""); err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if err := g.Cancel(context.Background(), "appt_5"); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if len(methods) != 2 || methods[0] != http.MethodPut || methods[1] != http.MethodDelete {
		t.Fatalf("unexpected methods %v", methods)
	}
	for _, p := range paths {
		if p != "/v1/appointments/appt_5" {
			t.Fatalf("unexpected path %s", p)
		}
	}

	if _, err := g.Reschedule(context.Background(), "", "slot", ""); err == nil {
		t.Fatalf("expected error for empty appointment id")
	}
	if err := g.Cancel(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty appointment id")
	}
}

func TestGatewaySurfacesProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"calendar not found"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	g := testGateway(server.URL)
	_, err := g.AvailableSlots(context.Background(), time.Now(), time.Now().AddDate(0, 0, 1), "")
	if err == nil {
		t.Fatalf("expected error on 502")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("status lost: %v", err)
	}
}
