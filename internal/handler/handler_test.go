package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventgrid/eventgrid/internal/clock"
	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/eventgrid/eventgrid/internal/repository/memory"
	"github.com/eventgrid/eventgrid/internal/service"
	"github.com/go-chi/chi/v5"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router *chi.Mux
	store  *memory.Store
}

// newTestServer wires the handlers over the in-memory store with the same
// routes main registers.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFixed(testNow)
	bus := service.NewBus()

	teamMgr := service.NewTeamManager(store.Teams(), clk)
	ticketSvc := service.NewTicketService(store.Tickets(), store.Registrations(), store.Events(), bus, clk)
	regSvc := service.NewRegistrationService(store.Events(), store.Registrations(), teamMgr, ticketSvc, bus, clk, 30*time.Minute)
	eventSvc := service.NewEventService(store.Events(), teamMgr, clk)
	h := New(eventSvc, regSvc, ticketSvc, teamMgr)

	r := chi.NewRouter()
	r.Get("/health", HealthCheck)
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/transition", h.TransitionEvent)
		r.Post("/{id}/close", h.CloseEvent)
		r.Post("/{id}/register", h.Register)
		r.Get("/{id}/registrations", h.ListRegistrations)
		r.Get("/{id}/registrations/export", h.ExportRegistrations)
		r.Get("/{id}/teams/underfilled", h.UnderfilledTeams)
	})
	r.Route("/registrations", func(r chi.Router) {
		r.Get("/{id}", h.GetRegistration)
		r.Delete("/{id}", h.CancelRegistration)
	})
	r.Post("/payments/callback", h.PaymentCallback)
	r.Get("/teams/{id}", h.GetTeam)
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/verify/{code}", h.VerifyTicket)
		r.Post("/checkin", h.CheckIn)
	})

	return &testServer{router: r, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (ts *testServer) seedLiveEvent(t *testing.T, ev model.Event) *model.Event {
	t.Helper()
	if ev.Status == "" {
		ev.Status = model.EventLive
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = testNow
	}
	return ts.store.SeedEvent(ev)
}

func registerBody(userID string) model.RegisterRequest {
	return model.RegisterRequest{
		UserID:  userID,
		Name:    "User " + userID,
		Email:   userID + "@example.com",
		College: "Sample Institute",
	}
}

func TestEventLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/events", model.CreateEventRequest{
		Name: "HackNight", Capacity: 100,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", rec.Code, rec.Body)
	}
	event := decodeBody[model.Event](t, rec)
	if event.Status != model.EventDraft {
		t.Fatalf("new event must be draft, got %s", event.Status)
	}

	// Draft events refuse registrations.
	rec = ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u1"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("draft register: got %d body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/events/"+event.ID+"/transition", map[string]string{"status": "live"})
	if rec.Code != http.StatusOK {
		t.Fatalf("transition: got %d body %s", rec.Code, rec.Body)
	}

	// Backwards transition is rejected.
	rec = ts.do(t, http.MethodPost, "/events/"+event.ID+"/transition", map[string]string{"status": "draft"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("backwards transition: got %d body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d body %s", rec.Code, rec.Body)
	}
}

func TestRegisterEndpoint_CapacityAndDuplicates(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedLiveEvent(t, model.Event{Capacity: 1})

	rec := ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u1"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: got %d body %s", rec.Code, rec.Body)
	}
	dup := decodeBody[model.ErrorResponse](t, rec)
	if !strings.Contains(dup.Error, "already registered") {
		t.Fatalf("duplicate message: %q", dup.Error)
	}

	rec = ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u2"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("full event: got %d body %s", rec.Code, rec.Body)
	}
	full := decodeBody[model.ErrorResponse](t, rec)
	if !strings.Contains(full.Error, "full") {
		t.Fatalf("full message: %q", full.Error)
	}
}

func TestRegisterEndpoint_TeamMembersPayload(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedLiveEvent(t, model.Event{
		Capacity: 10, TeamBased: true, MinTeamSize: 2, MaxTeamSize: 4,
	})

	body := registerBody("leader")
	body.TeamChoice = model.TeamChoiceCreate
	body.TeamMembers = []model.TeamMemberInput{
		{Name: "Mate One", Email: "mate1@example.com", Role: "member"},
	}
	rec := ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register with team_members: got %d body %s", rec.Code, rec.Body)
	}
	reg := decodeBody[model.Registration](t, rec)
	if reg.TeamID == "" {
		t.Fatal("registration missing team id")
	}

	rec = ts.do(t, http.MethodGet, "/teams/"+reg.TeamID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get team: got %d body %s", rec.Code, rec.Body)
	}
	team := decodeBody[model.Team](t, rec)
	if len(team.Roster) != 1 || team.Roster[0].Name != "Mate One" {
		t.Fatalf("roster not returned: %+v", team.Roster)
	}
}

func TestPaymentCallbackEndpoint_DuplicateDelivery(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedLiveEvent(t, model.Event{Capacity: 10, Price: 500})

	rec := ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d body %s", rec.Code, rec.Body)
	}
	reg := decodeBody[model.Registration](t, rec)
	if reg.Status != model.RegistrationPending {
		t.Fatalf("paid registration must start pending, got %s", reg.Status)
	}

	cb := model.PaymentCallback{RegistrationID: reg.ID, Outcome: "success", TransactionRef: "txn-1"}
	rec = ts.do(t, http.MethodPost, "/payments/callback", cb)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: got %d body %s", rec.Code, rec.Body)
	}
	confirmed := decodeBody[model.Registration](t, rec)
	if confirmed.Status != model.RegistrationConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	rec = ts.do(t, http.MethodPost, "/payments/callback", cb)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate callback: got %d body %s", rec.Code, rec.Body)
	}
}

func TestCheckInEndpoint(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedLiveEvent(t, model.Event{Capacity: 10})

	rec := ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u1"))
	reg := decodeBody[model.Registration](t, rec)
	ticket, err := ts.store.Tickets().GetByRegistration(context.Background(), reg.ID)
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}

	rec = ts.do(t, http.MethodGet, "/tickets/verify/"+ticket.QRCode, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: got %d body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/tickets/checkin", map[string]string{"qr_code": ticket.QRCode})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkin: got %d body %s", rec.Code, rec.Body)
	}
	first := decodeBody[model.CheckInResult](t, rec)
	if !first.Valid || first.Status != model.CheckedIn {
		t.Fatalf("expected checked_in, got %+v", first)
	}
	if first.Attendee == nil || first.Attendee.UserID != "u1" {
		t.Fatalf("missing attendee in response: %+v", first)
	}

	rec = ts.do(t, http.MethodPost, "/tickets/checkin", map[string]string{"qr_code": ticket.QRCode})
	second := decodeBody[model.CheckInResult](t, rec)
	if second.Valid || second.Status != model.AlreadyUsed {
		t.Fatalf("expected already_used, got %+v", second)
	}
	if second.UsedAt == nil || first.UsedAt == nil || !second.UsedAt.Equal(*first.UsedAt) {
		t.Fatalf("used_at changed between scans: %v vs %v", second.UsedAt, first.UsedAt)
	}

	rec = ts.do(t, http.MethodPost, "/tickets/checkin", map[string]string{"qr_code": "QR_DOESNOTEXIST"})
	invalid := decodeBody[model.CheckInResult](t, rec)
	if invalid.Valid || invalid.Status != model.InvalidScan {
		t.Fatalf("expected invalid, got %+v", invalid)
	}

	rec = ts.do(t, http.MethodPost, "/tickets/checkin", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing qr_code: got %d body %s", rec.Code, rec.Body)
	}
}

func TestCancelRegistrationEndpoint(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedLiveEvent(t, model.Event{Capacity: 10})

	rec := ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody("u1"))
	reg := decodeBody[model.Registration](t, rec)

	rec = ts.do(t, http.MethodDelete, "/registrations/"+reg.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: got %d body %s", rec.Code, rec.Body)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "cancelled" {
		t.Fatalf("unexpected cancel body %v", body)
	}

	rec = ts.do(t, http.MethodDelete, "/registrations/"+reg.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double cancel: got %d body %s", rec.Code, rec.Body)
	}
}

func TestExportRegistrationsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedLiveEvent(t, model.Event{Capacity: 10})

	for _, id := range []string{"u1", "u2"} {
		if rec := ts.do(t, http.MethodPost, "/events/"+event.ID+"/register", registerBody(id)); rec.Code != http.StatusCreated {
			t.Fatalf("register %s: got %d body %s", id, rec.Code, rec.Body)
		}
	}

	rec := ts.do(t, http.MethodGet, "/events/"+event.ID+"/registrations/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: got %d body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content disposition %q", cd)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	wantHeader := []string{"Name", "Email", "College", "Status", "Submitted At", "Team Size"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Fatalf("header column %d = %q, want %q", i, rows[0][i], col)
		}
	}
	names := map[string]bool{}
	for _, row := range rows[1:] {
		names[row[0]] = true
		if row[3] != "confirmed" || row[5] != "1" {
			t.Fatalf("unexpected row %v", row)
		}
	}
	if !names["User u1"] || !names["User u2"] {
		t.Fatalf("missing registrations in export: %v", names)
	}
}

func TestGetEventEndpoint_NotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/events/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d body %s", rec.Code, rec.Body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}
