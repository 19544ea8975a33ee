package agenda

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func statusOf(t *testing.T, err error, rec *httptest.ResponseRecorder) int {
	t.Helper()
	if err == nil {
		return rec.Code
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandler_CreateVisit(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"date":"2024-03-05","time_window":"09:00-10:00","agent_id":"ana"}`), rec)
	if err := h.CreateVisit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var v Visit
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.TimeWindow != "09:00 - 10:00" {
		t.Errorf("expected canonical window, got %q", v.TimeWindow)
	}
}

func TestHandler_CreateVisit_StatusMapping(t *testing.T) {
	h, e := newTestHandler()
	mustCreate(t, h.svc, "2024-03-05", "09:00 - 10:00", "ana")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"conflict", `{"date":"2024-03-05","time_window":"09:00 - 10:00","agent_id":"ana"}`, http.StatusConflict},
		{"past date", `{"date":"2024-03-01","time_window":"09:00 - 10:00","agent_id":"ana"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"date":"05/03/2024","time_window":"09:00 - 10:00"}`, http.StatusBadRequest},
		{"bad window", `{"date":"2024-03-05","time_window":"13:00 - 14:00"}`, http.StatusBadRequest},
		{"agent id too long", `{"date":"2024-03-05","time_window":"10:00 - 11:00","agent_id":"` + strings.Repeat("x", 65) + `"}`, http.StatusBadRequest},
		{"malformed json", `{"date":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/", tt.body), rec)
			if got := statusOf(t, h.CreateVisit(c), rec); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestHandler_RescheduleVisit(t *testing.T) {
	h, e := newTestHandler()
	a := mustCreate(t, h.svc, "2024-03-05", "09:00 - 10:00", "ana")
	b := mustCreate(t, h.svc, "2024-03-05", "10:00 - 11:00", "ana")

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"moved", b.ID.String(), `{"date":"2024-03-06","time_window":"16:00-17:00"}`, http.StatusOK},
		{"own slot", a.ID.String(), `{"date":"2024-03-05","time_window":"09:00 - 10:00"}`, http.StatusOK},
		{"conflict", b.ID.String(), `{"date":"2024-03-05","time_window":"09:00 - 10:00"}`, http.StatusConflict},
		{"past", a.ID.String(), `{"date":"2024-02-28","time_window":"09:00 - 10:00"}`, http.StatusUnprocessableEntity},
		{"unknown", uuid.New().String(), `{"date":"2024-03-06","time_window":"09:00 - 10:00"}`, http.StatusNotFound},
		{"invalid id", "nope", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPut, "/", tt.body), rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			if got := statusOf(t, h.RescheduleVisit(c), rec); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestHandler_GetAvailability(t *testing.T) {
	h, e := newTestHandler()
	mustCreate(t, h.svc, "2024-03-05", "09:00 - 10:00", "ana")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2024-03-05&agent=ana", nil), rec)
	if err := h.GetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var a Availability
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(a.Available) != 7 || a.Available[0] != "10:00 - 11:00" {
		t.Errorf("unexpected availability: %+v", a)
	}
}

func TestHandler_GetCalendar(t *testing.T) {
	h, e := newTestHandler()
	mustCreate(t, h.svc, "2024-03-05", "09:00 - 10:00", "ana")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?view=week&weekStart=2024-03-07", nil), rec)
	if err := h.GetCalendar(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		State ViewState `json:"state"`
		Grid  Grid      `json:"grid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State.WeekStart != "2024-03-04" {
		t.Errorf("expected normalized week start, got %q", body.State.WeekStart)
	}
	if len(body.Grid.Columns) != 7 || len(body.Grid.Columns[1].Events) != 1 {
		t.Errorf("unexpected grid: %+v", body.Grid)
	}
}

func TestHandler_ListVisits(t *testing.T) {
	h, e := newTestHandler()
	mustCreate(t, h.svc, "2024-03-06", "09:00 - 10:00", "ana")
	mustCreate(t, h.svc, "2024-03-05", "10:00 - 11:00", "luis")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?dateFrom=2024-03-05&agentId=ana", nil), rec)
	if err := h.ListVisits(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page struct {
		Data  []Visit `json:"data"`
		Total int     `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Data[0].AgentID != "ana" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestHandler_UpdateStatusAndDelete(t *testing.T) {
	h, e := newTestHandler()
	v := mustCreate(t, h.svc, "2024-03-05", "09:00 - 10:00", "ana")

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"status":"bogus"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if got := statusOf(t, h.UpdateStatus(c), rec); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if err := h.DeleteVisit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if got := statusOf(t, h.GetVisit(c), rec); got != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", got)
	}
}
