package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/config"
	"weekcal/internal/ics"
	"weekcal/internal/model"
)

type fakeSource struct {
	body    []byte
	events  model.EventList
	err     error
	lastRef time.Time
}

func (f *fakeSource) Body(context.Context) ([]byte, error) {
	return f.body, f.err
}

func (f *fakeSource) Events(_ context.Context, ref time.Time) (model.EventList, error) {
	f.lastRef = ref
	return f.events, f.err
}

func sampleEvents() model.EventList {
	return model.EventList{model.NewEvent(model.EventInput{
		Title: "Team standup meeting today",
		Start: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 10, 9, 15, 0, 0, time.UTC),
	})}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEvents(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := NewServer(nil, &fakeSource{}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestEvents_GET(t *testing.T) {
	src := &fakeSource{events: sampleEvents()}
	h := NewServer(nil, src).Handler()

	rec := do(t, h, http.MethodGet, "/api/events?current_time=2024-06-12T15:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.True(t, time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC).Equal(src.lastRef))

	var resp struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "TEAM STANDUP MEETING", resp.Events[0]["title"])
	assert.Equal(t, "2024-06-10T09:00:00+00:00", resp.Events[0]["start"])
	assert.Nil(t, resp.Events[0]["recurrence"])
	assert.NotContains(t, rec.Body.String(), `"error"`)
}

func TestEvents_POST(t *testing.T) {
	src := &fakeSource{events: sampleEvents()}
	h := NewServer(nil, src).Handler()

	rec := do(t, h, http.MethodPost, "/api/events", `{"current_time":"2024-06-12 17:00:00+02:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC).Equal(src.lastRef))
}

func TestEvents_DefaultsToNow(t *testing.T) {
	for name, body := range map[string]string{"null": `{"current_time":null}`, "empty object": `{}`} {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{}
			h := NewServer(nil, src).Handler()

			rec := do(t, h, http.MethodPost, "/api/events", body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.WithinDuration(t, time.Now(), src.lastRef, 5*time.Second)
			assert.JSONEq(t, `[]`, string(decodeEvents(t, rec)["events"]))
		})
	}

	src := &fakeSource{}
	rec := do(t, NewServer(nil, src).Handler(), http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.WithinDuration(t, time.Now(), src.lastRef, 5*time.Second)
}

func TestEvents_BadRequest(t *testing.T) {
	h := NewServer(nil, &fakeSource{}).Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "bad query time", method: http.MethodGet, target: "/api/events?current_time=next-week"},
		{name: "bad body time", method: http.MethodPost, target: "/api/events", body: `{"current_time":"31/12/2024"}`},
		{name: "malformed json", method: http.MethodPost, target: "/api/events", body: `{"current_time":`},
		{name: "wrong type", method: http.MethodPost, target: "/api/events", body: `{"current_time":42}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.target, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			out := decodeEvents(t, rec)
			assert.Equal(t, "null", string(out["events"]))
			assert.NotEmpty(t, string(out["error"]))
		})
	}
}

func TestEvents_UpstreamFailures(t *testing.T) {
	for name, err := range map[string]error{
		"transport": &ics.TransportError{URL: "https://example.com/cal.ics", StatusCode: 502, Err: errors.New("bad gateway")},
		"parse":     &ics.ParseError{Err: errors.New("missing BEGIN:VCALENDAR")},
	} {
		t.Run(name, func(t *testing.T) {
			h := NewServer(nil, &fakeSource{err: err}).Handler()

			rec := do(t, h, http.MethodGet, "/api/events", "")
			require.Equal(t, http.StatusInternalServerError, rec.Code)

			out := decodeEvents(t, rec)
			assert.Equal(t, "null", string(out["events"]))
			assert.NotEmpty(t, string(out["error"]))
		})
	}
}

func TestEvents_MethodNotAllowed(t *testing.T) {
	h := NewServer(nil, &fakeSource{}).Handler()
	rec := do(t, h, http.MethodDelete, "/api/events", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCalendarPassthrough(t *testing.T) {
	body := []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n")
	h := NewServer(nil, &fakeSource{body: body}).Handler()

	rec := do(t, h, http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="calendar.ics"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, body, rec.Body.Bytes())
}

func TestCalendarPassthrough_Failure(t *testing.T) {
	h := NewServer(nil, &fakeSource{err: &ics.TransportError{URL: "x", Err: errors.New("dial")}}).Handler()

	rec := do(t, h, http.MethodGet, "/calendar.ics", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := &config.Config{BasicAuth: &config.BasicAuthConfig{Username: "admin", Password: "pw"}}
	h := NewServer(cfg, &fakeSource{events: sampleEvents()}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := NewServer(nil, &fakeSource{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRecoverPanics(t *testing.T) {
	h := logRequests(recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := do(t, h, http.MethodGet, "/anything", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
