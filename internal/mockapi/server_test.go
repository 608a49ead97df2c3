package mockapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestCreateAndListPresets(t *testing.T) {
	s, srv := newTestServer(t, Options{})

	resp := do(t, srv, http.MethodPost, "/api/presets",
		`{"name":"Evening","devices":[{"type":"light","settings":{"power":true,"brightness":40,"color":"#FFB84D"}}]}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created PresetRecord
	decodeJSON(t, resp, &created)
	if created.ID == 0 || len(created.Devices) != 1 || created.Devices[0].ID == 0 {
		t.Fatalf("created = %+v", created)
	}

	var list []PresetRecord
	decodeJSON(t, do(t, srv, http.MethodGet, "/api/presets", "", nil), &list)
	if len(list) != 1 || list[0].Name != "Evening" {
		t.Fatalf("list = %+v", list)
	}
	if got := s.Hits("GET /api/presets"); got != 1 {
		t.Fatalf("Hits = %d, want 1", got)
	}
}

func TestEnvelope(t *testing.T) {
	s, srv := newTestServer(t, Options{Envelope: true})
	s.Seed([]DeviceRecord{{Type: "fan", Settings: json.RawMessage(`{"power":true,"speed":10}`)}}, nil)

	var body struct {
		Data []DeviceRecord `json:"data"`
	}
	decodeJSON(t, do(t, srv, http.MethodGet, "/api/devices", "", nil), &body)
	if len(body.Data) != 1 || body.Data[0].Type != "fan" {
		t.Fatalf("data = %+v", body.Data)
	}
}

func TestValidationErrors(t *testing.T) {
	_, srv := newTestServer(t, Options{})

	resp := do(t, srv, http.MethodPost, "/api/presets", `{"name":"  ","devices":[{"type":"toaster","settings":{}}]}`, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Errors["name"]) != 1 || len(body.Errors["devices.0.type"]) != 1 {
		t.Fatalf("errors = %+v", body.Errors)
	}
}

func TestRejectCredentials(t *testing.T) {
	_, srv := newTestServer(t, Options{RejectCredentials: true})

	resp := do(t, srv, http.MethodGet, "/api/presets", "", http.Header{"Authorization": {"Bearer x"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodGet, "/api/presets", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDropWrites(t *testing.T) {
	s, srv := newTestServer(t, Options{DropWrites: true})

	resp := do(t, srv, http.MethodPost, "/api/presets", `{"name":"Ghost","devices":[]}`, nil)
	var created PresetRecord
	decodeJSON(t, resp, &created)
	if created.ID == 0 {
		t.Fatalf("created id = 0")
	}
	if got := len(s.Presets()); got != 0 {
		t.Fatalf("stored presets = %d, want 0", got)
	}
}

func TestUpdateAndDeleteDevice(t *testing.T) {
	s, srv := newTestServer(t, Options{})
	s.Seed([]DeviceRecord{{ID: 7, Type: "light", Settings: json.RawMessage(`{"power":false,"brightness":50,"color":"#FFFACD"}`)}}, nil)

	resp := do(t, srv, http.MethodPut, "/api/devices/7", `{"type":"light","settings":{"power":true,"brightness":90,"color":"#FFFACD"}}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(s.Devices()[0].Settings), `"brightness":90`) {
		t.Fatalf("settings = %s", s.Devices()[0].Settings)
	}

	resp = do(t, srv, http.MethodDelete, "/api/devices/7", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || len(s.Devices()) != 0 {
		t.Fatalf("DELETE status = %d, devices = %d", resp.StatusCode, len(s.Devices()))
	}

	resp = do(t, srv, http.MethodPut, "/api/devices/abc", `{}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", resp.StatusCode)
	}
}
