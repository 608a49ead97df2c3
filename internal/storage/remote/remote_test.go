package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/five82/homesim/internal/device"
	"github.com/five82/homesim/internal/mockapi"
	"github.com/five82/homesim/internal/storage"
)

func newMockStore(t *testing.T, api mockapi.Options, opts Options) (*mockapi.Server, *Store) {
	t.Helper()
	mock := mockapi.New(api)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL + "/api/"
	opts.RequestsPerSecond = -1
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return mock, s
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func eveningPreset() device.Preset {
	return device.NewPreset("Evening", []device.Device{
		{ID: "light-1", Type: device.TypeLight, Settings: device.LightSettings{Power: true, Brightness: 35, Color: "#FFB84D"}},
		{ID: "fan-2", Type: device.TypeFan, Settings: device.FanSettings{Power: true, Speed: 80}},
	}, time.UnixMilli(1700000000000))
}

func TestParseBaseURL(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultBaseURL {
		t.Fatalf("url = %q, want %q", u.String(), DefaultBaseURL)
	}
	u, err = parseBaseURL("example.com:9000/v1?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != "http://example.com:9000/v1/" {
		t.Fatalf("url = %q", u.String())
	}
}

func TestStrategies(t *testing.T) {
	s, err := New(Options{UseCredentials: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	got := s.Strategies()
	if len(got) != 2 || got[0] != CredentialsInclude || got[1] != CredentialsOmit {
		t.Fatalf("Strategies = %v, want [include omit]", got)
	}
}

func TestUnwrap(t *testing.T) {
	cases := map[string]string{
		`{"data":[1,2]}`:             `[1,2]`,
		`{"data":null,"id":3}`:       `{"data":null,"id":3}`,
		`{"id":3}`:                   `{"id":3}`,
		`[{"id":1}]`:                 `[{"id":1}]`,
		`{"success":true,"data":{}}`: `{}`,
	}
	for in, want := range cases {
		if got := string(unwrap([]byte(in))); got != want {
			t.Fatalf("unwrap(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestLoad_FirstAttemptSuccessDoesNotFallBack(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{}, Options{UseCredentials: true, SessionToken: "tok"})
	mock.Seed(nil, []mockapi.PresetRecord{{ID: 4, Name: "Night"}})

	presets, err := s.LoadPresets(testContext(t))
	if err != nil {
		t.Fatalf("LoadPresets returned error: %v", err)
	}
	if len(presets) != 1 || presets[0].ID != "preset-4" || presets[0].ServerID != 4 {
		t.Fatalf("presets = %+v", presets)
	}
	if got := mock.Hits("GET /api/presets"); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}
}

func TestLoad_FallsBackWithoutCredentials(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{RejectCredentials: true, Envelope: true}, Options{UseCredentials: true, SessionToken: "tok"})
	mock.Seed([]mockapi.DeviceRecord{
		{ID: 9, Type: "fan", Settings: json.RawMessage(`{"power":true,"speed":30}`)},
	}, nil)

	devices, err := s.LoadDevices(testContext(t))
	if err != nil {
		t.Fatalf("LoadDevices returned error: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "fan-9" || devices[0].ServerID != 9 {
		t.Fatalf("devices = %+v", devices)
	}
	if got := mock.Hits("GET /api/devices"); got != 2 {
		t.Fatalf("hits = %d, want 2", got)
	}
}

func TestLoad_AllAttemptsFailAggregates(t *testing.T) {
	s, err := New(Options{BaseURL: "http://127.0.0.1:1/api/", RequestsPerSecond: -1, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = s.LoadPresets(testContext(t))
	var fallback *storage.FallbackError
	if !errors.As(err, &fallback) {
		t.Fatalf("err = %v, want FallbackError", err)
	}
	if len(fallback.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(fallback.Attempts))
	}
	if storage.Classify(err) != storage.KindTransport {
		t.Fatalf("Classify = %v, want transport", storage.Classify(err))
	}
}

func TestLoad_SkipsMalformedRecords(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{}, Options{})
	mock.Seed(
		[]mockapi.DeviceRecord{
			{ID: 1, Type: "light", Settings: json.RawMessage(`{"power":true,"brightness":20,"color":"#FFB6C1","speed":9}`)},
			{ID: 2, Type: "toaster", Settings: json.RawMessage(`{}`)},
			{ID: 3, Type: "fan", Settings: json.RawMessage(`"fast"`)},
		},
		[]mockapi.PresetRecord{
			{ID: 10, Name: "Good", Devices: []mockapi.DeviceRecord{{ID: 11, Type: "fan", Settings: json.RawMessage(`{"power":false,"speed":5}`)}}},
			{ID: 12, Name: "Bad", Devices: []mockapi.DeviceRecord{{ID: 13, Type: "lamp", Settings: json.RawMessage(`{}`)}}},
		},
	)
	ctx := testContext(t)

	devices, err := s.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices returned error: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "light-1" {
		t.Fatalf("devices = %+v", devices)
	}
	light := devices[0].Settings.(device.LightSettings)
	if light.Color != "#FFB6C1" || light.Brightness != 20 {
		t.Fatalf("light = %+v", light)
	}

	presets, err := s.LoadPresets(ctx)
	if err != nil {
		t.Fatalf("LoadPresets returned error: %v", err)
	}
	if len(presets) != 1 || presets[0].Name != "Good" || presets[0].Devices[0].ID != "fan-11" {
		t.Fatalf("presets = %+v", presets)
	}
}

func TestLoadPresets_AcceptsMembersWithoutIDs(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{}, Options{})
	mock.Seed(nil, []mockapi.PresetRecord{
		{ID: 7, Name: "Reading", Devices: []mockapi.DeviceRecord{
			{Type: "light", Settings: json.RawMessage(`{"power":true,"brightness":70,"color":"#FFFACD"}`)},
			{Type: "fan", Settings: json.RawMessage(`{"power":false,"speed":30}`)},
		}},
	})

	presets, err := s.LoadPresets(testContext(t))
	if err != nil {
		t.Fatalf("LoadPresets returned error: %v", err)
	}
	if len(presets) != 1 || len(presets[0].Devices) != 2 {
		t.Fatalf("presets = %+v, want one preset with two devices", presets)
	}
	members := presets[0].Devices
	if members[0].ID != "light-p7-1" || members[1].ID != "fan-p7-2" {
		t.Fatalf("member ids = %q, %q", members[0].ID, members[1].ID)
	}
	for _, d := range members {
		if d.HasServerID() {
			t.Fatalf("member %s has server id %d, want none", d.ID, d.ServerID)
		}
	}
}

func TestDecodeDevice_RequiresID(t *testing.T) {
	_, err := decodeDevice(json.RawMessage(`{"type":"fan","settings":{"power":true,"speed":10}}`))
	if err == nil {
		t.Fatalf("decodeDevice accepted a top-level record without an id")
	}
}

func TestSavePreset_ConfirmedWhenMembersStoredRaw(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{RawPresetDevices: true}, Options{})
	ctx := testContext(t)

	saved, err := s.SavePreset(ctx, eveningPreset())
	if err != nil {
		t.Fatalf("SavePreset returned error: %v", err)
	}
	if !saved.HasServerID() || len(saved.Devices) != 2 {
		t.Fatalf("saved = %+v", saved)
	}
	if mock.Presets()[0].Devices[0].ID != 0 {
		t.Fatalf("server stored member id %d, want none", mock.Presets()[0].Devices[0].ID)
	}

	saved.Name = "Late evening"
	if _, err := s.UpdatePreset(ctx, saved.ID, saved); err != nil {
		t.Fatalf("UpdatePreset returned error: %v", err)
	}
}

func TestSavePreset_Confirmed(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{Envelope: true}, Options{})

	saved, err := s.SavePreset(testContext(t), eveningPreset())
	if err != nil {
		t.Fatalf("SavePreset returned error: %v", err)
	}
	if !saved.HasServerID() || saved.ID != presetID(saved.ServerID) {
		t.Fatalf("saved = %+v", saved)
	}
	if len(saved.Devices) != 2 || !saved.Devices[0].HasServerID() {
		t.Fatalf("saved devices = %+v", saved.Devices)
	}
	if len(mock.Presets()) != 1 {
		t.Fatalf("server presets = %d, want 1", len(mock.Presets()))
	}
}

func TestSavePreset_ValidationError(t *testing.T) {
	_, s := newMockStore(t, mockapi.Options{}, Options{})
	p := eveningPreset()
	p.Name = ""

	_, err := s.SavePreset(testContext(t), p)
	if storage.Classify(err) != storage.KindValidation {
		t.Fatalf("Classify = %v (%v), want validation", storage.Classify(err), err)
	}
	if msg := storage.Message(err); !strings.Contains(msg, "required") {
		t.Fatalf("Message = %q, want it to mention required", msg)
	}
}

func TestSavePreset_NotPersisted(t *testing.T) {
	_, s := newMockStore(t, mockapi.Options{DropWrites: true}, Options{})

	saved, err := s.SavePreset(testContext(t), eveningPreset())
	var notPersisted *storage.NotPersistedError
	if !errors.As(err, &notPersisted) {
		t.Fatalf("err = %v, want NotPersistedError", err)
	}
	if notPersisted.ServerID == 0 || saved.ServerID != notPersisted.ServerID {
		t.Fatalf("saved = %+v, err = %+v", saved, notPersisted)
	}
	if !strings.Contains(storage.Message(err), "did not persist") {
		t.Fatalf("Message = %q", storage.Message(err))
	}
}

func TestSavePreset_UnparseableResponseIsEmptySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("<html>created</html>"))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(srv.Close)
	s, err := New(Options{BaseURL: srv.URL + "/api", RequestsPerSecond: -1})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	p := eveningPreset()
	saved, err := s.SavePreset(testContext(t), p)
	var notPersisted *storage.NotPersistedError
	if !errors.As(err, &notPersisted) {
		t.Fatalf("err = %v, want NotPersistedError", err)
	}
	if notPersisted.ServerID != 0 || saved.ID != p.ID {
		t.Fatalf("saved = %+v, err = %+v", saved, notPersisted)
	}
}

func TestUpdatePreset(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{}, Options{})
	ctx := testContext(t)
	saved, err := s.SavePreset(ctx, eveningPreset())
	if err != nil {
		t.Fatalf("SavePreset returned error: %v", err)
	}

	saved.Devices = saved.Devices[:1]
	updated, err := s.UpdatePreset(ctx, saved.ID, saved)
	if err != nil {
		t.Fatalf("UpdatePreset returned error: %v", err)
	}
	if updated.ServerID != saved.ServerID || len(updated.Devices) != 1 {
		t.Fatalf("updated = %+v", updated)
	}
	if got := mock.Hits("PUT /api/presets/" + strings.TrimPrefix(saved.ID, "preset-")); got != 1 {
		t.Fatalf("PUT hits = %d, want 1", got)
	}

	_, err = s.UpdatePreset(ctx, "preset-1700000000000", eveningPreset())
	if !errors.Is(err, storage.ErrNotLinked) {
		t.Fatalf("err = %v, want ErrNotLinked", err)
	}
}

func TestUpdatePreset_UnparseableResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	s, err := New(Options{BaseURL: srv.URL + "/api/", RequestsPerSecond: -1})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	p := eveningPreset()
	p.ServerID = 5
	_, err = s.UpdatePreset(testContext(t), p.ID, p)
	if err == nil {
		t.Fatalf("UpdatePreset returned nil error")
	}
	var notPersisted *storage.NotPersistedError
	if errors.As(err, &notPersisted) {
		t.Fatalf("err = %v, want a hard failure", err)
	}
}

func TestSavePresets_CollectsWarnings(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{}, Options{})
	ctx := testContext(t)

	mock.SetDropWrites(true)
	out, err := s.SavePresets(ctx, []device.Preset{eveningPreset(), eveningPreset()})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if storage.Classify(err) != storage.KindNotPersisted {
		t.Fatalf("Classify = %v, want not-persisted", storage.Classify(err))
	}
}

func TestSaveDevices_CreatesThenUpdates(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{Envelope: true}, Options{})
	ctx := testContext(t)
	devices := []device.Device{
		{ID: "light-1", Type: device.TypeLight, Settings: device.DefaultSettings(device.TypeLight)},
	}

	saved, err := s.SaveDevices(ctx, devices)
	if err != nil {
		t.Fatalf("SaveDevices returned error: %v", err)
	}
	if saved[0].ID != "light-1" || !saved[0].HasServerID() {
		t.Fatalf("saved = %+v", saved)
	}

	saved[0].Settings = device.LightSettings{Power: true, Brightness: 100, Color: "#E0F7FF"}
	if _, err := s.SaveDevices(ctx, saved); err != nil {
		t.Fatalf("SaveDevices returned error: %v", err)
	}
	if got := mock.Hits("POST /api/devices"); got != 1 {
		t.Fatalf("POST hits = %d, want 1", got)
	}
	if len(mock.Devices()) != 1 || !strings.Contains(string(mock.Devices()[0].Settings), `"brightness":100`) {
		t.Fatalf("server devices = %+v", mock.Devices())
	}

	if err := s.DeleteDevice(ctx, saved[0]); err != nil {
		t.Fatalf("DeleteDevice returned error: %v", err)
	}
	if len(mock.Devices()) != 0 {
		t.Fatalf("server devices = %d, want 0", len(mock.Devices()))
	}
}

func TestUpdateDevice_EmptyResponseSucceeds(t *testing.T) {
	var puts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts++
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	s, err := New(Options{BaseURL: srv.URL + "/api/", RequestsPerSecond: -1})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	d := device.Device{ID: "light-3", ServerID: 3, Type: device.TypeLight, Settings: device.DefaultSettings(device.TypeLight)}
	saved, err := s.SaveDevices(testContext(t), []device.Device{d})
	if err != nil {
		t.Fatalf("SaveDevices returned error: %v", err)
	}
	if puts != 1 || saved[0].ServerID != 3 {
		t.Fatalf("puts = %d, saved = %+v", puts, saved)
	}
}

func TestCall_CancelledContextStops(t *testing.T) {
	mock, s := newMockStore(t, mockapi.Options{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LoadDevices(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := mock.Hits("GET /api/devices"); got != 0 {
		t.Fatalf("hits = %d, want 0", got)
	}
}

func TestSessionTokenSentOnlyWithCredentials(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, _ := r.Cookie(SessionCookie)
		value := ""
		if cookie != nil {
			value = cookie.Value
		}
		seen = append(seen, r.Header.Get("Authorization")+"|"+value)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	t.Cleanup(srv.Close)
	s, err := New(Options{BaseURL: srv.URL + "/api/", UseCredentials: true, SessionToken: "secret", RequestsPerSecond: -1})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = s.LoadDevices(testContext(t))
	if got := storage.Message(err); got != "load devices failed: 500 boom" {
		t.Fatalf("Message = %q", got)
	}
	if len(seen) != 2 || seen[0] != "Bearer secret|secret" || seen[1] != "|" {
		t.Fatalf("seen = %q", seen)
	}
}
