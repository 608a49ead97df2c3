// Package mockapi is an in-memory implementation of the device and preset
// REST API consumed by the remote store. It backs cmd/homesim-mockapi and the
// remote adapter tests.
package mockapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options toggles the server behaviours the client has to cope with.
type Options struct {
	// Envelope wraps every success payload in {"data": ...}.
	Envelope bool
	// RejectCredentials answers 401 to any request carrying a cookie or an
	// Authorization header.
	RejectCredentials bool
	// DropWrites acknowledges preset writes without storing them.
	DropWrites bool
	// RawPresetDevices stores preset devices as they were posted, without
	// ids, the way a backend with a JSON column does.
	RawPresetDevices bool
	Logger           *slog.Logger
}

// DeviceRecord is a device as the API stores it.
type DeviceRecord struct {
	ID       int64           `json:"id,omitempty"`
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Settings json.RawMessage `json:"settings"`
}

// PresetRecord is a preset as the API stores it.
type PresetRecord struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Devices []DeviceRecord `json:"devices"`
}

// Server holds the API state.
type Server struct {
	mu      sync.Mutex
	opts    Options
	nextID  int64
	devices []DeviceRecord
	presets []PresetRecord
	hits    map[string]int
	logger  *slog.Logger
}

// New returns an empty server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		opts:   opts,
		nextID: 1,
		hits:   make(map[string]int),
		logger: logger.With("component", "mockapi"),
	}
}

// Handler returns the router. Every route lives under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(s.requestLogger)
	r.Use(s.countHits)
	r.Use(s.credentialGate)

	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", s.listDevices)
		r.Post("/devices", s.createDevice)
		r.Put("/devices/{id}", s.updateDevice)
		r.Delete("/devices/{id}", s.deleteDevice)

		r.Get("/presets", s.listPresets)
		r.Post("/presets", s.createPreset)
		r.Get("/presets/{id}", s.getPreset)
		r.Put("/presets/{id}", s.updatePreset)
	})
	return r
}

// Hits returns how many requests reached "METHOD /path".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// SetDropWrites toggles write dropping at runtime.
func (s *Server) SetDropWrites(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.DropWrites = drop
}

// Devices returns a copy of the stored devices.
func (s *Server) Devices() []DeviceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeviceRecord(nil), s.devices...)
}

// Presets returns a copy of the stored presets.
func (s *Server) Presets() []PresetRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PresetRecord, len(s.presets))
	for i, p := range s.presets {
		p.Devices = append([]DeviceRecord(nil), p.Devices...)
		out[i] = p
	}
	return out
}

// Seed stores records verbatim, skipping validation. Records with a zero id
// are assigned one.
func (s *Server) Seed(devices []DeviceRecord, presets []PresetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range devices {
		if d.ID == 0 {
			d.ID = s.allocID()
		}
		s.bumpID(d.ID)
		s.devices = append(s.devices, d)
	}
	for _, p := range presets {
		if p.ID == 0 {
			p.ID = s.allocID()
		}
		s.bumpID(p.ID)
		s.presets = append(s.presets, p)
	}
}

func (s *Server) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) bumpID(id int64) {
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimSuffix(r.URL.Path, "/")
		s.mu.Lock()
		s.hits[key]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) credentialGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.RejectCredentials && (r.Header.Get("Cookie") != "" || r.Header.Get("Authorization") != "") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// corsMiddleware adds permissive CORS headers so a browser client can talk
// to the mock directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validationErrors collects per-field messages the way the API reports them.
type validationErrors map[string][]string

func (v validationErrors) add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v validationErrors) fields() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateDevice(v validationErrors, prefix string, d DeviceRecord) {
	switch d.Type {
	case "light", "fan":
	case "":
		v.add(prefix+"type", fmt.Sprintf("The %stype field is required.", prefix))
	default:
		v.add(prefix+"type", fmt.Sprintf("The selected %stype is invalid.", prefix))
	}
	settings := strings.TrimSpace(string(d.Settings))
	if settings == "" || settings == "null" {
		v.add(prefix+"settings", fmt.Sprintf("The %ssettings field is required.", prefix))
	} else if !strings.HasPrefix(settings, "{") {
		v.add(prefix+"settings", fmt.Sprintf("The %ssettings must be an object.", prefix))
	}
}
