package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

var errBadID = errors.New("invalid id")

type devicePayload struct {
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Settings json.RawMessage `json:"settings"`
}

type presetPayload struct {
	Name    string          `json:"name"`
	Devices []devicePayload `json:"devices"`
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.Devices())
}

func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	var req devicePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rec := DeviceRecord{Type: req.Type, Name: req.Name, Settings: req.Settings}
	v := validationErrors{}
	validateDevice(v, "", rec)
	if len(v) > 0 {
		writeValidation(w, v)
		return
	}

	s.mu.Lock()
	rec.ID = s.allocID()
	s.devices = append(s.devices, rec)
	s.mu.Unlock()
	s.respond(w, http.StatusCreated, rec)
}

func (s *Server) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var req devicePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rec := DeviceRecord{ID: id, Type: req.Type, Name: req.Name, Settings: req.Settings}
	v := validationErrors{}
	validateDevice(v, "", rec)
	if len(v) > 0 {
		writeValidation(w, v)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		if s.devices[i].ID == id {
			s.devices[i] = rec
			s.respondLocked(w, http.StatusOK, rec)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, fmt.Sprintf("device %d not found", id))
}

func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		if s.devices[i].ID == id {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, fmt.Sprintf("device %d not found", id))
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.Presets())
}

func (s *Server) getPreset(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, p := range s.Presets() {
		if p.ID == id {
			s.respond(w, http.StatusOK, p)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, fmt.Sprintf("preset %d not found", id))
}

func (s *Server) createPreset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePreset(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.buildPresetLocked(0, req)
	if !s.opts.DropWrites {
		s.presets = append(s.presets, rec)
	}
	s.respondLocked(w, http.StatusCreated, rec)
}

func (s *Server) updatePreset(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	req, ok := decodePreset(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.presets {
		if s.presets[i].ID != id {
			continue
		}
		rec := s.buildPresetLocked(id, req)
		if !s.opts.DropWrites {
			s.presets[i] = rec
		}
		s.respondLocked(w, http.StatusOK, rec)
		return
	}
	writeMessage(w, http.StatusNotFound, fmt.Sprintf("preset %d not found", id))
}

func decodePreset(w http.ResponseWriter, r *http.Request) (presetPayload, bool) {
	var req presetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}
	v := validationErrors{}
	if strings.TrimSpace(req.Name) == "" {
		v.add("name", "The name field is required.")
	}
	for i, d := range req.Devices {
		validateDevice(v, fmt.Sprintf("devices.%d.", i), DeviceRecord{Type: d.Type, Settings: d.Settings})
	}
	if len(v) > 0 {
		writeValidation(w, v)
		return req, false
	}
	return req, true
}

// buildPresetLocked assigns ids to the preset (unless updating) and, unless
// RawPresetDevices is set, to each of its devices.
func (s *Server) buildPresetLocked(id int64, req presetPayload) PresetRecord {
	if id == 0 {
		id = s.allocID()
	}
	rec := PresetRecord{ID: id, Name: strings.TrimSpace(req.Name), Devices: make([]DeviceRecord, 0, len(req.Devices))}
	for _, d := range req.Devices {
		member := DeviceRecord{Type: d.Type, Name: d.Name, Settings: d.Settings}
		if !s.opts.RawPresetDevices {
			member.ID = s.allocID()
		}
		rec.Devices = append(rec.Devices, member)
	}
	return rec
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respondLocked(w, status, v)
}

func (s *Server) respondLocked(w http.ResponseWriter, status int, v any) {
	if s.opts.Envelope {
		v = map[string]any{"success": true, "data": v}
	}
	writeJSON(w, status, v)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeValidation(w http.ResponseWriter, v validationErrors) {
	errs := make(map[string][]string, len(v))
	for _, k := range v.fields() {
		errs[k] = v[k]
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  errs,
	})
}

// intParam reads an integer path parameter by name.
func intParam(r *http.Request, name string) (int64, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s", errBadID, chi.URLParam(r, name))
	}
	return n, nil
}
