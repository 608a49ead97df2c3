// Package remote implements storage.Store against the homesim REST API.
//
// Every operation is attempted with an ordered list of credential modes: the
// configured one (include or omit) and then omit. The first 2xx response
// wins; when all attempts fail the caller receives a *storage.FallbackError
// carrying each attempt's error. Success payloads may be wrapped in a
// {"data": ...} envelope, and 422 responses become *storage.ValidationError.
//
// Server ids are remapped to client ids ("light-12", "preset-4") on load.
// Preset writes are confirmed by reloading the preset list; a write the
// reload cannot find is reported as *storage.NotPersistedError alongside the
// best-known record.
package remote
