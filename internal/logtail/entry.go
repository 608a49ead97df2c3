package logtail

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Attr is one key/value pair of a record beyond time, level and message.
type Attr struct {
	Key   string
	Value string
}

// Entry is a parsed log record.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs []Attr
}

// Structured reports whether the line parsed as a slog record.
func (e Entry) Structured() bool {
	return e.Level != ""
}

// Attr returns the value of key, if present.
func (e Entry) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Parse decodes one slog text or JSON line.
func Parse(line string) Entry {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		if e, ok := parseJSON(trimmed); ok {
			return e
		}
	}
	if e, ok := parseText(trimmed); ok {
		return e
	}
	return Entry{Msg: line}
}

func parseJSON(line string) (Entry, bool) {
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return Entry{}, false
	}
	level, _ := rec["level"].(string)
	if level == "" {
		return Entry{}, false
	}
	e := Entry{Level: level}
	e.Msg, _ = rec["msg"].(string)
	if ts, ok := rec["time"].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case "time", "level", "msg":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.Attrs = append(e.Attrs, Attr{Key: k, Value: jsonValue(rec[k])})
	}
	return e, true
}

func jsonValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func parseText(line string) (Entry, bool) {
	pairs, ok := splitPairs(line)
	if !ok {
		return Entry{}, false
	}
	var e Entry
	for _, p := range pairs {
		switch p.Key {
		case "time":
			e.Time, _ = time.Parse(time.RFC3339Nano, p.Value)
		case "level":
			e.Level = p.Value
		case "msg":
			e.Msg = p.Value
		default:
			e.Attrs = append(e.Attrs, p)
		}
	}
	if e.Level == "" {
		return Entry{}, false
	}
	return e, true
}

// splitPairs tokenizes key=value pairs, where a value is either bare or a
// Go-quoted string.
func splitPairs(line string) ([]Attr, bool) {
	var pairs []Attr
	rest := line
	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			return pairs, len(pairs) > 0
		}
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || strings.ContainsAny(rest[:eq], " \"") {
			return nil, false
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, false
			}
			value, err = strconv.Unquote(quoted)
			if err != nil {
				return nil, false
			}
			rest = rest[len(quoted):]
		} else {
			end := strings.IndexByte(rest, ' ')
			if end < 0 {
				end = len(rest)
			}
			value = rest[:end]
			rest = rest[end:]
		}
		pairs = append(pairs, Attr{Key: key, Value: value})
	}
}
