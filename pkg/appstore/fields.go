package appstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	// Receipt dates carry IANA zone names such as America/Los_Angeles.
	_ "time/tzdata"
)

// attributes is one decoded JSON object from the verification reply.
type attributes map[string]any

// has reports whether key is present with a non-null value.
func (a attributes) has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// str returns the value at key rendered as a string. Numbers keep their
// literal JSON form so identifiers such as adam_id survive unchanged.
func (a attributes) str(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func (a attributes) int64Ptr(key string) *int64 {
	if !a.has(key) {
		return nil
	}
	n, err := parseInt(a[key])
	if err != nil {
		return nil
	}
	return &n
}

func (a attributes) intPtr(key string) *int {
	n := a.int64Ptr(key)
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

func (a attributes) boolPtr(key string) *bool {
	if !a.has(key) {
		return nil
	}
	b, ok := parseBool(a[key])
	if !ok {
		return nil
	}
	return &b
}

// timestamp resolves key to a point in time. The "<key>_ms" companion wins
// when present; otherwise a purely numeric value at key is read as
// milliseconds since the epoch, and anything else as a receipt date string.
func (a attributes) timestamp(key string) *time.Time {
	if a.has(key + "_ms") {
		if ms, err := parseInt(a[key+"_ms"]); err == nil {
			t := time.UnixMilli(ms).UTC()
			return &t
		}
	}
	if !a.has(key) {
		return nil
	}
	if ms, err := parseInt(a[key]); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	t, err := parseDate(a.str(key))
	if err != nil {
		return nil
	}
	return &t
}

// objects returns the JSON objects stored at key. A single object and an
// array of objects are both accepted; non-object array entries are skipped.
func (a attributes) objects(key string) []attributes {
	switch v := a[key].(type) {
	case map[string]any:
		return []attributes{v}
	case []any:
		out := make([]attributes, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func parseInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return strconv.ParseInt(t.String(), 10, 64)
	case float64:
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

func parseBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	case json.Number:
		switch t.String() {
		case "1":
			return true, true
		case "0":
			return false, true
		}
	}
	return false, false
}

const receiptDateLayout = "2006-01-02 15:04:05"

// parseDate reads the "2014-05-28 14:47:53 Etc/GMT" shape used by the
// verifyReceipt API, falling back to RFC 3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if i := strings.LastIndexByte(s, ' '); i > 0 && strings.Count(s, " ") == 2 {
		loc, err := time.LoadLocation(s[i+1:])
		if err == nil {
			return time.ParseInLocation(receiptDateLayout, s[:i], loc)
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(receiptDateLayout, s)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(http.TimeFormat)
}
