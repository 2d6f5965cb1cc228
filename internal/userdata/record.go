// Package userdata persists the per-user record (highlights, usage stats
// and progress) and reconciles it on load.
package userdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrNotFound indicates that no record exists for the user.
	ErrNotFound = errors.New("user record not found")

	// ErrWrite indicates that a record could not be persisted.
	ErrWrite = errors.New("write user record")

	// ErrInvalidUserID indicates a user id that cannot name a record.
	ErrInvalidUserID = errors.New("invalid user id")

	errCorrupt = errors.New("corrupt user record")
)

// Record is the persisted per-user state.
type Record struct {
	UserID     string            `json:"userId"`
	Highlights map[string]string `json:"highlights"`
	UsageStats map[string]any    `json:"usageStats"`
	// Progress is the raw persisted progress aggregate, nil when absent.
	Progress    json.RawMessage `json:"progress"`
	LastUpdated string          `json:"lastUpdated"`
}

// NewRecord returns the default record for userID.
func NewRecord(userID string, now time.Time) *Record {
	return &Record{
		UserID:      userID,
		Highlights:  map[string]string{},
		UsageStats:  map[string]any{},
		LastUpdated: now.UTC().Format(time.RFC3339),
	}
}

func (r *Record) encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// decodeRecord parses a persisted record, replacing every field of the
// wrong JSON type with its default. It fails only when data is empty or
// not a JSON object.
func decodeRecord(data []byte, now time.Time, logger *slog.Logger) (*Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errCorrupt
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, errCorrupt
	}

	r := NewRecord("", now)
	if v, ok := top["userId"]; ok {
		_ = json.Unmarshal(v, &r.UserID)
	}
	if v, ok := top["highlights"]; ok {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(v, &raw); err == nil {
			for qid, h := range raw {
				var s string
				if err := json.Unmarshal(h, &s); err != nil {
					logger.Warn("dropping non-string highlight", slog.String("question", qid))
					continue
				}
				r.Highlights[qid] = s
			}
		} else {
			logger.Warn("highlights is not an object, using defaults")
		}
	}
	if v, ok := top["usageStats"]; ok {
		var m map[string]any
		if err := json.Unmarshal(v, &m); err == nil && m != nil {
			r.UsageStats = m
		} else {
			logger.Warn("usageStats is not an object, using defaults")
		}
	}
	if v, ok := top["progress"]; ok {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '{' {
			r.Progress = v
		} else if !bytes.Equal(v, []byte("null")) {
			logger.Warn("progress is not an object, discarding")
		}
	}
	if v, ok := top["lastUpdated"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			r.LastUpdated = s
		}
	}
	return r, nil
}
