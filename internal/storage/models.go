package storage

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"axewatch/internal/jsonx"
)

// timestampLayouts are tried in order when reading a persisted record. The
// naive ISO forms come from files written without a zone and are read as
// local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// DifficultyRecord is one best-difficulty milestone.
type DifficultyRecord struct {
	Timestamp time.Time
	Best      float64
	// Valid is false for an entry whose best value could not be read. Such
	// entries render as "N/A" and are written back untouched.
	Valid bool
	// RawTimestamp keeps the persisted text when it did not parse.
	RawTimestamp string

	raw json.RawMessage
}

// NewRecord builds a valid record.
func NewRecord(best float64, ts time.Time) DifficultyRecord {
	return DifficultyRecord{Timestamp: ts.UTC(), Best: best, Valid: true}
}

type recordJSON struct {
	Timestamp string  `json:"timestamp"`
	Best      float64 `json:"best"`
}

type looseRecordJSON struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Best      json.RawMessage `json:"best"`
}

// MarshalJSON writes {"timestamp": ..., "best": ...}; entries read from disk
// that were not understood are written back byte for byte.
func (r DifficultyRecord) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return jsonx.Marshal(recordJSON{
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		Best:      r.Best,
	})
}

// decodeRecord never fails: anything it cannot read yields an invalid record.
func decodeRecord(data json.RawMessage) DifficultyRecord {
	rec := DifficultyRecord{}

	var loose looseRecordJSON
	if err := jsonx.Unmarshal(data, &loose); err != nil {
		rec.raw = append(json.RawMessage(nil), data...)
		return rec
	}

	var ts string
	if len(loose.Timestamp) > 0 && jsonx.Unmarshal(loose.Timestamp, &ts) == nil {
		rec.RawTimestamp = ts
		rec.Timestamp = parseTimestamp(ts)
	}

	best := bytes.TrimSpace(loose.Best)
	if len(best) > 0 && best[0] != '"' {
		if v, err := strconv.ParseFloat(string(best), 64); err == nil {
			rec.Best = v
			rec.Valid = true
		}
	}

	if !rec.Valid || rec.Timestamp.IsZero() {
		rec.raw = append(json.RawMessage(nil), data...)
	}
	return rec
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if layout == time.RFC3339Nano {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
