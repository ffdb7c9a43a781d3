package models

import (
	"bytes"
	"encoding/json"
	"sort"
)

// UnknownOperator is used when the provider omits the operator name.
const UnknownOperator = "Unknown"

// Wire keys of the typed record fields.
const (
	keyID        = "id"
	keyOperator  = "travel_name"
	keyAction    = "action_name"
	keyTravel    = "travel_date"
	keySource    = "source"
	keyCreatedAt = "created_at"
)

var typedKeys = []string{keyID, keyOperator, keyAction, keyTravel, keySource, keyCreatedAt}

// RawRecord is one audit item exactly as the remote provider returned it.
type RawRecord map[string]json.RawMessage

// RecordID is the provider's opaque identifier. The provider sends numbers today,
// but strings are accepted too; the original JSON form is kept for round trips.
type RecordID struct {
	key     string
	numeric bool
}

// StringID builds a RecordID that serializes as a JSON string.
func StringID(s string) RecordID { return RecordID{key: s} }

// NumericID builds a RecordID that serializes as a JSON number literal.
// The caller must pass a valid JSON number.
func NumericID(literal string) RecordID { return RecordID{key: literal, numeric: true} }

// String returns the dedup key of the identifier.
func (id RecordID) String() string { return id.key }

// IsZero reports whether the identifier is absent.
func (id RecordID) IsZero() bool { return id.key == "" }

func (id RecordID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.key), nil
	}
	return json.Marshal(id.key)
}

func (id *RecordID) UnmarshalJSON(b []byte) error {
	*id = parseRecordID(b)
	return nil
}

// parseRecordID never fails: anything that is not a string or number keeps its
// compact JSON text as the key so it can still be deduplicated.
func parseRecordID(b []byte) RecordID {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return RecordID{}
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return RecordID{key: s}
		}
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		return RecordID{key: n.String(), numeric: true}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return RecordID{key: string(b)}
	}
	return RecordID{key: buf.String()}
}

// AuditRecord is one normalized audit item. Provider specific fields that have
// no typed counterpart are kept in Extra and written back verbatim.
type AuditRecord struct {
	ID           RecordID
	OperatorName string
	ActionName   string
	TravelDate   string
	Source       string
	CreatedAt    string
	Extra        map[string]json.RawMessage
}

// NormalizeRecord maps a raw provider item onto AuditRecord, substituting
// defaults for missing, null or empty fields.
func NormalizeRecord(raw RawRecord) AuditRecord {
	rec := AuditRecord{
		ID:           parseRecordID(raw[keyID]),
		OperatorName: stringField(raw, keyOperator),
		ActionName:   stringField(raw, keyAction),
		TravelDate:   stringField(raw, keyTravel),
		Source:       stringField(raw, keySource),
		CreatedAt:    stringField(raw, keyCreatedAt),
	}
	if rec.OperatorName == "" {
		rec.OperatorName = UnknownOperator
	}

	for k, v := range raw {
		if isTypedKey(k) {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = append(json.RawMessage(nil), v...)
	}
	return rec
}

// stringField returns the string value of key. Non-string scalars keep their
// JSON literal text.
func stringField(raw RawRecord, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return string(v)
}

func isTypedKey(k string) bool {
	for _, t := range typedKeys {
		if k == t {
			return true
		}
	}
	return false
}

// MarshalJSON writes the typed fields first, then extras in key order.
func (r AuditRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, val any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}

	fields := []struct {
		key string
		val any
	}{
		{keyID, r.ID},
		{keyOperator, r.OperatorName},
		{keyAction, r.ActionName},
		{keyTravel, r.TravelDate},
		{keySource, r.Source},
		{keyCreatedAt, r.CreatedAt},
	}
	for _, f := range fields {
		if err := write(f.key, f.val); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, r.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON applies the same normalization as records fetched live, so
// replaying the log sees exactly what ingestion saw.
func (r *AuditRecord) UnmarshalJSON(b []byte) error {
	var raw RawRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = NormalizeRecord(raw)
	return nil
}
