package gohelix

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// ErrMalformedRecord is returned when bytes read from the coordination
// service cannot be parsed as a Record.
var ErrMalformedRecord = errors.New("malformed record")

// Record is the universal value shape stored at every coordination-service
// path relevant to Helix: an identifier plus three typed sub-maps. All three
// sub-maps are always non-nil so that serialization always emits them, even
// when empty -- the controller's merge semantics depend on simpleFields,
// listFields and mapFields all being present.
type Record struct {
	ID           string                       `json:"id"`
	ListFields   map[string][]string          `json:"listFields"`
	MapFields    map[string]map[string]string `json:"mapFields"`
	SimpleFields map[string]string            `json:"simpleFields"`
}

// NewRecord constructs an empty Record identified by id.
func NewRecord(id string) *Record {
	return &Record{
		ID:           id,
		SimpleFields: map[string]string{},
		ListFields:   map[string][]string{},
		MapFields:    map[string]map[string]string{},
	}
}

// NewRecordFromBytes parses a Record previously produced by Marshal. Missing
// sub-maps are tolerated and treated as empty.
func NewRecordFromBytes(data []byte) (*Record, error) {
	if len(data) == 0 {
		return NewRecord(""), nil
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(ErrMalformedRecord, "parse record: %s (raw: %s)", err, spewSnippet(data))
	}

	if r.SimpleFields == nil {
		r.SimpleFields = map[string]string{}
	}
	if r.ListFields == nil {
		r.ListFields = map[string][]string{}
	}
	if r.MapFields == nil {
		r.MapFields = map[string]map[string]string{}
	}

	return &r, nil
}

func spewSnippet(data []byte) string {
	const max = 256
	if len(data) > max {
		data = data[:max]
	}
	return spew.Sdump(string(data))
}

// Marshal serializes the Record to its canonical wire form: pretty-printed
// JSON, two-space indent, with object keys in lexicographic order. Go's
// encoding/json already emits map[string]* keys sorted, and Record's fields
// are declared in sorted key order, so this requires no extra work beyond
// always emitting the three sub-maps.
func (r *Record) Marshal() ([]byte, error) {
	if r.SimpleFields == nil {
		r.SimpleFields = map[string]string{}
	}
	if r.ListFields == nil {
		r.ListFields = map[string][]string{}
	}
	if r.MapFields == nil {
		r.MapFields = map[string]map[string]string{}
	}

	return json.MarshalIndent(r, "", "  ")
}

// String renders the record's canonical form, or an error message if it
// could not be marshaled.
func (r *Record) String() string {
	data, err := r.Marshal()
	if err != nil {
		return fmt.Sprintf("<unmarshalable record %s: %s>", r.ID, err)
	}
	return string(data)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := NewRecord(r.ID)
	for k, v := range r.SimpleFields {
		out.SimpleFields[k] = v
	}
	for k, v := range r.ListFields {
		cp := make([]string, len(v))
		copy(cp, v)
		out.ListFields[k] = cp
	}
	for k, v := range r.MapFields {
		cp := make(map[string]string, len(v))
		for ik, iv := range v {
			cp[ik] = iv
		}
		out.MapFields[k] = cp
	}
	return out
}

// GetSimpleField returns a simple field value, or "" with ok=false if unset.
func (r *Record) GetSimpleField(key string) (string, bool) {
	v, ok := r.SimpleFields[key]
	return v, ok
}

// GetSimpleFieldOrDefault returns a simple field, or def if unset.
func (r *Record) GetSimpleFieldOrDefault(key, def string) string {
	if v, ok := r.SimpleFields[key]; ok {
		return v
	}
	return def
}

// SetSimpleField sets a simple string field.
func (r *Record) SetSimpleField(key, value string) {
	r.SimpleFields[key] = value
}

// SetIntField stringifies an integer into a simple field, mirroring the
// teacher's SetIntField/GetIntField convenience over the otherwise
// string-typed wire format.
func (r *Record) SetIntField(key string, value int) {
	r.SimpleFields[key] = strconv.Itoa(value)
}

// GetIntField parses a simple field as an integer, returning def if unset or
// unparsable.
func (r *Record) GetIntField(key string, def int) int {
	v, ok := r.SimpleFields[key]
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// SetBooleanField stringifies a boolean into a simple field.
func (r *Record) SetBooleanField(key string, value bool) {
	r.SimpleFields[key] = strconv.FormatBool(value)
}

// GetBooleanField parses a simple field as a boolean, returning def if
// unset. A set value reads as true only if it is "true" (case-insensitive);
// any other value reads as false.
func (r *Record) GetBooleanField(key string, def bool) bool {
	v, ok := r.SimpleFields[key]
	if !ok {
		return def
	}
	return strings.EqualFold(v, "true")
}

// SetMapField sets property within the map field named key.
func (r *Record) SetMapField(key, property, value string) {
	m, ok := r.MapFields[key]
	if !ok {
		m = map[string]string{}
		r.MapFields[key] = m
	}
	m[property] = value
}

// RemoveMapField removes the entire map field named key.
func (r *Record) RemoveMapField(key string) {
	delete(r.MapFields, key)
}

// SetListField sets an ordered sequence of strings.
func (r *Record) SetListField(key string, values []string) {
	r.ListFields[key] = values
}
