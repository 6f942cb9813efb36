package extraction

import "time"

// Document is one source item handed over by the retrieval pipeline,
// already decoded to plain text.
type Document struct {
	ID       string // identity in the source, e.g. message sequence or file name
	Name     string // attachment or file name
	Text     string
	Received time.Time
}

// Value is the extracted state of one field.
type Value struct {
	Status Status
	Raw    string // numeral token as found, or the declared default
	Line   int    // matched line index, -1 when not found
	Score  int
}

// Record is the flat result of extracting one document. It is not
// modified after the extractor returns it.
type Record struct {
	Source  string
	Index   int
	Period  *Period // pay period found in the document text, if any
	Err     error   // set when extraction failed as a whole
	keys    []string
	values  []Value
	missing []string
}

func newRecord(schema Schema, doc Document, index int) *Record {
	return &Record{
		Source: doc.ID,
		Index:  index,
		keys:   schema.Keys(),
		values: make([]Value, schema.Len()),
	}
}

// FailedRecord returns a record whose every field carries StatusFailed.
func FailedRecord(schema Schema, doc Document, index int, err error) Record {
	rec := newRecord(schema, doc, index)
	for i := range rec.values {
		rec.values[i] = Value{Status: StatusFailed, Line: -1}
	}
	rec.Err = err
	return *rec
}

// Keys returns the field keys in schema order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Value returns the extracted value for key.
func (r Record) Value(key string) (Value, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Values returns field values aligned with Keys.
func (r Record) Values() []Value {
	out := make([]Value, len(r.values))
	copy(out, r.values)
	return out
}

// Failed reports whether extraction of the document failed as a whole.
func (r Record) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, v := range r.values {
		if v.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Salient reports whether at least one field was located in the document.
func (r Record) Salient() bool {
	for _, v := range r.values {
		if v.Status == StatusFound {
			return true
		}
	}
	return false
}

// Found returns how many fields were located.
func (r Record) Found() int {
	n := 0
	for _, v := range r.values {
		if v.Status == StatusFound {
			n++
		}
	}
	return n
}

// Missing returns the required keys that were not located.
func (r Record) Missing() []string {
	out := make([]string, len(r.missing))
	copy(out, r.missing)
	return out
}

// Incomplete reports whether a required field is missing.
func (r Record) Incomplete() bool {
	return len(r.missing) > 0
}

// NewRecord builds a record from values located elsewhere, keyed by field
// key. Keys missing from raw take the field default as not found.
func NewRecord(schema Schema, source string, raw map[string]string, period *Period) Record {
	rec := newRecord(schema, Document{ID: source}, 0)
	for i, f := range schema.fields {
		if v, ok := raw[f.Key]; ok {
			rec.values[i] = Value{Status: StatusFound, Raw: v, Line: -1, Score: 100}
			continue
		}
		rec.values[i] = Value{Status: StatusNotFound, Raw: f.Default.String(), Line: -1}
		if f.Required {
			rec.missing = append(rec.missing, f.Key)
		}
	}
	rec.Period = period
	return *rec
}
