package jobstatus

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// Record field names as they appear in the stored representation.
const (
	fieldUUID        = "uuid"
	fieldTime        = "time"
	fieldStatus      = "status"
	fieldMessage     = "message"
	fieldName        = "name"
	fieldOptions     = "options"
	fieldNum         = "num"
	fieldTotal       = "total"
	fieldPctComplete = "pct_complete"
)

// Record is a snapshot of a job's status as persisted in the store.
// Every write replaces the whole stored value.
type Record struct {
	UUID    string
	Time    int64 // creation time, epoch seconds
	Status  Status
	Message string
	Name    string
	Options map[string]any
	Num     float64
	Total   float64

	// Extra holds any other keys written by fragments or external writers.
	Extra map[string]any
}

// NewRecord builds a queued record stamped with now and applies frags in
// order.
func NewRecord(uuid string, now time.Time, frags ...Fragment) *Record {
	r := &Record{
		UUID:   uuid,
		Time:   now.Unix(),
		Status: StatusQueued,
	}
	for _, f := range frags {
		if f != nil {
			f(r)
		}
	}
	return r
}

// Merge returns a copy of r with frags applied in order. r is not modified.
func (r *Record) Merge(frags ...Fragment) *Record {
	out := r.Clone()
	for _, f := range frags {
		if f != nil {
			f(out)
		}
	}
	return out
}

// Clone returns a shallow copy of r with its own maps.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Options = cloneMap(r.Options)
	out.Extra = cloneMap(r.Extra)
	return &out
}

// Is reports whether the record is in status s.
func (r *Record) Is(s Status) bool { return r.Status == s }

// Killable reports whether a kill request can still affect the job.
func (r *Record) Killable() bool { return !r.Status.Terminal() }

// CreatedAt returns the creation time, or the zero time when unset.
func (r *Record) CreatedAt() time.Time {
	if r.Time == 0 {
		return time.Time{}
	}
	return time.Unix(r.Time, 0)
}

// PctComplete calculates the completion percentage from the status and the
// num/total counters. It is never stored.
func (r *Record) PctComplete() int {
	switch r.Status {
	case StatusCompleted:
		return 100
	case StatusQueued:
		return 0
	}
	return int(math.Floor(100 * r.Num / math.Max(r.Total, 1)))
}

// View returns the external read projection: the stored fields plus the
// computed pct_complete.
func (r *Record) View() map[string]any {
	m := r.toMap()
	m[fieldPctComplete] = r.PctComplete()
	return m
}

// MarshalJSON encodes the stored form of the record as a flat object.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toMap())
}

// UnmarshalJSON decodes a flat object written by MarshalJSON or by any other
// writer using the same field names.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	dec, err := recordFromMap(m)
	if err != nil {
		return err
	}
	*r = *dec
	return nil
}

func (r *Record) toMap() map[string]any {
	m := make(map[string]any, len(r.Extra)+8)
	for k, v := range r.Extra {
		m[k] = v
	}
	if r.UUID != "" {
		m[fieldUUID] = r.UUID
	}
	m[fieldTime] = r.Time
	m[fieldStatus] = string(r.Status)
	if r.Message != "" {
		m[fieldMessage] = r.Message
	}
	if r.Name != "" {
		m[fieldName] = r.Name
	}
	if r.Options != nil {
		m[fieldOptions] = r.Options
	}
	if r.Num != 0 || r.Total != 0 {
		m[fieldNum] = r.Num
		m[fieldTotal] = r.Total
	}
	return m
}

func recordFromMap(m map[string]any) (*Record, error) {
	r := &Record{}
	for k, v := range m {
		if err := r.setField(k, v); err != nil {
			return nil, err
		}
	}
	if !r.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", r.Status)
	}
	return r, nil
}

// setField assigns a single stored key, coercing the value to the field type.
func (r *Record) setField(key string, v any) error {
	if v == nil {
		return nil
	}
	switch key {
	case fieldUUID:
		r.UUID = cast.ToString(v)
	case fieldTime:
		t, err := cast.ToInt64E(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		r.Time = t
	case fieldStatus:
		r.Status = Status(cast.ToString(v))
	case fieldMessage:
		r.Message = cast.ToString(v)
	case fieldName:
		r.Name = cast.ToString(v)
	case fieldOptions:
		opts, err := cast.ToStringMapE(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		r.Options = opts
	case fieldNum:
		n, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		r.Num = n
	case fieldTotal:
		n, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		r.Total = n
	case fieldPctComplete:
		// derived, dropped on read
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = v
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
