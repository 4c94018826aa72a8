package jobstatus

import "fmt"

// Fragment is a partial status update. Fragments are applied in argument
// order on top of a record; later fragments win.
type Fragment func(*Record)

// Message sets the human readable note.
func Message(msg string) Fragment {
	return func(r *Record) { r.Message = msg }
}

// Messagef sets the note using fmt.Sprintf formatting.
func Messagef(format string, args ...any) Fragment {
	return Message(fmt.Sprintf(format, args...))
}

// WithStatus sets the lifecycle status.
func WithStatus(s Status) Fragment {
	return func(r *Record) { r.Status = s }
}

// WithName sets the display name.
func WithName(name string) Fragment {
	return func(r *Record) { r.Name = name }
}

// WithOptions stores the job arguments.
func WithOptions(opts map[string]any) Fragment {
	return func(r *Record) { r.Options = cloneMap(opts) }
}

// Progress sets the num/total counters used for the completion percentage.
func Progress(num, total float64) Fragment {
	return func(r *Record) {
		r.Num = num
		r.Total = total
	}
}

// Field sets an arbitrary key. Known keys are coerced into their typed
// fields; a value that cannot be coerced is ignored.
func Field(key string, value any) Fragment {
	return func(r *Record) { _ = r.setField(key, value) }
}

// FromRecord overlays every field present on prior. It is how an update
// carries the previous snapshot forward.
func FromRecord(prior *Record) Fragment {
	return func(r *Record) {
		if prior == nil {
			return
		}
		if prior.UUID != "" {
			r.UUID = prior.UUID
		}
		if prior.Time != 0 {
			r.Time = prior.Time
		}
		if prior.Status != "" {
			r.Status = prior.Status
		}
		if prior.Message != "" {
			r.Message = prior.Message
		}
		if prior.Name != "" {
			r.Name = prior.Name
		}
		if prior.Options != nil {
			r.Options = cloneMap(prior.Options)
		}
		if prior.Num != 0 || prior.Total != 0 {
			r.Num = prior.Num
			r.Total = prior.Total
		}
		for k, v := range prior.Extra {
			if r.Extra == nil {
				r.Extra = make(map[string]any, len(prior.Extra))
			}
			r.Extra[k] = v
		}
	}
}
