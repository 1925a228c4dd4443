package etl

import "restaurants/internal/domain"

// Outcome is the per-record result of a derivation: a value, or absent
// together with the reason.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Resolved wraps a successfully derived value.
func Resolved[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Absent records why no value could be derived.
func Absent[T any](reason error) Outcome[T] {
	return Outcome[T]{Err: reason}
}

// OK reports whether the outcome carries a value.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// RecordFailure describes one non-fatal per-record error.
type RecordFailure struct {
	Stage Stage  `json:"stage"`
	Row   int    `json:"row"`
	Query string `json:"query,omitempty"`
	Err   error  `json:"-"`
}

// Reason returns the error text.
func (f RecordFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// ToDomain converts failures into their persisted form.
func ToDomain(failures []RecordFailure) []domain.RecordFailure {
	out := make([]domain.RecordFailure, 0, len(failures))
	for _, f := range failures {
		out = append(out, domain.RecordFailure{
			Stage:  string(f.Stage),
			Row:    f.Row,
			Query:  f.Query,
			Reason: f.Reason(),
		})
	}
	return out
}
