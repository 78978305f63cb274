package analytics

import "fmt"

// SoftErrorKind classifies an analysis that could not produce a report
type SoftErrorKind string

const (
	KindInsufficientData SoftErrorKind = "insufficient_data"
	KindUnknownSkill     SoftErrorKind = "unknown_skill"
)

// SoftError explains why an analysis has no payload. It is data for the
// caller, not a failure of the service.
type SoftError struct {
	Kind    SoftErrorKind `json:"kind"`
	Message string        `json:"message"`
	Skill   string        `json:"skill,omitempty"`
}

func (e *SoftError) Error() string {
	return e.Message
}

// Result is either a report or a soft error
type Result[T any] struct {
	Value T
	Err   *SoftError
}

// Ok wraps a report
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// InsufficientData reports that the history is too short for the analysis
func InsufficientData[T any](format string, args ...interface{}) Result[T] {
	return Result[T]{Err: &SoftError{Kind: KindInsufficientData, Message: fmt.Sprintf(format, args...)}}
}

// UnknownSkill reports a skill name outside the catalog
func UnknownSkill[T any](name string) Result[T] {
	return Result[T]{Err: &SoftError{
		Kind:    KindUnknownSkill,
		Message: fmt.Sprintf("unknown skill %q", name),
		Skill:   name,
	}}
}

// OK reports whether the result carries a report
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unwrap returns the report and the soft error, if any
func (r Result[T]) Unwrap() (T, *SoftError) {
	return r.Value, r.Err
}
