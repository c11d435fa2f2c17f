// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fault provides a severity-tagged error composite for long-running
// subsystems. A fault is either non-fatal (the subsystem logs it and keeps
// going) or fatal (the subsystem winds down), with a third transitional
// state for errors whose severity has not been decided yet.
package fault

// Severity describes how a subsystem must react to a fault.
type Severity uint8

const (
	// Unresolved marks a fault whose severity has not been decided.
	// Consumers that only understand the two-variant union must treat
	// unresolved faults as fatal.
	Unresolved Severity = iota
	NonFatal
	Fatal
)

func (s Severity) String() string {
	switch s {
	case NonFatal:
		return "non-fatal"
	case Fatal:
		return "fatal"
	default:
		return "unresolved"
	}
}

// Fault carries exactly one of three payloads: a non-fatal error of type N,
// a fatal error of type F, or an arbitrary error whose severity is still
// undecided. The zero value is an unresolved fault with no payload.
type Fault[N error, F error] struct {
	severity Severity
	nonFatal N
	fatal    F
	other    error
}

var _ error = Fault[error, error]{}

// FromNonFatal wraps an error the subsystem can absorb.
func FromNonFatal[N error, F error](err N) Fault[N, F] {
	return Fault[N, F]{severity: NonFatal, nonFatal: err}
}

// FromFatal wraps an error the subsystem must shut down on.
func FromFatal[N error, F error](err F) Fault[N, F] {
	return Fault[N, F]{severity: Fatal, fatal: err}
}

// FromOther wraps an error of unknown severity. The result must pass
// through Resolve before reaching a consumer of the two-variant union.
func FromOther[N error, F error](err error) Fault[N, F] {
	return Fault[N, F]{severity: Unresolved, other: err}
}

func (f Fault[N, F]) Severity() Severity {
	return f.severity
}

// NonFatal returns the non-fatal payload and whether the fault holds one.
func (f Fault[N, F]) NonFatal() (N, bool) {
	return f.nonFatal, f.severity == NonFatal
}

// Fatal returns the fatal payload and whether the fault holds one.
func (f Fault[N, F]) Fatal() (F, bool) {
	return f.fatal, f.severity == Fatal
}

// Other returns the undecided payload and whether the fault holds one.
func (f Fault[N, F]) Other() (error, bool) {
	return f.other, f.severity == Unresolved
}

// Resolve returns the fault unchanged if its severity is already decided.
// Otherwise it applies reclassify to the undecided payload. reclassify must
// return a decided fault; classification is total, so callers that cannot
// recognize a payload must map it to a fatal variant rather than leave it
// undecided or quietly downgrade it.
func (f Fault[N, F]) Resolve(reclassify func(error) Fault[N, F]) Fault[N, F] {
	if f.severity != Unresolved {
		return f
	}
	return reclassify(f.other)
}

// Unwrap returns the contained error regardless of severity, keeping
// errors.Is and errors.As working across the composite.
func (f Fault[N, F]) Unwrap() error {
	switch f.severity {
	case NonFatal:
		return f.nonFatal
	case Fatal:
		return f.fatal
	default:
		return f.other
	}
}

func (f Fault[N, F]) Error() string {
	if err := f.Unwrap(); err != nil {
		return err.Error()
	}
	return "unresolved fault"
}
