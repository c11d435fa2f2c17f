// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sessions

import (
	"github.com/luxfi/availability/fault"
	"github.com/luxfi/availability/message"
)

// FatalKind enumerates the failures the helper cannot recover from.
type FatalKind uint8

const (
	// FatalQueryCanceled: the runtime API dropped the reply channel for a
	// session query. The API going away means the node is shutting down.
	FatalQueryCanceled FatalKind = iota
)

func (k FatalKind) String() string {
	switch k {
	case FatalQueryCanceled:
		return "QueryCanceled"
	default:
		return "Unknown"
	}
}

// NonFatalKind enumerates the failures callers absorb and move past.
type NonFatalKind uint8

const (
	// NonFatalQuery: the runtime API answered a session query with an
	// application error.
	NonFatalQuery NonFatalKind = iota
	// NonFatalUnknownSession: the runtime API has no validator data for
	// the session.
	NonFatalUnknownSession
)

func (k NonFatalKind) String() string {
	switch k {
	case NonFatalQuery:
		return "Query"
	case NonFatalUnknownSession:
		return "UnknownSession"
	default:
		return "Unknown"
	}
}

// Fatal is a session-information failure that must stop the consumer.
type Fatal struct {
	Kind  FatalKind
	Cause error
}

func (f *Fatal) Error() string {
	msg := "session query canceled"
	if f.Kind != FatalQueryCanceled {
		msg = "unknown fatal session failure"
	}
	if f.Cause != nil {
		return msg + ": " + f.Cause.Error()
	}
	return msg
}

func (f *Fatal) Unwrap() error {
	return f.Cause
}

// NonFatal is a session-information failure the consumer can absorb.
type NonFatal struct {
	Kind    NonFatalKind
	Session message.SessionIndex
	Cause   error
}

func (n *NonFatal) Error() string {
	var msg string
	switch n.Kind {
	case NonFatalQuery:
		msg = "session query failed"
	case NonFatalUnknownSession:
		msg = "no validator data for session"
	default:
		msg = "unknown session failure"
	}
	if n.Cause != nil {
		return msg + ": " + n.Cause.Error()
	}
	return msg
}

func (n *NonFatal) Unwrap() error {
	return n.Cause
}

// Error is the helper's composite error. Values are always resolved to one
// of the two variants at construction.
type Error struct {
	fault fault.Fault[*NonFatal, *Fatal]
}

// QueryCanceledError reports a dropped reply channel for a session
// query.
func QueryCanceledError(cause error) *Error {
	return &Error{fault: fault.FromFatal[*NonFatal, *Fatal](&Fatal{
		Kind:  FatalQueryCanceled,
		Cause: cause,
	})}
}

// QueryError reports a session query answered with an application
// error.
func QueryError(session message.SessionIndex, cause error) *Error {
	return &Error{fault: fault.FromNonFatal[*NonFatal, *Fatal](&NonFatal{
		Kind:    NonFatalQuery,
		Session: session,
		Cause:   cause,
	})}
}

// UnknownSessionError reports a session the runtime has no validator
// data for.
func UnknownSessionError(session message.SessionIndex) *Error {
	return &Error{fault: fault.FromNonFatal[*NonFatal, *Fatal](&NonFatal{
		Kind:    NonFatalUnknownSession,
		Session: session,
	})}
}

func (e *Error) Error() string {
	return e.fault.Error()
}

func (e *Error) Unwrap() error {
	return e.fault.Unwrap()
}

// Fatal returns the fatal payload and whether the error holds one.
func (e *Error) Fatal() (*Fatal, bool) {
	return e.fault.Fatal()
}

// NonFatal returns the non-fatal payload and whether the error holds one.
func (e *Error) NonFatal() (*NonFatal, bool) {
	return e.fault.NonFatal()
}
