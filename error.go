// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"errors"
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/availability/fault"
	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/sessions"
)

// FatalKind enumerates the failures that end the subsystem. The
// enumeration is closed: a new failure mode gets a new kind, never a
// catch-all.
type FatalKind uint8

const (
	// FatalSpawnTask: spawning a subsystem task failed.
	FatalSpawnTask FatalKind = iota
	// FatalRuntimeRequestCanceled: the runtime API dropped a reply
	// channel before answering. The API going away means shutdown.
	FatalRuntimeRequestCanceled
	// FatalRequesterExhausted: the fetch report stream closed while the
	// subsystem was still running.
	FatalRequesterExhausted
	// FatalIncomingMessageChannel: the subsystem inbox closed while the
	// subsystem was still running.
	FatalIncomingMessageChannel
	// FatalSessionInfo: the session-information helper reported a fatal
	// failure.
	FatalSessionInfo
)

func (k FatalKind) String() string {
	switch k {
	case FatalSpawnTask:
		return "SpawnTask"
	case FatalRuntimeRequestCanceled:
		return "RuntimeRequestCanceled"
	case FatalRequesterExhausted:
		return "RequesterExhausted"
	case FatalIncomingMessageChannel:
		return "IncomingMessageChannel"
	case FatalSessionInfo:
		return "SessionInfo"
	default:
		return "Unknown"
	}
}

func (k FatalKind) message() string {
	switch k {
	case FatalSpawnTask:
		return "spawning a subsystem task failed"
	case FatalRuntimeRequestCanceled:
		return "runtime API request canceled"
	case FatalRequesterExhausted:
		return "fetch report stream exhausted"
	case FatalIncomingMessageChannel:
		return "incoming message channel closed"
	case FatalSessionInfo:
		return "accessing session information failed"
	default:
		return "unknown fatal subsystem failure"
	}
}

// NonFatalKind enumerates the failures the subsystem absorbs and moves
// past. Closed, like FatalKind.
type NonFatalKind uint8

const (
	// NonFatalQueryChunkChannel: storage dropped the reply channel for a
	// chunk query or chunk store. Storage signals errors by dropping.
	NonFatalQueryChunkChannel NonFatalKind = iota
	// NonFatalQueryDataChannel: storage dropped the reply channel for a
	// full-data query.
	NonFatalQueryDataChannel
	// NonFatalNoSuchCachedSession: a session that should have been
	// cached was not.
	NonFatalNoSuchCachedSession
	// NonFatalNotAValidator: a validator-only action was attempted, but
	// this node is not a validator in the session.
	NonFatalNotAValidator
	// NonFatalSendResponse: sending a response to a peer failed.
	NonFatalSendResponse
	// NonFatalUtilRequest: issuing an outbound request failed locally,
	// before anything reached the network.
	NonFatalUtilRequest
	// NonFatalRuntimeRequest: the runtime API answered with an
	// application error.
	NonFatalRuntimeRequest
	// NonFatalFetchChunk: fetching a chunk from a remote validator
	// failed. Remote fetches are expected to fail sometimes.
	NonFatalFetchChunk
	// NonFatalUnexpectedChunk: a fetched chunk failed verification
	// against the blob's chunk root.
	NonFatalUnexpectedChunk
	// NonFatalNoSuchChunk: the remote validator does not have the
	// requested chunk.
	NonFatalNoSuchChunk
	// NonFatalInvalidValidatorIndex: a validator index was out of range
	// for its session's validator list.
	NonFatalInvalidValidatorIndex
	// NonFatalNoSuchSession: the runtime API has no data for the
	// session. Carries the session index.
	NonFatalNoSuchSession
	// NonFatalSessionInfo: the session-information helper reported a
	// non-fatal failure.
	NonFatalSessionInfo
	// NonFatalStoreChunk: storage answered a chunk store with a refusal.
	NonFatalStoreChunk
)

func (k NonFatalKind) String() string {
	switch k {
	case NonFatalQueryChunkChannel:
		return "QueryChunkChannel"
	case NonFatalQueryDataChannel:
		return "QueryDataChannel"
	case NonFatalNoSuchCachedSession:
		return "NoSuchCachedSession"
	case NonFatalNotAValidator:
		return "NotAValidator"
	case NonFatalSendResponse:
		return "SendResponse"
	case NonFatalUtilRequest:
		return "UtilRequest"
	case NonFatalRuntimeRequest:
		return "RuntimeRequest"
	case NonFatalFetchChunk:
		return "FetchChunk"
	case NonFatalUnexpectedChunk:
		return "UnexpectedChunk"
	case NonFatalNoSuchChunk:
		return "NoSuchChunk"
	case NonFatalInvalidValidatorIndex:
		return "InvalidValidatorIndex"
	case NonFatalNoSuchSession:
		return "NoSuchSession"
	case NonFatalSessionInfo:
		return "SessionInfo"
	case NonFatalStoreChunk:
		return "StoreChunk"
	default:
		return "Unknown"
	}
}

func (k NonFatalKind) message() string {
	switch k {
	case NonFatalQueryChunkChannel:
		return "storage dropped the chunk reply channel"
	case NonFatalQueryDataChannel:
		return "storage dropped the data reply channel"
	case NonFatalNoSuchCachedSession:
		return "session is not cached"
	case NonFatalNotAValidator:
		return "node is not a validator in this session"
	case NonFatalSendResponse:
		return "sending response to peer failed"
	case NonFatalUtilRequest:
		return "issuing outbound request failed"
	case NonFatalRuntimeRequest:
		return "runtime API request errored"
	case NonFatalFetchChunk:
		return "fetching chunk failed"
	case NonFatalUnexpectedChunk:
		return "fetched chunk failed verification"
	case NonFatalNoSuchChunk:
		return "remote validator does not have the chunk"
	case NonFatalInvalidValidatorIndex:
		return "validator index out of range"
	case NonFatalNoSuchSession:
		return "no data for session"
	case NonFatalSessionInfo:
		return "accessing session information failed"
	case NonFatalStoreChunk:
		return "storage refused to store the chunk"
	default:
		return "unknown subsystem failure"
	}
}

// Fatal is a subsystem failure that requires winding the subsystem down.
type Fatal struct {
	Kind  FatalKind
	Cause error
}

func (f *Fatal) Error() string {
	if f.Cause != nil {
		return f.Kind.message() + ": " + f.Cause.Error()
	}
	return f.Kind.message()
}

func (f *Fatal) Unwrap() error {
	return f.Cause
}

// NonFatal is a subsystem failure the main loop absorbs and moves past.
// Session is meaningful for NoSuchSession and NoSuchCachedSession; Index
// for InvalidValidatorIndex.
type NonFatal struct {
	Kind    NonFatalKind
	Session message.SessionIndex
	Index   message.ValidatorIndex
	Cause   error
}

func (n *NonFatal) Error() string {
	msg := n.Kind.message()
	switch n.Kind {
	case NonFatalNoSuchSession, NonFatalNoSuchCachedSession:
		msg = fmt.Sprintf("%s %d", msg, n.Session)
	case NonFatalInvalidValidatorIndex:
		msg = fmt.Sprintf("%s: %d", msg, n.Index)
	}
	if n.Cause != nil {
		return msg + ": " + n.Cause.Error()
	}
	return msg
}

func (n *NonFatal) Unwrap() error {
	return n.Cause
}

// Error is the subsystem's composite error. Every value is resolved to
// the fatal or the non-fatal variant at construction; consumers never see
// an undecided severity.
type Error struct {
	fault fault.Fault[*NonFatal, *Fatal]
}

// FromFatal wraps a fatal failure.
func FromFatal(f *Fatal) *Error {
	return &Error{fault: fault.FromFatal[*NonFatal, *Fatal](f)}
}

// FromNonFatal wraps an absorbable failure.
func FromNonFatal(n *NonFatal) *Error {
	return &Error{fault: fault.FromNonFatal[*NonFatal, *Fatal](n)}
}

// FromSessions lifts a session-information helper error into the
// subsystem's error domain, preserving the helper's severity. Anything
// that is not a helper error classifies as fatal: unknown severity never
// downgrades to a warning.
func FromSessions(err error) *Error {
	f := fault.FromOther[*NonFatal, *Fatal](err).Resolve(resolveSessions)
	return &Error{fault: f}
}

func resolveSessions(err error) fault.Fault[*NonFatal, *Fatal] {
	var serr *sessions.Error
	if errors.As(err, &serr) {
		if _, ok := serr.Fatal(); ok {
			return fault.FromFatal[*NonFatal, *Fatal](&Fatal{
				Kind:  FatalSessionInfo,
				Cause: err,
			})
		}
		if n, ok := serr.NonFatal(); ok {
			return fault.FromNonFatal[*NonFatal, *Fatal](&NonFatal{
				Kind:    NonFatalSessionInfo,
				Session: n.Session,
				Cause:   err,
			})
		}
	}
	return fault.FromFatal[*NonFatal, *Fatal](&Fatal{
		Kind:  FatalSessionInfo,
		Cause: err,
	})
}

func (e *Error) Error() string {
	return e.fault.Error()
}

func (e *Error) Unwrap() error {
	return e.fault.Unwrap()
}

func (e *Error) Severity() fault.Severity {
	return e.fault.Severity()
}

// Fatal returns the fatal payload and whether the error holds one.
func (e *Error) Fatal() (*Fatal, bool) {
	return e.fault.Fatal()
}

// NonFatal returns the non-fatal payload and whether the error holds one.
func (e *Error) NonFatal() (*NonFatal, bool) {
	return e.fault.NonFatal()
}

// LogError is the subsystem's error sink, called once per unit of work
// with that unit's result. Non-fatal failures are logged at warn with the
// static context label and absorbed. Fatal failures are handed back for
// the caller to propagate. Errors that are not subsystem errors, or that
// somehow escaped classification, also propagate: only a known non-fatal
// failure is ever absorbed.
func LogError(logger log.Logger, err error, label string) error {
	if err == nil {
		return nil
	}
	var serr *Error
	if !errors.As(err, &serr) {
		return err
	}
	if f, ok := serr.Fatal(); ok {
		return f
	}
	n, ok := serr.NonFatal()
	if !ok {
		return err
	}
	logger.Warn("non-fatal error",
		log.String("ctx", label),
		log.Stringer("kind", n.Kind),
		log.Err(n),
	)
	return nil
}

// nonFatalKind extracts the non-fatal kind from a classified error.
func nonFatalKind(err error) (NonFatalKind, bool) {
	var serr *Error
	if !errors.As(err, &serr) {
		return 0, false
	}
	n, ok := serr.NonFatal()
	if !ok {
		return 0, false
	}
	return n.Kind, true
}
