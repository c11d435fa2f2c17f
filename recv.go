// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package availability

import (
	"context"

	"github.com/luxfi/availability/message"
	"github.com/luxfi/availability/oneshot"
)

// RecvRuntime awaits a runtime API reply and classifies the outcome in
// one place. The reply channel resolving without a value means the
// runtime API went away, which only happens on shutdown: fatal. A
// delivered reply carrying an application error is the API reporting a
// condition about this particular request: non-fatal. Otherwise the
// unwrapped value is returned. There is no separate disposition for the
// awaiting side being canceled; a canceled await and a vanished API are
// the same observable.
func RecvRuntime[V any](ctx context.Context, rx *oneshot.Receiver[message.APIReply[V]]) (V, error) {
	reply, err := rx.Recv(ctx)
	if err != nil {
		var zero V
		return zero, FromFatal(&Fatal{
			Kind:  FatalRuntimeRequestCanceled,
			Cause: err,
		})
	}
	if reply.Err != nil {
		var zero V
		return zero, FromNonFatal(&NonFatal{
			Kind:  NonFatalRuntimeRequest,
			Cause: reply.Err,
		})
	}
	return reply.Value, nil
}
