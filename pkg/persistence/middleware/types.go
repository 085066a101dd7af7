package middleware

import "github.com/aretw0/coachflow/pkg/ports"

// Middleware allows wrapping a ManagedStore to add behavior.
type Middleware func(ports.ManagedStore) ports.ManagedStore

// SinkMiddleware allows wrapping an EventSink to add behavior.
type SinkMiddleware func(ports.EventSink) ports.EventSink

// Chain applies mws to store; the first middleware is the outermost.
func Chain(store ports.ManagedStore, mws ...Middleware) ports.ManagedStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
