// Package middleware wraps a ports.SessionStore with cross-cutting behavior
// such as snapshot encryption and masking of sensitive values.
package middleware

import "github.com/aretw0/multipage/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
