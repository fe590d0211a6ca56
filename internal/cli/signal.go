package cli

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// SignalContext is cancelled on SIGINT or SIGTERM and remembers which signal
// ended it, so a stopped wizard can tell an interrupt from a normal exit.
type SignalContext struct {
	context.Context
	Cancel context.CancelFunc
	caught atomic.Value // os.Signal
}

// NewSignalContext starts listening for interrupts until parent ends or
// Cancel is called.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, Cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.caught.Store(sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sig, _ := sc.caught.Load().(os.Signal)
	return sig
}
