// Package interrupt wires Ctrl-C into context cancellation. Cancellation
// stays cooperative: consumers check the context between streamed chunks.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Context returns a context cancelled on SIGINT or SIGTERM. Release the
// signal registration with the returned stop function; in a chat loop a
// fresh context is taken per generation so an interrupt cancels the
// in-flight response without quitting the session.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
