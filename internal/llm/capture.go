package llm

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// Capture redirects os.Stderr into a buffer for the duration of a backend
// call, so native-library chatter can be returned as diagnostics instead of
// corrupting the terminal. Acquire with CaptureStderr, release with Stop;
// Stop is safe on every exit path including errors and cancellation.
type Capture struct {
	mu   sync.Mutex
	prev *os.File
	w    *os.File
	out  chan string
	text string
	done bool
}

// CaptureStderr swaps os.Stderr for a pipe and starts draining it. If the
// pipe cannot be created, writes keep going to the real stderr and Stop
// returns "".
func CaptureStderr() *Capture {
	r, w, err := os.Pipe()
	if err != nil {
		return &Capture{done: true}
	}
	c := &Capture{prev: os.Stderr, w: w, out: make(chan string, 1)}
	os.Stderr = w
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		_ = r.Close()
		c.out <- buf.String()
	}()
	return c
}

// Stop restores os.Stderr, flushes the pipe and returns everything written
// while the capture was active. Subsequent calls return the same text.
func (c *Capture) Stop() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.text
	}
	c.done = true
	if c.prev != nil {
		os.Stderr = c.prev
		_ = c.w.Close()
		c.text = <-c.out
	}
	return c.text
}
