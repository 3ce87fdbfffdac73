package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Progress reports pipeline progress with elapsed time. It is safe for use
// by concurrent build workers.
type Progress struct {
	mu      sync.Mutex
	w       io.Writer
	start   time.Time
	verbose bool
}

// NewProgress creates a progress reporter writing to stderr.
func NewProgress(verbose bool) *Progress {
	return NewProgressTo(os.Stderr, verbose)
}

// NewProgressTo creates a progress reporter writing to w.
func NewProgressTo(w io.Writer, verbose bool) *Progress {
	return &Progress{w: w, start: time.Now(), verbose: verbose}
}

// Log prints a progress message with elapsed time prefix.
func (p *Progress) Log(format string, args ...any) {
	elapsed := time.Since(p.start)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	msg := fmt.Sprintf(format, args...)
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%02d:%02d] %s\n", mins, secs, msg)
}

// Verbose prints only when verbose mode is enabled.
func (p *Progress) Verbose(format string, args ...any) {
	if p.verbose {
		p.Log(format, args...)
	}
}
