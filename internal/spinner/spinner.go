// Package spinner shows a terminal progress indicator while papers are
// being analyzed.
package spinner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const tick = 100 * time.Millisecond

// Spinner animates a status line such as "◝ Analyzing papers (2/5)" until
// it is stopped or its context ends. Methods may be called from several
// goroutines.
type Spinner struct {
	out    io.Writer
	parent context.Context
	frames []string

	mu      sync.Mutex
	message string
	done    int
	total   int
	halt    chan struct{} // nil while idle
	exited  chan struct{}
}

// New returns an idle spinner that draws on out.
func New(ctx context.Context, out io.Writer, message string) *Spinner {
	return &Spinner{
		out:     out,
		parent:  ctx,
		frames:  []string{"◜", "◠", "◝", "◞", "◡", "◟"},
		message: message,
	}
}

// Start launches the animation. Calling it on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halt != nil {
		return
	}
	s.halt = make(chan struct{})
	s.exited = make(chan struct{})
	go s.animate(s.halt, s.exited)
}

// Stop ends the animation and erases the status line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	halt, exited := s.halt, s.exited
	s.halt, s.exited = nil, nil
	s.mu.Unlock()
	if halt == nil {
		return
	}

	close(halt)
	<-exited

	erase := "\r"
	if IsTerminal(s.out) {
		erase += "\033[2K"
	}
	fmt.Fprint(s.out, erase)
}

// IsActive reports whether the animation is running.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halt != nil
}

// UpdateMessage changes the text shown after the frame.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// SetTotal resets the counter to 0 of total. A zero total hides it.
func (s *Spinner) SetTotal(total int) {
	s.mu.Lock()
	s.done, s.total = 0, total
	s.mu.Unlock()
}

// Step counts one finished unit, never past the total.
func (s *Spinner) Step() {
	s.mu.Lock()
	if s.total <= 0 || s.done < s.total {
		s.done++
	}
	s.mu.Unlock()
}

// Progress returns the finished and total units.
func (s *Spinner) Progress() (done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, s.total
}

func (s *Spinner) line(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := "\r" + s.frames[n%len(s.frames)] + " " + s.message
	if s.total > 0 {
		text += fmt.Sprintf(" (%d/%d)", s.done, s.total)
	}
	return text
}

func (s *Spinner) animate(halt <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)

	t := time.NewTicker(tick)
	defer t.Stop()
	for n := 0; ; n++ {
		select {
		case <-halt:
			return
		case <-s.parent.Done():
			return
		case <-t.C:
			fmt.Fprint(s.out, s.line(n))
		}
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
