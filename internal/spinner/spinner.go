// Package spinner shows a progress indicator while a blocking call runs.
package spinner

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// Spinner animates frames on a writer for the duration of Run.
// It never reads or changes the state of the wrapped operation.
type Spinner struct {
	w        io.Writer
	frames   []string
	interval time.Duration
	enabled  bool
}

// Option configures a Spinner.
type Option func(*Spinner)

// WithInterval overrides the frame interval.
func WithInterval(d time.Duration) Option {
	return func(s *Spinner) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithEnabled forces the spinner on or off.
func WithEnabled(enabled bool) Option {
	return func(s *Spinner) { s.enabled = enabled }
}

// New creates a spinner writing to w. It is enabled only when w is a terminal
// unless WithEnabled says otherwise.
func New(w io.Writer, opts ...Option) *Spinner {
	style := spinner.Line
	s := &Spinner{
		w:        w,
		frames:   style.Frames,
		interval: style.FPS,
		enabled:  IsTerminal(w),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run calls fn while the animation runs. The animation is stopped and its
// goroutine joined before Run returns, on every exit path.
func (s *Spinner) Run(ctx context.Context, fn func(context.Context) error) error {
	if s == nil || !s.enabled || s.w == nil {
		return fn(ctx)
	}

	stop := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		s.spin(stop)
		return nil
	})
	defer func() {
		close(stop)
		_ = g.Wait()
	}()

	return fn(ctx)
}

func (s *Spinner) spin(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if _, err := io.WriteString(s.w, s.frames[i%len(s.frames)]+"\b"); err != nil {
			return
		}
		select {
		case <-stop:
			_, _ = io.WriteString(s.w, " \b")
			return
		case <-ticker.C:
		}
	}
}
