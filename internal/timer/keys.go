package timer

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"
)

// Keyboard feeds single key presses from a terminal into a Session.
type Keyboard struct {
	in    *os.File
	state *term.State
}

// OpenKeyboard switches in to raw mode. It returns nil when in is not a
// terminal; the session then runs without key controls.
func OpenKeyboard(in *os.File) (*Keyboard, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil
	}
	st, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &Keyboard{in: in, state: st}, nil
}

// Close restores the terminal.
func (k *Keyboard) Close() error {
	if k == nil {
		return nil
	}
	return term.Restore(int(k.in.Fd()), k.state)
}

// Listen reads keys until ctx is done or the input ends.
func (k *Keyboard) Listen(ctx context.Context, s *Session) {
	if k == nil {
		return
	}
	go Dispatch(ctx, k.in, s)
}

// Dispatch maps keys read from r onto s: SPACE pauses, S skips, Q or
// Ctrl+C stops.
func Dispatch(ctx context.Context, r io.Reader, s *Session) {
	buf := make([]byte, 1)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		switch buf[0] {
		case ' ':
			s.TogglePause()
		case 's', 'S':
			s.Skip()
		case 'q', 'Q', 3:
			s.Stop()
			return
		}
	}
}
