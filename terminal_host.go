// terminal_host.go - Raw-mode stdin keyboard feed

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// TerminalHost reads raw stdin and types the bytes into the machine's
// keyboard matrix. Used when running without a window; terminals only
// report key presses, so keys auto-release after a few frames.
// Only instantiated in main.go for interactive use — never in tests.
type TerminalHost struct {
	machine      *Machine
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

// NewTerminalHost creates a host adapter that types stdin bytes into
// the given machine.
func NewTerminalHost(machine *Machine) *TerminalHost {
	return &TerminalHost{
		machine: machine,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start sets stdin to raw non-blocking mode and begins reading in a
// goroutine. Call Stop() to restore stdin.
func (h *TerminalHost) Start() {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal_host: failed to set raw mode: %v\n", err)
		close(h.done)
		return
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "terminal_host: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return
	}
	h.nonblockSet = true

	go func() {
		defer close(h.done)
		buf := make([]byte, 1)

		for {
			select {
			case <-h.stopCh:
				return
			default:
			}

			n, err := syscall.Read(h.fd, buf)
			if n > 0 {
				h.routeHostKey(buf[0])
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

// Stop terminates the stdin reading goroutine and restores stdin.
func (h *TerminalHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}

// asciiKeyMatrix maps printable stdin bytes to matrix positions.
// Letters map directly; shifted forms are typed with CAPS held.
var asciiKeyMatrix = map[byte][2]int{
	'z': {KeyRowCapsV, 1}, 'x': {KeyRowCapsV, 2}, 'c': {KeyRowCapsV, 3}, 'v': {KeyRowCapsV, 4},
	'a': {KeyRowAG, 0}, 's': {KeyRowAG, 1}, 'd': {KeyRowAG, 2}, 'f': {KeyRowAG, 3}, 'g': {KeyRowAG, 4},
	'q': {KeyRowQT, 0}, 'w': {KeyRowQT, 1}, 'e': {KeyRowQT, 2}, 'r': {KeyRowQT, 3}, 't': {KeyRowQT, 4},
	'1': {KeyRow15, 0}, '2': {KeyRow15, 1}, '3': {KeyRow15, 2}, '4': {KeyRow15, 3}, '5': {KeyRow15, 4},
	'0': {KeyRow60, 0}, '9': {KeyRow60, 1}, '8': {KeyRow60, 2}, '7': {KeyRow60, 3}, '6': {KeyRow60, 4},
	'p': {KeyRowPY, 0}, 'o': {KeyRowPY, 1}, 'i': {KeyRowPY, 2}, 'u': {KeyRowPY, 3}, 'y': {KeyRowPY, 4},
	'\n': {KeyRowEnterH, 0}, 'l': {KeyRowEnterH, 1}, 'k': {KeyRowEnterH, 2},
	'j': {KeyRowEnterH, 3}, 'h': {KeyRowEnterH, 4},
	' ': {KeyRowSpaceB, 0}, 'm': {KeyRowSpaceB, 2}, 'n': {KeyRowSpaceB, 3}, 'b': {KeyRowSpaceB, 4},
}

func (h *TerminalHost) routeHostKey(b byte) {
	// Raw mode sends CR for Enter.
	if b == '\r' {
		b = '\n'
	}
	// Backspace types CAPS+0 (delete on the Spectrum).
	if b == 0x7F || b == 0x08 {
		h.machine.TypeKey(KeyRowCapsV, 0)
		h.machine.TypeKey(KeyRow60, 0)
		return
	}
	if b >= 'A' && b <= 'Z' {
		h.machine.TypeKey(KeyRowCapsV, 0)
		b += 'a' - 'A'
	}
	if pos, ok := asciiKeyMatrix[b]; ok {
		h.machine.TypeKey(pos[0], pos[1])
	}
}
