package intermcu

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// defaultBaud and the 8N1 framing are fixed by spec.md §6; RX/TX pin
// assignment is a hardware concern outside this package's scope.
const defaultBaud = 115200

// Port is the narrow read/write/close surface Transport needs, satisfied
// by serial.Port. Exists so tests can substitute an in-memory pipe instead
// of opening a real UART — the teacher repo has no UART dependency of its
// own, so this mirrors go.bug.st/serial's own Port interface rather than a
// shape borrowed from the pack.
type Port interface {
	io.ReadWriteCloser
}

// OpenUART opens path at the fixed inter-MCU baud rate, 8 data bits, no
// parity, one stop bit (§6).
func OpenUART(path string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: defaultBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("intermcu: open %s: %w", path, err)
	}
	return port, nil
}

// Transport drives one inter-MCU UART link: frame encode/decode, the
// receive state machine, and a send mutex since "the UART hardware is not
// reentrant" (§4.6, §5).
type Transport struct {
	port Port

	writeMu sync.Mutex

	recv     *Receiver
	handlers map[Command]func(Frame)

	pending   map[Command]chan Frame
	pendingMu sync.Mutex
}

// NewTransport wraps an open Port. Call Run in its own goroutine to start
// the receive loop.
func NewTransport(port Port) *Transport {
	return &Transport{
		port:     port,
		recv:     NewReceiver(),
		handlers: make(map[Command]func(Frame)),
		pending:  make(map[Command]chan Frame),
	}
}

// OnCommand registers a handler invoked for every received frame carrying
// cmd, except where a SendAndWait or SendAndWaitEither call is already
// parked on that command (those
// take priority so request/ACK pairs resolve deterministically).
func (t *Transport) OnCommand(cmd Command, handler func(Frame)) {
	t.handlers[cmd] = handler
}

// Run reads from the port until it returns an error (typically on close),
// feeding every byte through the receive state machine. It is the
// inter-MCU context's main loop (§5).
func (t *Transport) Run() error {
	r := bufio.NewReader(t.port)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			t.recv.Feed(buf[:n], t.dispatch)
		}
		if err != nil {
			return err
		}
	}
}

func (t *Transport) dispatch(f Frame) {
	t.pendingMu.Lock()
	ch, waiting := t.pending[f.Command]
	if waiting {
		delete(t.pending, f.Command)
	}
	t.pendingMu.Unlock()

	if waiting {
		ch <- f
		return
	}
	if handler, ok := t.handlers[f.Command]; ok {
		handler(f)
	}
}

// Send encodes and writes f, holding the send mutex for the duration of the
// write (§5 "shared resources: the inter-MCU UART TX is guarded by a
// mutex").
func (t *Transport) Send(f Frame) error {
	wire, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.port.Write(wire)
	return err
}

// SendAndWait sends f and blocks for a frame carrying expect, up to
// timeout. Used by the OTA sub-protocol's per-step ACK/NACK wait.
func (t *Transport) SendAndWait(f Frame, expect Command, timeout time.Duration) (Frame, error) {
	ch := make(chan Frame, 1)
	t.pendingMu.Lock()
	t.pending[expect] = ch
	t.pendingMu.Unlock()

	if err := t.Send(f); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, expect)
		t.pendingMu.Unlock()
		return Frame{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-time.After(timeout):
		t.pendingMu.Lock()
		delete(t.pending, expect)
		t.pendingMu.Unlock()
		return Frame{}, fmt.Errorf("intermcu: timed out waiting for %s", expect)
	}
}

// SendAndWaitEither is SendAndWait generalized to the OTA sub-protocol's
// ACK-or-NACK reply shape: it blocks for whichever of ok/fail arrives first.
func (t *Transport) SendAndWaitEither(f Frame, ok, fail Command, timeout time.Duration) (Frame, bool, error) {
	okCh := make(chan Frame, 1)
	failCh := make(chan Frame, 1)
	t.pendingMu.Lock()
	t.pending[ok] = okCh
	t.pending[fail] = failCh
	t.pendingMu.Unlock()

	cleanup := func() {
		t.pendingMu.Lock()
		delete(t.pending, ok)
		delete(t.pending, fail)
		t.pendingMu.Unlock()
	}

	if err := t.Send(f); err != nil {
		cleanup()
		return Frame{}, false, err
	}

	select {
	case reply := <-okCh:
		cleanup()
		return reply, true, nil
	case reply := <-failCh:
		cleanup()
		return reply, false, nil
	case <-time.After(timeout):
		cleanup()
		return Frame{}, false, fmt.Errorf("intermcu: timed out waiting for %s or %s", ok, fail)
	}
}
