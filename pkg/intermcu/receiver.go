package intermcu

// receiveState names the literal byte-at-a-time parsing states of spec.md
// §4.6: "seeking-start -> got-start -> got-cmd -> got-length -> accumulating
// -> checking-crc". Any byte arriving outside the state that expects it
// resyncs back to seekingStart and is retried as a possible new start byte.
type receiveState int

const (
	seekingStart receiveState = iota
	gotStart
	gotCmd
	gotLength
	accumulating
	checkingCRC
)

// Receiver implements the frame receive state machine: feed it raw bytes
// one at a time (or in chunks, via Feed) and it calls handler for every
// frame whose CRC-8 validates.
type Receiver struct {
	state   receiveState
	cmd     byte
	length  byte
	payload []byte
}

// NewReceiver returns a Receiver in the seeking-start state.
func NewReceiver() *Receiver {
	return &Receiver{state: seekingStart}
}

// Feed processes chunk byte by byte, invoking handler for each frame
// successfully decoded. It never returns an error: a CRC mismatch or an
// out-of-sequence byte simply resyncs, per §4.6.
func (r *Receiver) Feed(chunk []byte, handler func(Frame)) {
	for _, b := range chunk {
		r.feedByte(b, handler)
	}
}

func (r *Receiver) feedByte(b byte, handler func(Frame)) {
	switch r.state {
	case seekingStart:
		if b == StartByte {
			r.state = gotStart
		}

	case gotStart:
		r.cmd = b
		r.state = gotCmd

	case gotCmd:
		if b > MaxPayloadLen {
			r.reset()
			// Not a valid length for any frame this protocol sends; the
			// byte itself might still be a start byte for a resynced frame.
			r.feedByte(b, handler)
			return
		}
		r.length = b
		r.payload = r.payload[:0]
		if r.length == 0 {
			r.state = checkingCRC
		} else {
			r.state = gotLength
		}

	case gotLength, accumulating:
		r.payload = append(r.payload, b)
		r.state = accumulating
		if len(r.payload) == int(r.length) {
			r.state = checkingCRC
		}

	case checkingCRC:
		want := crc8(append([]byte{r.cmd, r.length}, r.payload...))
		if b == want {
			handler(Frame{Command: Command(r.cmd), Payload: append([]byte(nil), r.payload...)})
		}
		r.reset()
		// A mismatching CRC byte could itself be the start of the next
		// frame; retry it from seeking-start rather than dropping it.
		if b != want && b == StartByte {
			r.feedByte(b, handler)
		}
	}
}

func (r *Receiver) reset() {
	r.state = seekingStart
	r.cmd = 0
	r.length = 0
	r.payload = nil
}
