package intermcu

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// OTA step timeouts and retry budget, fixed by spec.md §4.6/§5.
const (
	otaStartTimeout = 30 * time.Second
	otaChunkTimeout = 2 * time.Second
	otaEndTimeout   = 5 * time.Second
	otaMaxAttempts  = 3

	otaChunkPayloadSize = 200
)

// ErrOTAAborted is returned once an OTA step has exhausted its retries, or
// the display co-processor NACKed the final CRC check.
type ErrOTAAborted struct {
	Step string
	Err  error
}

func (e *ErrOTAAborted) Error() string {
	return fmt.Sprintf("intermcu: ota aborted at %s: %v", e.Step, e.Err)
}

func (e *ErrOTAAborted) Unwrap() error { return e.Err }

// StreamFirmware runs the OTA_START/OTA_CHUNK*/OTA_END/OTA_APPLY sequence of
// spec.md §4.6 against image: size and imageCRC32 must describe the full
// image up front (StageFirmware returns both while staging it), since the OTA_END step needs the checksum of the whole
// image before the last chunk is even sent. progress, if non-nil, is
// called after every chunk with the percent of bytes streamed so far.
func StreamFirmware(t *Transport, image io.Reader, size int64, imageCRC32 uint32, progress func(percent int)) error {
	if err := otaStart(t, size); err != nil {
		return &ErrOTAAborted{Step: "start", Err: err}
	}

	var sent int64
	buf := make([]byte, otaChunkPayloadSize)
	for sent < size {
		want := int64(len(buf))
		if remaining := size - sent; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(image, buf[:want])
		if err != nil {
			return &ErrOTAAborted{Step: "chunk", Err: err}
		}
		if err := otaSendChunk(t, sent, buf[:n]); err != nil {
			return &ErrOTAAborted{Step: "chunk", Err: err}
		}
		sent += int64(n)
		if progress != nil {
			progress(int(sent * 100 / size))
		}
	}

	// Unlike start/chunk, an OTA_END NACK reports an already-computed
	// checksum mismatch (§4.6): resending the same END frame cannot change
	// that outcome, so it aborts immediately rather than retrying.
	if err := otaEndNoRetryOnNack(t, imageCRC32); err != nil {
		return &ErrOTAAborted{Step: "end", Err: err}
	}

	if err := t.Send(Frame{Command: CmdOTAApply}); err != nil {
		return &ErrOTAAborted{Step: "apply", Err: err}
	}
	return nil
}

func otaStart(t *Transport, size int64) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(size))
	return otaStepWithRetry(t, Frame{Command: CmdOTAStart, Payload: payload}, otaStartTimeout)
}

func otaSendChunk(t *Transport, offset int64, data []byte) error {
	payload := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(payload[:4], uint32(offset))
	copy(payload[4:], data)
	return otaStepWithRetry(t, Frame{Command: CmdOTAChunk, Payload: payload}, otaChunkTimeout)
}

// otaStepWithRetry sends f up to otaMaxAttempts times, waiting for
// CmdOTAAck/CmdOTANack each attempt. Per §8 scenario 5 (a receiver NACKing a
// chunk is retried exactly like a timeout: the offset only advances on
// ACK), both a NACK and a timeout consume a retry attempt and resend the
// identical frame.
func otaStepWithRetry(t *Transport, f Frame, timeout time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < otaMaxAttempts; attempt++ {
		_, ok, err := t.SendAndWaitEither(f, CmdOTAAck, CmdOTANack, timeout)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			lastErr = fmt.Errorf("intermcu: %s nacked", f.Command)
			continue
		}
		return nil
	}
	return fmt.Errorf("intermcu: %s: %w", f.Command, lastErr)
}

// otaEndNoRetryOnNack sends OTA_END once per attempt but treats a NACK as
// terminal: only a timeout is retried, since a NACK here means the receiver
// already compared the streamed image against imageCRC32 and found a
// mismatch that resending OTA_END cannot fix.
func otaEndNoRetryOnNack(t *Transport, imageCRC32 uint32) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, imageCRC32)
	f := Frame{Command: CmdOTAEnd, Payload: payload}

	var lastErr error
	for attempt := 0; attempt < otaMaxAttempts; attempt++ {
		_, ok, err := t.SendAndWaitEither(f, CmdOTAAck, CmdOTANack, otaEndTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			return fmt.Errorf("intermcu: %s nacked: checksum mismatch", f.Command)
		}
		return nil
	}
	return fmt.Errorf("intermcu: %s: %w", f.Command, lastErr)
}
