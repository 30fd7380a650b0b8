package intermcu

import (
	"fmt"
	"time"
)

// Bare-byte ACK/NACK the display co-processor's bootloader speaks once it
// has bank-swapped into update mode (§6). Deliberately a distinct type from
// Command/CmdOTAAck/CmdOTANack: this protocol has no frame structure at
// all, just single bytes, and mixing the two ACK taxonomies in one
// constant set would make a stray byte ambiguous between them.
const (
	bootloaderACK  byte = 0x06
	bootloaderNACK byte = 0x15
)

// BootloaderClient models the bare-byte request/ACK exchange the display
// co-processor's bootloader uses once OTA_APPLY has triggered its
// bank-swap sequence. It speaks directly over the same physical UART as
// Transport, but never through Transport itself — the frame format and the
// bootloader's raw byte protocol must never be confused in code (§6).
type BootloaderClient struct {
	port Port
}

// NewBootloaderClient wraps port for the bootloader handshake. Callers must
// not also run a Transport over the same port concurrently: the two
// protocols are mutually exclusive phases of one UART link.
func NewBootloaderClient(port Port) *BootloaderClient {
	return &BootloaderClient{port: port}
}

// Request writes cmd as a single bare byte and waits up to timeout for a
// bare ACK or NACK reply.
func (c *BootloaderClient) Request(cmd byte, timeout time.Duration) error {
	if _, err := c.port.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("intermcu: bootloader request: %w", err)
	}

	reply := make([]byte, 1)
	done := make(chan error, 1)
	go func() {
		_, err := c.port.Read(reply)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("intermcu: bootloader reply: %w", err)
		}
	case <-time.After(timeout):
		return fmt.Errorf("intermcu: bootloader request timed out")
	}

	switch reply[0] {
	case bootloaderACK:
		return nil
	case bootloaderNACK:
		return fmt.Errorf("intermcu: bootloader nacked command %#02x", cmd)
	default:
		return fmt.Errorf("intermcu: bootloader sent unexpected byte %#02x", reply[0])
	}
}
