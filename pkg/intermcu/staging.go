package intermcu

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// StagingFilename is the fixed path spec.md §6 gives the local staging
// filesystem root for an uploaded or locally-sourced firmware image.
const StagingFilename = "stm32_update.bin"

// StageFirmware copies the full contents of r into root/StagingFilename,
// returning the final image size and its CRC-32 so the caller can drive
// StreamFirmware without re-reading the file a second time. root is a
// plain OS directory; spec.md models it only as an fs.StatFS-shaped root,
// so this package's only requirement of it is the stdlib fs contract.
func StageFirmware(root string, r io.Reader) (size int64, imageCRC32 uint32, err error) {
	path := filepath.Join(root, StagingFilename)
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, fmt.Errorf("intermcu: stage firmware: %w", err)
	}
	defer f.Close()

	hasher := newCRC32Writer()
	n, err := io.Copy(io.MultiWriter(f, hasher), r)
	if err != nil {
		return 0, 0, fmt.Errorf("intermcu: stage firmware: %w", err)
	}
	return n, hasher.Sum(), nil
}

// OpenStagedFirmware opens the previously staged image for streaming, and
// reports the stat size visible through root's fs.StatFS view (§6).
func OpenStagedFirmware(root fs.StatFS) (fs.File, int64, error) {
	info, err := fs.Stat(root, StagingFilename)
	if err != nil {
		return nil, 0, fmt.Errorf("intermcu: stat staged firmware: %w", err)
	}
	f, err := root.Open(StagingFilename)
	if err != nil {
		return nil, 0, fmt.Errorf("intermcu: open staged firmware: %w", err)
	}
	return f, info.Size(), nil
}

// crc32Writer accumulates a CRC-32 (§4.6) over every byte written to it.
type crc32Writer struct {
	crc uint32
}

func newCRC32Writer() *crc32Writer {
	return &crc32Writer{crc: 0xFFFFFFFF}
}

func (w *crc32Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		w.crc = crc32Table[byte(w.crc)^b] ^ (w.crc >> 8)
	}
	return len(p), nil
}

func (w *crc32Writer) Sum() uint32 {
	return w.crc ^ 0xFFFFFFFF
}
