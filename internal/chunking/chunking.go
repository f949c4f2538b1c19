// Package chunking implements the fixed 512 KiB chunk-boundary law shared by
// the peer chunk server, the parallel downloader, and the upload path that
// builds a file's manifest (spec §3/§4.D).
package chunking

import (
	"fmt"
	"os"

	"github.com/vikramjeet-dev/swarmshare/internal/digest"
)

// Size is the fixed transfer chunk size in bytes.
const Size = 512 * 1024

// TotalChunks returns ⌈fileSize / Size⌉, the manifest length for a file of
// fileSize bytes.
func TotalChunks(fileSize int64) int {
	if fileSize <= 0 {
		return 0
	}
	return int((fileSize + Size - 1) / Size)
}

// Bounds returns the byte offset and length of chunk index within a file of
// fileSize bytes: every chunk is exactly Size bytes except the last, which
// is fileSize mod Size bytes (or a full Size if that remainder is zero).
func Bounds(fileSize int64, index, totalChunks int) (offset, length int64, err error) {
	if index < 0 || index >= totalChunks {
		return 0, 0, fmt.Errorf("%w: index %d, total %d", ErrIndexOutOfRange, index, totalChunks)
	}
	offset = int64(index) * Size
	if index < totalChunks-1 {
		return offset, Size, nil
	}
	return offset, fileSize - offset, nil
}

// ErrIndexOutOfRange is returned by Bounds for an index outside
// [0, totalChunks).
var ErrIndexOutOfRange = fmt.Errorf("chunk index out of range")

// BuildManifest streams path from disk, splitting it into fixed-size chunks
// and returning the whole-file SHA-1, its size, and the per-chunk SHA-1
// manifest (spec §4.B/§4.C upload path).
func BuildManifest(path string) (fileSHA1 string, size int64, manifest []string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("cannot compute digest: %w", err)
	}
	size = info.Size()

	fileSHA1, err = digest.File(path)
	if err != nil {
		return "", 0, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("cannot compute digest: %w", err)
	}
	defer func() { _ = f.Close() }()

	total := TotalChunks(size)
	manifest = make([]string, total)
	for i := 0; i < total; i++ {
		offset, length, boundsErr := Bounds(size, i, total)
		if boundsErr != nil {
			return "", 0, nil, boundsErr
		}
		buf := make([]byte, length)
		if _, readErr := f.ReadAt(buf, offset); readErr != nil {
			return "", 0, nil, fmt.Errorf("cannot compute digest: %w", readErr)
		}
		manifest[i] = digest.Bytes(buf)
	}
	return fileSHA1, size, manifest, nil
}
