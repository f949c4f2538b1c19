package downloader_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vikramjeet-dev/swarmshare/internal/chunking"
	"github.com/vikramjeet-dev/swarmshare/internal/digest"
	"github.com/vikramjeet-dev/swarmshare/internal/downloader"
	"github.com/vikramjeet-dev/swarmshare/internal/logging"
	"github.com/vikramjeet-dev/swarmshare/internal/planformat"
	"github.com/vikramjeet-dev/swarmshare/internal/sessioncache"
)

// fakeFetcher serves canned chunk bytes per (holder, index), optionally
// recording request order, to simulate honest peers, malicious peers that
// return garbage, and unreachable peers.
type fakeFetcher struct {
	mu      sync.Mutex
	data    map[string]map[int][]byte // holder user id -> index -> bytes (nil entry = unreachable)
	corrupt map[string]map[int]bool   // holder returns wrong bytes for this index
	order   []int                     // indices requested, in request order
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{data: map[string]map[int][]byte{}, corrupt: map[string]map[int]bool{}}
}

func (f *fakeFetcher) serve(holder string, index int, data []byte) {
	if f.data[holder] == nil {
		f.data[holder] = map[int][]byte{}
	}
	f.data[holder][index] = data
}

func (f *fakeFetcher) serveCorrupt(holder string, index int) {
	if f.corrupt[holder] == nil {
		f.corrupt[holder] = map[int]bool{}
	}
	f.corrupt[holder][index] = true
}

func (f *fakeFetcher) Fetch(_ context.Context, holder planformat.Holder, _ string, index int, expectedSHA1 string, length int64) ([]byte, error) {
	f.mu.Lock()
	f.order = append(f.order, index)
	f.mu.Unlock()

	if f.corrupt[holder.UserID][index] {
		zeros := make([]byte, length)
		if digest.Bytes(zeros) == expectedSHA1 {
			return zeros, nil // pathological: the real content happened to be all-zero
		}
		return nil, fmt.Errorf("holder %s served bad digest for chunk %d", holder.UserID, index)
	}
	byIndex, ok := f.data[holder.UserID]
	if !ok {
		return nil, fmt.Errorf("holder %s unreachable", holder.UserID)
	}
	data, ok := byIndex[index]
	if !ok {
		return nil, fmt.Errorf("holder %s has no chunk %d", holder.UserID, index)
	}
	if digest.Bytes(data) != expectedSHA1 {
		return nil, fmt.Errorf("holder %s served bad digest for chunk %d", holder.UserID, index)
	}
	return data, nil
}

func buildPlan(t *testing.T, chunkData [][]byte, holdersPerChunk [][]planformat.Holder) planformat.Plan {
	t.Helper()
	var fileSize int64
	chunks := make([]planformat.Chunk, len(chunkData))
	for i, d := range chunkData {
		fileSize += int64(len(d))
		chunks[i] = planformat.Chunk{Index: i, ExpectedSHA1: digest.Bytes(d), Holders: holdersPerChunk[i]}
	}
	return planformat.Plan{
		FileSize:       fileSize,
		TotalChunks:    len(chunkData),
		ChunkSizeBytes: chunking.Size,
		FileSHA1:       wholeFileSHA1(chunkData),
		Chunks:         chunks,
	}
}

func wholeFileSHA1(chunkData [][]byte) string {
	var all []byte
	for _, d := range chunkData {
		all = append(all, d...)
	}
	return digest.Bytes(all)
}

func TestDownload_RoundTrip(t *testing.T) {
	c0 := bytes.Repeat([]byte("0"), chunking.Size)
	c1 := []byte("chunk-one--data-")
	fetcher := newFakeFetcher()
	fetcher.serve("a", 0, c0)
	fetcher.serve("a", 1, c1)

	plan := buildPlan(t, [][]byte{c0, c1}, [][]planformat.Holder{
		{{UserID: "a", IP: "127.0.0.1", Port: "1"}},
		{{UserID: "a", IP: "127.0.0.1", Port: "1"}},
	})

	dl := downloader.New(logging.New(io.Discard, "test")).WithFetcher(fetcher)
	dest := t.TempDir()
	path, err := dl.Download(context.Background(), plan, "f.bin", dest)
	require.NoError(t, err)

	got, err := digest.File(path)
	require.NoError(t, err)
	require.Equal(t, plan.FileSHA1, got)
}

func TestDownload_RarestFirst(t *testing.T) {
	c0 := bytes.Repeat([]byte("0"), chunking.Size)
	c1 := bytes.Repeat([]byte("1"), chunking.Size)
	c2 := []byte("c2")
	fetcher := newFakeFetcher()
	fetcher.serve("a", 0, c0)
	fetcher.serve("a", 1, c1)
	fetcher.serve("a", 2, c2)

	// chunk 0 has 2 holders, chunk 1 has 1 holder, chunk 2 has 1 holder.
	plan := buildPlan(t, [][]byte{c0, c1, c2}, [][]planformat.Holder{
		{{UserID: "a", IP: "x", Port: "1"}, {UserID: "b", IP: "x", Port: "2"}},
		{{UserID: "a", IP: "x", Port: "1"}},
		{{UserID: "a", IP: "x", Port: "1"}},
	})

	// A single worker makes the fetch order deterministic and equal to the
	// rarest-first enqueue order, which is what this test observes.
	dl := downloader.New(logging.New(io.Discard, "test")).WithFetcher(fetcher).WithWorkers(1)

	dest := t.TempDir()
	_, err := dl.Download(context.Background(), plan, "f.bin", dest)
	require.NoError(t, err)

	require.ElementsMatch(t, []int{0, 1, 2}, fetcher.order)
	// both rarer chunks (1 holder) must be requested before the chunk with 2 holders.
	posOf := func(idx int) int {
		for i, v := range fetcher.order {
			if v == idx {
				return i
			}
		}
		return -1
	}
	require.Less(t, posOf(1), posOf(0))
	require.Less(t, posOf(2), posOf(0))
}

func TestDownload_RejectsMaliciousPeerThenTriesNextHolder(t *testing.T) {
	c0 := []byte("honest-chunk-data")
	fetcher := newFakeFetcher()
	fetcher.serveCorrupt("evil", 0)
	fetcher.serve("good", 0, c0)

	plan := buildPlan(t, [][]byte{c0}, [][]planformat.Holder{
		{{UserID: "evil", IP: "x", Port: "1"}, {UserID: "good", IP: "x", Port: "2"}},
	})

	dl := downloader.New(logging.New(io.Discard, "test")).WithFetcher(fetcher)
	dest := t.TempDir()
	path, err := dl.Download(context.Background(), plan, "f.bin", dest)
	require.NoError(t, err)

	got, err := digest.File(path)
	require.NoError(t, err)
	require.Equal(t, plan.FileSHA1, got)
}

func TestDownload_MissingChunkWhenNoHonestHolder(t *testing.T) {
	c0 := []byte("unreachable-chunk")
	fetcher := newFakeFetcher()
	fetcher.serveCorrupt("evil", 0)

	plan := buildPlan(t, [][]byte{c0}, [][]planformat.Holder{
		{{UserID: "evil", IP: "x", Port: "1"}},
	})

	dl := downloader.New(logging.New(io.Discard, "test")).WithFetcher(fetcher)
	dest := t.TempDir()
	_, err := dl.Download(context.Background(), plan, "f.bin", dest)
	require.ErrorIs(t, err, downloader.ErrMissingChunks)
}

func TestDownload_ResumesFromSessionCache(t *testing.T) {
	c0 := bytes.Repeat([]byte("0"), chunking.Size)
	c1 := []byte("chunk-one--data-")
	plan := buildPlan(t, [][]byte{c0, c1}, [][]planformat.Holder{
		{{UserID: "a", IP: "127.0.0.1", Port: "1"}},
		{{UserID: "a", IP: "127.0.0.1", Port: "1"}},
	})

	cache, err := sessioncache.Open(filepath.Join(t.TempDir(), "cache.sqlite3"))
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	dest := t.TempDir()
	destPath := filepath.Join(dest, "f.bin")
	require.NoError(t, os.WriteFile(destPath, append(c0, c1...), 0o644))
	require.NoError(t, cache.MarkVerified(plan.FileSHA1, "f.bin", 0, destPath))

	// Only chunk 1 is servable; chunk 0 must be satisfied from the cache
	// and the on-disk bytes, not fetched.
	fetcher := newFakeFetcher()
	fetcher.serve("a", 1, c1)

	dl := downloader.New(logging.New(io.Discard, "test")).WithFetcher(fetcher).WithCache(cache)
	_, err = dl.Download(context.Background(), plan, "f.bin", dest)
	require.NoError(t, err)
	require.NotContains(t, fetcher.order, 0)

	got, err := digest.File(destPath)
	require.NoError(t, err)
	require.Equal(t, plan.FileSHA1, got)
}
