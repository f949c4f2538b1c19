package chunkserver_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vikramjeet-dev/swarmshare/internal/chunking"
	"github.com/vikramjeet-dev/swarmshare/internal/chunkserver"
	"github.com/vikramjeet-dev/swarmshare/internal/digest"
	"github.com/vikramjeet-dev/swarmshare/internal/logging"
	"github.com/vikramjeet-dev/swarmshare/internal/ownedfiles"
	"github.com/vikramjeet-dev/swarmshare/internal/wire"
)

func startServer(t *testing.T, data []byte) (net.Addr, func()) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	total := chunking.TotalChunks(int64(len(data)))
	manifest := make([]string, total)
	for i := 0; i < total; i++ {
		off, length, err := chunking.Bounds(int64(len(data)), i, total)
		require.NoError(t, err)
		manifest[i] = digest.Bytes(data[off : off+length])
	}

	registry := ownedfiles.New()
	registry.Put(ownedfiles.Info{FileName: "f.bin", OnDiskPath: path, FileSHA1: digest.Bytes(data), Chunks: manifest})

	srv, err := chunkserver.New("127.0.0.1:0", registry, logging.New(io.Discard, "test"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx) }()

	return srv.Addr(), func() { cancel(); _ = srv.Close() }
}

func request(t *testing.T, addr net.Addr, fileName, index string) (string, []byte) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, wire.WriteLine(conn, wire.Join("get_chunk", fileName, index)))

	body, err := io.ReadAll(conn)
	require.NoError(t, err)
	return "", body
}

func TestServeChunk_FullAndPartial(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, chunking.Size+100)
	addr, stop := startServer(t, data)
	defer stop()

	_, chunk0 := request(t, addr, "f.bin", "0")
	require.Equal(t, data[:chunking.Size], chunk0)

	_, chunk1 := request(t, addr, "f.bin", "1")
	require.Equal(t, data[chunking.Size:], chunk1)
}

func TestServeChunk_UnknownFile(t *testing.T) {
	addr, stop := startServer(t, []byte("hello"))
	defer stop()

	_, resp := request(t, addr, "nope.bin", "0")
	require.Contains(t, string(resp), "Error:")
}

func TestServeChunk_IndexOutOfRange(t *testing.T) {
	addr, stop := startServer(t, []byte("hello"))
	defer stop()

	_, resp := request(t, addr, "f.bin", "9")
	require.Contains(t, string(resp), "Error:")
}
