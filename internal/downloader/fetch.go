package downloader

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vikramjeet-dev/swarmshare/internal/digest"
	"github.com/vikramjeet-dev/swarmshare/internal/planformat"
	"github.com/vikramjeet-dev/swarmshare/internal/wire"
)

// dialTimeout bounds how long a single connect attempt may take; spec §5
// notes there are no explicit RPC timeouts, but an unbounded TCP connect can
// hang indefinitely on an unreachable holder, so we still cap the connect
// phase itself.
const dialTimeout = 5 * time.Second

// ChunkFetcher fetches and verifies one chunk from one holder. The real
// implementation (tcpFetcher) dials the holder over TCP; tests substitute a
// fake to simulate honest, malicious, or unreachable peers without a
// network.
type ChunkFetcher interface {
	Fetch(ctx context.Context, holder planformat.Holder, fileName string, index int, expectedSHA1 string, length int64) ([]byte, error)
}

// tcpFetcher implements the per-attempt protocol of spec §4.E: open TCP,
// send "get_chunk <file_name> <index>\n", read exactly length bytes, and
// verify the SHA-1 digest. A digest mismatch also rejects an "Error: ..."
// line returned by an unhealthy peer, since its digest will not match.
type tcpFetcher struct{}

func (tcpFetcher) Fetch(ctx context.Context, holder planformat.Holder, fileName string, index int, expectedSHA1 string, length int64) ([]byte, error) {
	addr := net.JoinHostPort(holder.IP, holder.Port)

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := wire.WriteLine(conn, wire.Join("get_chunk", fileName, fmt.Sprintf("%d", index))); err != nil {
		return nil, fmt.Errorf("send get_chunk to %s: %w", addr, err)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, fmt.Errorf("read chunk %d from %s: %w", index, addr, err)
	}

	if got := digest.Bytes(buf); got != expectedSHA1 {
		return nil, fmt.Errorf("chunk %d digest mismatch from %s: got %s want %s", index, addr, got, expectedSHA1)
	}
	return buf, nil
}
