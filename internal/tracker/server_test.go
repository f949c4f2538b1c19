package tracker_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vikramjeet-dev/swarmshare/internal/logging"
	"github.com/vikramjeet-dev/swarmshare/internal/tracker"
	"github.com/vikramjeet-dev/swarmshare/internal/trackerstore"
)

// testClient is a minimal line-protocol client used only by these tests.
type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) string {
	_, _ = c.conn.Write([]byte(line + "\n"))
	resp, err := c.r.ReadString('\n')
	if err != nil {
		return ""
	}
	return resp[:len(resp)-1]
}

func startServer(t *testing.T) (*tracker.Server, string) {
	t.Helper()
	store := trackerstore.New()
	srv, err := tracker.NewServer("127.0.0.1:0", store, logging.New(io.Discard, "test"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
	})
	return srv, srv.Addr().String()
}

func TestServer_CreateUserLoginQuit(t *testing.T) {
	_, addr := startServer(t)
	c := dial(t, addr)

	require.Equal(t, "ok", c.send("create_user alice secret"))
	require.Equal(t, "ok", c.send("login alice secret 127.0.0.1 6001"))
	require.Equal(t, "bye", c.send("quit"))
}

func TestServer_CommandsBeforeLoginRejected(t *testing.T) {
	_, addr := startServer(t)
	c := dial(t, addr)

	resp := c.send("create_group g1")
	require.Contains(t, resp, "Error:")
	require.Contains(t, resp, "not logged in")
}

func TestServer_GroupLifecycleAndUploadDownload(t *testing.T) {
	_, addr := startServer(t)

	owner := dial(t, addr)
	require.Equal(t, "ok", owner.send("create_user owner pw"))
	require.Equal(t, "ok", owner.send("login owner pw 127.0.0.1 7001"))
	require.Equal(t, "ok", owner.send("create_group g1"))

	member := dial(t, addr)
	require.Equal(t, "ok", member.send("create_user bob pw"))
	require.Equal(t, "ok", member.send("login bob pw 127.0.0.1 7002"))
	require.Equal(t, "ok", member.send("join_group g1"))

	reqResp := owner.send("list_requests g1")
	require.Equal(t, "requests bob", reqResp)
	require.Equal(t, "ok", owner.send("accept_request g1 bob"))

	require.Equal(t, "ok", owner.send("upload_file g1 movie.mp4 600000 deadbeef h0 h1"))

	filesResp := member.send("list_files g1")
	require.Equal(t, "files movie.mp4", filesResp)

	planResp := member.send("download_file g1 movie.mp4")
	require.Contains(t, planResp, "download_info")
	require.Contains(t, planResp, "owner")
}

func TestServer_ShutdownOverWireIsRejected(t *testing.T) {
	_, addr := startServer(t)
	c := dial(t, addr)
	require.Equal(t, "ok", c.send("create_user u pw"))
	require.Equal(t, "ok", c.send("login u pw 127.0.0.1 7003"))

	resp := c.send("shutdown")
	require.Contains(t, resp, "admin-only")
}

func TestServer_ConsoleShutdownClosesSessions(t *testing.T) {
	srv, addr := startServer(t)
	c := dial(t, addr)
	require.Equal(t, "ok", c.send("create_user u pw"))

	srv.Shutdown()

	// Either the connection is now closed, or the next line read returns
	// the shutdown notice the tracker pushes to every open session.
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err == nil {
		require.Equal(t, "shutdown\n", line)
	}
}
