// Package trackerclient is a peer process's session with the tracker: dial,
// send one command line, read one response line (spec §4.G). It mirrors the
// teacher's daemon-facing Client wrapper (internal/client/client) but talks
// the tracker's line protocol directly instead of a local unix socket and a
// protobuf-framed daemon.
package trackerclient

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vikramjeet-dev/swarmshare/internal/chunking"
	"github.com/vikramjeet-dev/swarmshare/internal/planformat"
	"github.com/vikramjeet-dev/swarmshare/internal/wire"
)

const dialTimeout = 5 * time.Second

// Client is one peer's persistent connection to the tracker.
type Client struct {
	conn net.Conn
	r    *wire.Reader
	log  *logrus.Entry
}

// Dial connects to the tracker at addr.
func Dial(addr string, log *logrus.Entry) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial tracker %s: %w", addr, err)
	}
	return &Client{conn: conn, r: wire.NewReader(conn), log: log}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Command sends fields joined into one line and returns the tracker's
// single-line response, stripped of its trailing terminator. This is the
// primitive every higher-level call below is built on.
func (c *Client) Command(fields ...string) (string, error) {
	if err := wire.WriteLine(c.conn, wire.Join(fields...)); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	resp, err := c.r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// asErr converts an "Error: ..." response line into a Go error, or nil for
// any other response.
func asErr(resp string) error {
	const prefix = "Error: "
	if len(resp) >= len(prefix) && resp[:len(prefix)] == prefix {
		return fmt.Errorf("%s", resp[len(prefix):])
	}
	return nil
}

// CreateUser registers a new account.
func (c *Client) CreateUser(uid, pwd string) error {
	resp, err := c.Command("create_user", uid, pwd)
	if err != nil {
		return err
	}
	return asErr(resp)
}

// Login authenticates and advertises this peer's chunk-serving endpoint.
func (c *Client) Login(uid, pwd, ip, port string) error {
	resp, err := c.Command("login", uid, pwd, ip, port)
	if err != nil {
		return err
	}
	return asErr(resp)
}

// CreateGroup creates a new group owned by the logged-in user.
func (c *Client) CreateGroup(gid string) error {
	resp, err := c.Command("create_group", gid)
	if err != nil {
		return err
	}
	return asErr(resp)
}

// JoinGroup files a join request.
func (c *Client) JoinGroup(gid string) error {
	resp, err := c.Command("join_group", gid)
	if err != nil {
		return err
	}
	return asErr(resp)
}

// LeaveGroup removes the logged-in user from gid.
func (c *Client) LeaveGroup(gid string) error {
	resp, err := c.Command("leave_group", gid)
	if err != nil {
		return err
	}
	return asErr(resp)
}

// ListGroups returns every group id known to the tracker.
func (c *Client) ListGroups() ([]string, error) {
	resp, err := c.Command("list_groups")
	if err != nil {
		return nil, err
	}
	if e := asErr(resp); e != nil {
		return nil, e
	}
	return tailFields(resp), nil
}

// ListRequests returns gid's pending join requests. Caller must be owner.
func (c *Client) ListRequests(gid string) ([]string, error) {
	resp, err := c.Command("list_requests", gid)
	if err != nil {
		return nil, err
	}
	if e := asErr(resp); e != nil {
		return nil, e
	}
	return tailFields(resp), nil
}

// AcceptRequest admits target into gid. Caller must be owner.
func (c *Client) AcceptRequest(gid, target string) error {
	resp, err := c.Command("accept_request", gid, target)
	if err != nil {
		return err
	}
	return asErr(resp)
}

// ListFiles returns the file names published in gid.
func (c *Client) ListFiles(gid string) ([]string, error) {
	resp, err := c.Command("list_files", gid)
	if err != nil {
		return nil, err
	}
	if e := asErr(resp); e != nil {
		return nil, e
	}
	return tailFields(resp), nil
}

// UploadFile builds the manifest of path locally, then announces it to the
// tracker under fileName in gid.
func (c *Client) UploadFile(gid, fileName, path string) error {
	sha1, size, manifest, err := chunking.BuildManifest(path)
	if err != nil {
		return fmt.Errorf("building manifest for %s: %w", path, err)
	}
	fields := append([]string{"upload_file", gid, fileName, fmt.Sprintf("%d", size), sha1}, manifest...)
	resp, err := c.Command(fields...)
	if err != nil {
		return err
	}
	return asErr(resp)
}

// DownloadFile fetches the tracker's download plan for fileName in gid.
func (c *Client) DownloadFile(gid, fileName string) (planformat.Plan, error) {
	resp, err := c.Command("download_file", gid, fileName)
	if err != nil {
		return planformat.Plan{}, err
	}
	if e := asErr(resp); e != nil {
		return planformat.Plan{}, e
	}
	return planformat.Decode(resp)
}

// Quit tells the tracker this session is ending cleanly.
func (c *Client) Quit() error {
	_, err := c.Command("quit")
	return err
}

// tailFields drops a response's leading tag word ("groups", "requests",
// "files") and returns the rest, or nil if there is nothing after it.
func tailFields(resp string) []string {
	fields := wire.Tokens(resp)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}
