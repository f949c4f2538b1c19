// Package chunkserver implements the peer chunk-serving protocol (spec
// §4.D): accept inbound TCP connections and serve exactly one
// "get_chunk <file_name> <chunk_index>" request per connection, streaming
// the raw chunk bytes on success or an "Error: ...\n" line on failure.
package chunkserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/vikramjeet-dev/swarmshare/internal/chunking"
	"github.com/vikramjeet-dev/swarmshare/internal/ownedfiles"
	"github.com/vikramjeet-dev/swarmshare/internal/wire"
)

// Server serves chunks of this peer's owned files to other peers.
type Server struct {
	listener net.Listener
	registry *ownedfiles.Registry
	log      *logrus.Entry
}

// New binds addr (all interfaces on the peer's configured listen port) and
// returns a Server ready to Serve.
func New(addr string, registry *ownedfiles.Registry, log *logrus.Entry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding chunk server: %w", err)
	}
	return &Server{listener: ln, registry: registry, log: log}, nil
}

// Addr returns the bound address, useful when addr was ":0" in tests.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting connections; any in-flight handler finishes on its
// own, there is no drain (spec §4.H: in-flight work is not gracefully
// drained).
func (s *Server) Close() error {
	return s.listener.Close()
}

// Serve accepts connections until ctx is done or the listener is closed.
// Each connection is handled in its own goroutine — there is no per-file
// mutex, since reads from an on-disk file are idempotent and the file is
// treated as immutable once uploaded (spec §4.D Concurrency).
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	r := wire.NewReader(conn)
	line, err := r.ReadLine()
	if err != nil {
		return
	}

	tokens := wire.Tokens(line)
	if len(tokens) != 3 || tokens[0] != "get_chunk" {
		s.sendError(conn, "malformed get_chunk request")
		return
	}
	fileName := tokens[1]
	index, err := strconv.Atoi(tokens[2])
	if err != nil {
		s.sendError(conn, "malformed chunk index")
		return
	}

	if err := s.serveChunk(conn, fileName, index); err != nil {
		s.log.WithError(err).WithField("file", fileName).WithField("chunk", index).Warn("failed to serve chunk")
		s.sendError(conn, err.Error())
	}
}

func (s *Server) serveChunk(conn net.Conn, fileName string, index int) error {
	fi, ok := s.registry.Get(fileName)
	if !ok {
		return fmt.Errorf("no such file: %s", fileName)
	}

	info, err := os.Stat(fi.OnDiskPath)
	if err != nil {
		return fmt.Errorf("cannot stat file: %w", err)
	}

	total := fi.TotalChunks()
	offset, length, err := chunking.Bounds(info.Size(), index, total)
	if err != nil {
		return err
	}

	f, err := os.Open(fi.OnDiskPath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	section := io.NewSectionReader(f, offset, length)
	n, err := io.Copy(conn, section)
	if err != nil {
		return fmt.Errorf("read failed mid-chunk: %w", err)
	}
	if n != length {
		return fmt.Errorf("truncated read: wrote %d of %d bytes", n, length)
	}
	return nil
}

func (s *Server) sendError(conn net.Conn, msg string) {
	_ = wire.WriteLine(conn, "Error: "+msg)
}
