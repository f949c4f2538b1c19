// Package tracker implements the tracker's command dispatcher (spec §4.G)
// and lifecycle (spec §4.H) on top of the in-memory metadata store in
// internal/trackerstore (spec §4.F).
package tracker

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikramjeet-dev/swarmshare/internal/trackerstore"
)

// session is one client's persistent TCP connection (spec GLOSSARY). It is
// bound to exactly one user id at login time.
type session struct {
	id     string
	conn   net.Conn
	userID string // empty until login succeeds
}

// Server owns the accept loop, the session registry (the third of spec
// §4.F's three logical locks — this one guards connections, not metadata),
// and coordinated shutdown.
type Server struct {
	store    *trackerstore.Store
	log      *logrus.Entry
	listener net.Listener

	sessionsMu sync.Mutex
	sessions   map[string]*session

	shutdownOnce sync.Once
}

// NewServer binds addr and returns a Server ready to Serve.
func NewServer(addr string, store *trackerstore.Store, log *logrus.Entry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:    store,
		log:      log,
		listener: ln,
		sessions: make(map[string]*session),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts client connections until the listener is closed (by
// Shutdown or by ctx being cancelled).
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
		sess := &session{id: uuid.New().String(), conn: conn}
		s.register(sess)
		go s.handleSession(sess)
	}
}

func (s *Server) register(sess *session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[sess.id] = sess
}

func (s *Server) unregister(sess *session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, sess.id)
}

// Shutdown implements spec §4.H: send "shutdown\n" to every connected
// client, close all client sockets, then close the listener. It is safe to
// call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.log.Info("tracker shutdown initiated")

		s.sessionsMu.Lock()
		sessions := make([]*session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			sessions = append(sessions, sess)
		}
		s.sessionsMu.Unlock()

		for _, sess := range sessions {
			w := bufio.NewWriter(sess.conn)
			_, _ = w.WriteString("shutdown\n")
			_ = w.Flush()
			_ = sess.conn.Close()
		}

		_ = s.listener.Close()
	})
}
